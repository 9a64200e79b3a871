package cli

import (
	"os"

	"github.com/spf13/viper"

	"github.com/earthframe/earthframe/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// EARTHFRAME_DATA_DIR env var, or ~/.earthframe as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("EARTHFRAME_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.earthframe"
}

// openStore opens the user/token store. A configured database URL selects
// Postgres; otherwise the store lives in a SQLite file under the data dir.
func openStore() (*store.Store, error) {
	if url := viper.GetString("database.url"); url != "" {
		return store.New(url)
	}
	return store.New(resolveDataDir())
}
