package cli

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/earthframe/earthframe/internal/auth"
	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/server"
	"github.com/earthframe/earthframe/internal/server/middleware"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		host        string
		dev         bool
		databaseURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the EarthFrame auth HTTP server",
		Long:  "Start the HTTP server that authenticates requests and serves the token-management API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres DSN (default: SQLite file in the data dir)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("database.url", cmd.Flags().Lookup("database-url"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store initialized")

	sessionSecret := viper.GetString("auth.session_secret")
	if sessionSecret == "" {
		sessionSecret = "earthframe-dev-secret-change-me"
		logger.Warn("auth.session_secret not set, using insecure dev default")
	}

	sessions := auth.NewCookieSessions(st, sessionSecret, logger)
	validator := auth.NewValidator(st, logger)
	resolver := auth.NewResolver(sessions, validator, logger)
	issuer := auth.NewIssuer(st, logger)

	cfg := server.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	if origins := viper.GetStringSlice("server.cors_origins"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if domain := viper.GetString("auth.domain"); domain != "" {
		cfg.Domain = domain
	}
	if roles := viper.GetStringSlice("auth.ingest_roles"); len(roles) > 0 {
		cfg.IngestRoles = cfg.IngestRoles[:0]
		for _, r := range roles {
			role := model.Role(r)
			if role.Valid() {
				cfg.IngestRoles = append(cfg.IngestRoles, role)
			} else {
				logger.Warn("ignoring unknown role in auth.ingest_roles", "role", r)
			}
		}
	}

	// Placeholder for the ingestion subsystem: acknowledge the submission
	// and record who made it. The real archive processing consumes the
	// resolved principal the same way.
	ingest := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := middleware.GetUser(r.Context())
		logger.Info("ingestion request accepted", "user_id", user.ID, "role", user.Role)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted"}`))
	})

	srv := server.New(cfg, st, resolver, issuer, ingest, logger)

	logger.Info("earthframe auth service ready",
		"addr", host,
		"port", port,
		"ingest_roles", cfg.IngestRoles,
		"started_at", time.Now().UTC().Format(time.RFC3339),
	)

	return srv.ListenAndServe()
}
