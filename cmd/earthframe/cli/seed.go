package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/earthframe/earthframe/internal/auth"
	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

// seedFile is the YAML layout consumed by `earthframe seed`. Accounts are
// created idempotently; tokens are always issued fresh and printed once.
type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
	Tokens   []seedToken   `yaml:"tokens"`
}

type seedAccount struct {
	Email   string `yaml:"email,omitempty"`
	Service string `yaml:"service,omitempty"` // derives email from auth.domain
	Role    string `yaml:"role,omitempty"`    // defaults per entry kind
}

type seedToken struct {
	Owner   string `yaml:"owner"` // email or ID
	Name    string `yaml:"name"`
	Expires string `yaml:"expires,omitempty"` // RFC 3339
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed accounts and tokens from a YAML file",
		Long: `Populate the store from a YAML file, for development and test
environments. Accounts that already exist are left untouched; listed tokens
are issued fresh and their raw values printed once.`,
		Example: `  earthframe seed --file seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "seed.yaml", "Seed file path")

	return cmd
}

func runSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	domain := viper.GetString("auth.domain")
	if domain == "" {
		domain = "earthframe.local"
	}

	for _, acct := range seed.Accounts {
		email := acct.Email
		role := model.Role(acct.Role)
		if acct.Service != "" {
			email = acct.Service + "@" + domain
			if acct.Role == "" {
				role = model.RoleServiceAccount
			}
		} else if acct.Role == "" {
			role = model.RoleUser
		}
		if email == "" {
			return fmt.Errorf("seed account needs an email or service name")
		}
		if !role.Valid() {
			return fmt.Errorf("seed account %s: unknown role %q", email, acct.Role)
		}

		if err := seedUser(ctx, st, email, role); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	issuer := auth.NewIssuer(st, logger)

	for _, tok := range seed.Tokens {
		ownerID, err := resolveOwnerID(ctx, st, tok.Owner)
		if err != nil {
			return fmt.Errorf("seed token %q: %w", tok.Name, err)
		}

		var expiresAt *time.Time
		if tok.Expires != "" {
			t, err := time.Parse(time.RFC3339, tok.Expires)
			if err != nil {
				return fmt.Errorf("seed token %q: parse expires: %w", tok.Name, err)
			}
			expiresAt = &t
		}

		_, raw, err := issuer.Issue(ctx, tok.Name, ownerID, expiresAt)
		if err != nil {
			return fmt.Errorf("seed token %q: %w", tok.Name, err)
		}
		fmt.Printf("token %-24s %s\n", tok.Name+":", raw)
	}

	fmt.Printf("Seeded %d accounts, %d tokens.\n", len(seed.Accounts), len(seed.Tokens))
	return nil
}

func seedUser(ctx context.Context, st *store.Store, email string, role model.Role) error {
	if _, err := st.GetUserByEmail(ctx, email); err == nil {
		fmt.Printf("account %s already exists, skipping\n", email)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up %s: %w", email, err)
	}

	user := &model.User{Email: email, Role: role, IsActive: true}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create %s: %w", email, err)
	}
	fmt.Printf("account %s created (%s)\n", email, role)
	return nil
}
