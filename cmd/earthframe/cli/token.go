package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/earthframe/earthframe/internal/auth"
	"github.com/earthframe/earthframe/internal/store"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long:  "Create, list, and revoke API tokens used by HPC ingestion jobs and automation bots.",
	}

	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenRevokeCmd())

	return cmd
}

// ---------- token create ----------

func newTokenCreateCmd() *cobra.Command {
	var (
		owner   string
		name    string
		expires string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		Long:  "Issue a new API token for a service account. The raw token is shown once and cannot be retrieved again.",
		Example: `  earthframe token create --owner ingest@earthframe.io --name "chrysalis nightly"
  earthframe token create --owner 6f1f9c2e-... --name ci --expires 2027-01-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenCreate(owner, name, expires)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Service account email or ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable token name (required)")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry as RFC 3339 timestamp (optional)")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runTokenCreate(owner, name, expires string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	ownerID, err := resolveOwnerID(ctx, st, owner)
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if expires != "" {
		t, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			return fmt.Errorf("parse --expires: %w", err)
		}
		expiresAt = &t
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	issuer := auth.NewIssuer(st, logger)

	token, raw, err := issuer.Issue(ctx, name, ownerID, expiresAt)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println("API token created:")
	fmt.Println()
	fmt.Printf("  Token: %s\n", raw)
	fmt.Printf("  ID:    %s\n", token.ID)
	fmt.Printf("  Name:  %s\n", token.Name)
	if token.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", token.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this token now - it cannot be retrieved again.")
	return nil
}

// resolveOwnerID accepts either a user ID or an email address.
func resolveOwnerID(ctx context.Context, st *store.Store, owner string) (string, error) {
	if u, err := st.GetUser(ctx, owner); err == nil {
		return u.ID, nil
	}
	u, err := st.GetUserByEmail(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("no user found for %q", owner)
	}
	return u.ID, nil
}

// ---------- token list ----------

func newTokenListCmd() *cobra.Command {
	var (
		jsonOutput bool
		owner      string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenList(owner, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner email or ID")

	return cmd
}

func runTokenList(owner string, jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	ownerID := ""
	if owner != "" {
		ownerID, err = resolveOwnerID(ctx, st, owner)
		if err != nil {
			return err
		}
	}

	tokens, err := st.ListTokens(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	// Owner ID → email map for display.
	users, err := st.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	emails := make(map[string]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}

	type tokenRow struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Owner   string `json:"owner"`
		Revoked bool   `json:"revoked"`
		Expires string `json:"expires,omitempty"`
	}

	rows := make([]tokenRow, len(tokens))
	for i, t := range tokens {
		row := tokenRow{
			ID:      t.ID,
			Name:    t.Name,
			Owner:   emails[t.OwnerID],
			Revoked: t.Revoked,
		}
		if t.ExpiresAt != nil {
			row.Expires = t.ExpiresAt.Format(time.RFC3339)
		}
		rows[i] = row
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API tokens. Use 'earthframe token create' to issue one.")
		return nil
	}

	fmt.Printf("%-38s %-24s %-28s %-8s %s\n", "ID", "NAME", "OWNER", "REVOKED", "EXPIRES")
	for _, row := range rows {
		revoked := "no"
		if row.Revoked {
			revoked = "yes"
		}
		expires := row.Expires
		if expires == "" {
			expires = "-"
		}
		fmt.Printf("%-38s %-24s %-28s %-8s %s\n", row.ID, row.Name, row.Owner, revoked, expires)
	}

	return nil
}

// ---------- token revoke ----------

func newTokenRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke an API token by ID",
		Long:  "Permanently invalidate an API token. Revocation is immediate and cannot be undone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRevoke(args[0])
		},
	}

	return cmd
}

func runTokenRevoke(id string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.RevokeToken(context.Background(), id); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	fmt.Printf("Revoked API token %s\n", id)
	return nil
}
