package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/earthframe/earthframe/internal/model"
	"github.com/earthframe/earthframe/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage user accounts",
		Long:  "Provision service accounts and administrators, and list existing accounts.",
	}

	cmd.AddCommand(newAccountCreateServiceCmd())
	cmd.AddCommand(newAccountCreateAdminCmd())
	cmd.AddCommand(newAccountListCmd())

	return cmd
}

// ---------- account create-service ----------

func newAccountCreateServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-service <name>",
		Short: "Create a service account (idempotent)",
		Long:  "Create a SERVICE_ACCOUNT user for a non-interactive client. Re-running with the same name is a no-op.",
		Example: `  earthframe account create-service ingest
  earthframe account create-service chrysalis-uploader`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountCreate(args[0], model.RoleServiceAccount)
		},
	}

	return cmd
}

// ---------- account create-admin ----------

func newAccountCreateAdminCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Grant the ADMIN role to a new account (idempotent)",
		Long: `Create an ADMIN user for the given email address. The account signs in
through the normal browser OAuth flow; this only pre-provisions the role.`,
		Example: `  earthframe account create-admin --email ops@example.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountCreateAdmin(email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAccountCreate(serviceName string, role model.Role) error {
	if strings.ContainsAny(serviceName, "@ ") {
		return fmt.Errorf("invalid service name %q", serviceName)
	}

	domain := viper.GetString("auth.domain")
	if domain == "" {
		domain = "earthframe.local"
	}
	email := serviceName + "@" + domain

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return createAccount(st, email, role)
}

func runAccountCreateAdmin(email string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return createAccount(st, email, model.RoleAdmin)
}

func createAccount(st *store.Store, email string, role model.Role) error {
	ctx := context.Background()

	if existing, err := st.GetUserByEmail(ctx, email); err == nil {
		fmt.Printf("Account already exists: %s (%s, role %s)\n", existing.Email, existing.ID, existing.Role)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up account: %w", err)
	}

	user := &model.User{
		Email:    email,
		Role:     role,
		IsActive: true,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("Created %s account:\n", role)
	fmt.Printf("  ID:    %s\n", user.ID)
	fmt.Printf("  Email: %s\n", user.Email)
	return nil
}

// ---------- account list ----------

func newAccountListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAccountList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No accounts. Use 'earthframe account create-service' or 'account create-admin'.")
		return nil
	}

	fmt.Printf("%-38s %-32s %-18s %s\n", "ID", "EMAIL", "ROLE", "ACTIVE")
	for _, u := range users {
		active := "yes"
		if !u.IsActive {
			active = "no"
		}
		fmt.Printf("%-38s %-32s %-18s %s\n", u.ID, u.Email, u.Role, active)
	}

	return nil
}
