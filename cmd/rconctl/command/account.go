package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rconhub/database"
	"rconhub/internal/repository"
)

var databaseURL string

// accountCmd groups operator account management. It talks to the
// database directly, not to a running server.
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage operator accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an operator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		secret, _ := cmd.Flags().GetString("account-password")
		privilege, _ := cmd.Flags().GetInt("privilege")

		accounts, closeDB, err := openAccounts(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		acc, err := accounts.Create(cmd.Context(), username, secret, privilege)
		if err != nil {
			return err
		}
		color.Green("✓ Account %s created (privilege %d)", acc.Username, acc.Privilege)
		fmt.Printf("ID: %s\n", acc.ID)
		return nil
	},
}

var accountPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change an account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		secret, _ := cmd.Flags().GetString("account-password")

		accounts, closeDB, err := openAccounts(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		if err := accounts.SetPassword(cmd.Context(), username, secret); err != nil {
			return err
		}
		color.Green("✓ Password for %s updated", username)
		return nil
	},
}

// auditCmd prints the most recent forwarded commands.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent commands from the audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if databaseURL == "" {
			return fmt.Errorf("--db or DATABASE_URL is required")
		}

		pool, err := database.ConnectPool(cmd.Context(), databaseURL, quietLogger())
		if err != nil {
			return err
		}
		repo := repository.NewAuditPostgresRepo(pool)
		defer repo.Close()

		entries, err := repo.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tIDENTITY\tTRANSPORT\tOK\tMS\tCOMMAND")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\n",
				e.ExecutedAt.Local().Format(time.DateTime), e.Identity, e.Transport, e.Success, e.DurationMS, e.Command)
		}
		return w.Flush()
	},
}

func init() {
	accountCmd.PersistentFlags().StringVar(&databaseURL, "db", os.Getenv("DATABASE_URL"), "Postgres connection string")
	auditCmd.Flags().StringVar(&databaseURL, "db", os.Getenv("DATABASE_URL"), "Postgres connection string")
	auditCmd.Flags().Int("limit", 20, "number of entries")

	accountAddCmd.Flags().StringP("username", "u", "", "account name")
	accountAddCmd.Flags().String("account-password", "", "password for the new account")
	accountAddCmd.Flags().Int("privilege", 1, "privilege level")
	accountAddCmd.MarkFlagRequired("username")
	accountAddCmd.MarkFlagRequired("account-password")

	accountPasswdCmd.Flags().StringP("username", "u", "", "account name")
	accountPasswdCmd.Flags().String("account-password", "", "new password")
	accountPasswdCmd.MarkFlagRequired("username")
	accountPasswdCmd.MarkFlagRequired("account-password")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountPasswdCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(auditCmd)
}

func openAccounts(ctx context.Context) (*repository.AccountRepository, func(), error) {
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("--db or DATABASE_URL is required")
	}
	gdb, err := database.OpenGorm(databaseURL, quietLogger())
	if err != nil {
		return nil, nil, err
	}
	accounts := repository.NewAccountRepository(gdb)
	if err := accounts.Migrate(ctx); err != nil {
		database.CloseGorm(gdb)
		return nil, nil, fmt.Errorf("failed to migrate accounts: %w", err)
	}
	return accounts, func() { _ = database.CloseGorm(gdb) }, nil
}

func quietLogger() *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
