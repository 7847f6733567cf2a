package command

// root.go defines the root command for rconctl and its global flags.

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rconhub/cmd/rconctl/authentication"
	"rconhub/cmd/rconctl/command/client"
	"rconhub/internal/protocol"
)

var (
	serverURL   string        // tcp://host:port or ws://host:port
	timeout     time.Duration // per request
	urlPassword bool          // server runs in url_password mode
	password    string
	accountName string
	verbose     bool
	noColor     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rconctl",
	Short: "rconctl - remote console client for rconhub servers",
	Long: `rconctl talks to an rconhub server over raw TCP or WebSocket. Use it to:
- Run console commands (exec)
- Follow live logs, player events and status pushes (watch)
- Keep a session token in the OS keyring (login, logout)
- Manage operator accounts and read the audit trail (account, audit)

Use "rconctl command --help" to see the flags of each command.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("RCON_SERVER", "tcp://127.0.0.1:27015"), "server address (tcp://, ws:// or wss://)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&urlPassword, "url-password", false, "authenticate at connect time (server in url_password mode)")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", os.Getenv("RCON_PASSWORD"), "server password or account password")
	rootCmd.PersistentFlags().StringVarP(&accountName, "name", "n", "", "account name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print response data")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connect dials the server and authenticates with, in order: the
// connection itself in url_password mode, --password, or the token saved
// by login.
func connect(ctx context.Context) (*client.Client, error) {
	opts := client.Options{Server: serverURL, Timeout: timeout}
	if urlPassword {
		if password == "" {
			return nil, fmt.Errorf("--url-password needs --password or RCON_PASSWORD")
		}
		opts.URLPassword = password
	}

	c, err := client.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.OnBroadcast = func(resp *protocol.Response) {
		client.PrintResponse(os.Stdout, resp, verbose)
	}
	if urlPassword {
		return c, nil
	}

	name, secret := accountName, password
	if secret == "" {
		creds, err := authentication.GetTokens(serverURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("not logged in to %s: run \"rconctl login\" or pass --password", serverURL)
		}
		if creds.Expired(time.Now()) {
			c.Close()
			return nil, fmt.Errorf("session token for %s expired: run \"rconctl login\" again", serverURL)
		}
		name, secret = "", creds.Token
	}
	if _, err := c.Auth(ctx, name, secret); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
