package command

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rconhub/cmd/rconctl/authentication"
	"rconhub/cmd/rconctl/command/client"
)

// loginCmd authenticates once and keeps the issued session token in the
// OS keyring so later commands do not need the password.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store a session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if password == "" {
			return fmt.Errorf("--password is required")
		}
		c, err := client.Dial(cmd.Context(), client.Options{Server: serverURL, Timeout: timeout})
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Auth(cmd.Context(), accountName, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		token, _ := resp.Data["Token"].(string)
		if token == "" {
			return fmt.Errorf("server did not issue a session token (is RCON_TOKEN_SECRET set?)")
		}

		creds := &authentication.StoredCredentials{Server: serverURL, Name: accountName, Token: token}
		if ttl, ok := resp.Data["TokenExpiresIn"].(float64); ok && ttl > 0 {
			creds.ExpiresAt = time.Now().Add(time.Duration(ttl) * time.Second).Unix()
		}
		if err := authentication.StoreTokens(creds); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		color.Green("✓ %s", resp.Message)
		if creds.ExpiresAt > 0 {
			fmt.Printf("Token valid until %s\n", time.Unix(creds.ExpiresAt, 0).Format(time.RFC1123))
		}
		return nil
	},
}

// logoutCmd forgets the stored token for the server.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteTokens(serverURL); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		color.Green("✓ Logged out of %s", serverURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
