package command

import (
	"os"

	"github.com/spf13/cobra"

	"rconhub/cmd/rconctl/command/client"
)

// configCmd shows the server's public configuration. It needs no
// credentials.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the server's public configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := client.Options{Server: serverURL, Timeout: timeout}
		if urlPassword {
			opts.URLPassword = password
		}
		c, err := client.Dial(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Call(cmd.Context(), "config")
		if err != nil {
			return err
		}
		client.PrintResponse(os.Stdout, resp, true)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
