package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rconhub/cmd/rconctl/command/client"
	"rconhub/internal/protocol"
)

// execCmd runs one console command and prints the reply.
var execCmd = &cobra.Command{
	Use:   "exec <command> [args...]",
	Short: "Run a console command",
	Example: `  rconctl exec status
  rconctl -s ws://game.example:27016 exec say "restart in 5 minutes"
  rconctl exec ban griefer spawn camping`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Call(cmd.Context(), args[0], args[1:]...)
		if err != nil {
			return fmt.Errorf("command failed: %w", err)
		}
		client.PrintResponse(os.Stdout, resp, verbose)
		if resp.Status == protocol.StatusError {
			return fmt.Errorf("%s", resp.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
