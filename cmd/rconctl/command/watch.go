package command

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rconhub/cmd/rconctl/command/client"
)

// watchCmd follows broadcasts until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live logs, player events and status updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := connect(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		color.Yellow("watching %s (Ctrl+C to stop)", serverURL)

		// unblock Next on interrupt
		go func() {
			<-ctx.Done()
			c.Close()
		}()

		for {
			resp, err := c.Next()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, client.ErrClosed) {
					color.Yellow("server closed the connection")
					return nil
				}
				return fmt.Errorf("watch: %w", err)
			}
			client.PrintResponse(os.Stdout, resp, verbose)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

