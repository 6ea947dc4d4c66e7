// Command trainer serves training sessions over websocket and offers the same
// exercises on the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	deviceFlag string
	tokenFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "Chess opening and endgame line trainer",
	Long: `trainer drills recorded chess lines: the bundled exercises, the ones
you authored on this device and the ones shared on the exercise service.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "device key for local exercises (default $TRAINER_DEVICE or \"cli\")")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token for the exercise service (default $TRAINER_TOKEN)")
}

// withApp wires the app for one command and tears it down afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
