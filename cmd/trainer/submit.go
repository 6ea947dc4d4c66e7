package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/park285/cheese-trainer/internal/authoring"
	"github.com/park285/cheese-trainer/internal/exercise"
)

var (
	submitName   string
	submitColor  string
	submitPublic bool
)

var submitCmd = &cobra.Command{
	Use:   "submit [notation|-]",
	Short: "Save a move list as a custom exercise",
	Long: `submit stores a numbered move list ("1. e4 e5 2. Nf3") on this device
and mirrors it to the exercise service when a token is set. Pass "-" or no
argument to read the notation from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		raw, err := notationArg(args)
		if err != nil {
			return err
		}
		ex, err := a.pipeline.Submit(ctx, authoring.Request{
			Device:     a.device(),
			Credential: a.token(),
			Raw:        raw,
			Name:       submitName,
			Color:      exercise.ParseColor(submitColor),
			Public:     submitPublic,
		})
		var verr *authoring.ValidationError
		if errors.As(err, &verr) {
			return errors.New(verr.Message)
		}
		if err != nil {
			return err
		}
		fmt.Println(a.catalog.Text("trainer.saved", map[string]string{"Name": ex.Name}))
		fmt.Printf("id: %s\n", ex.ID)
		if ex.BackendID != "" {
			fmt.Printf("shared as: %s\n", ex.BackendID)
		}
		return nil
	}),
}

func notationArg(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func init() {
	submitCmd.Flags().StringVar(&submitName, "name", "", "exercise name (default: derived from the moves)")
	submitCmd.Flags().StringVar(&submitColor, "color", "white", "side the trainee plays")
	submitCmd.Flags().BoolVar(&submitPublic, "public", false, "share with other users")
	rootCmd.AddCommand(submitCmd)
}
