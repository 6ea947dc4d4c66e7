package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/park285/cheese-trainer/internal/authoring"
)

var renameCmd = &cobra.Command{
	Use:   "rename <exercise-id> <name>",
	Short: "Rename an exercise authored on this device",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		err := a.pipeline.Rename(ctx, a.device(), a.token(), args[0], args[1])
		var verr *authoring.ValidationError
		if errors.As(err, &verr) {
			return errors.New(verr.Message)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Printf("renamed %s\n", args[0])
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
