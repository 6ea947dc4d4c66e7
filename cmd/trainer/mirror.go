package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Retry sharing local exercises that never reached the service",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		if a.remote == nil {
			return errors.New("REMOTE_BASE_URL is not set")
		}
		n, err := a.pipeline.RetryPending(ctx, a.device(), a.token())
		if err != nil {
			return err
		}
		fmt.Printf("mirrored %d exercise(s)\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}
