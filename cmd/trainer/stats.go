package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <exercise-id>",
	Short: "Show attempts, mistakes and completions for an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		st, err := a.stats.Get(ctx, a.device(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d attempt(s), %d mistake(s), %d completion(s)\n", st.ExerciseID, st.Attempts, st.Mistakes, st.Completions)
		if !st.LastPlayedAt.IsZero() {
			fmt.Printf("last played %s\n", st.LastPlayedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
