package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/park285/cheese-trainer/internal/exercise"
)

var (
	listSearch string
	listColor  string
	listSource string
	listSort   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundled, local and shared exercises",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		all, err := a.merger.LoadAll(ctx, exercise.Request{Device: a.device(), Credential: a.token()})
		if err != nil {
			return err
		}
		crit := exercise.Criteria{Source: exercise.Source(listSource)}
		if listColor != "" {
			crit.Color = exercise.ParseColor(listColor)
		}
		list := exercise.Sort(exercise.Filter(exercise.Search(all, listSearch), crit), exercise.ParseSortBy(listSort))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tName\tSide\tSource\tPlies\tOpening")
		fmt.Fprintln(w, "--\t----\t----\t------\t-----\t-------")
		for _, ex := range list {
			name := ex.Name
			if ex.Degraded {
				name += " (!)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", ex.ID, name, ex.Color, ex.Source, len(ex.Analysis), ex.Opening)
		}
		return w.Flush()
	}),
}

func init() {
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "match name, id or opening")
	listCmd.Flags().StringVar(&listColor, "color", "", "white or black")
	listCmd.Flags().StringVar(&listSource, "source", "", "dataset, local or remote")
	listCmd.Flags().StringVar(&listSort, "sort", string(exercise.SortNaturalID), "natural-id, name, newest or oldest")
	rootCmd.AddCommand(listCmd)
}
