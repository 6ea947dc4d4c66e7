package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/remote"
)

var deleteRemote bool

var deleteCmd = &cobra.Command{
	Use:   "delete <exercise-id>",
	Short: "Remove an exercise authored on this device",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		recs, err := a.local.List(ctx, a.device())
		if err != nil {
			return err
		}
		var rec *localstore.Record
		for i := range recs {
			if recs[i].ID == args[0] {
				rec = &recs[i]
				break
			}
		}
		if rec == nil {
			return fmt.Errorf("%s: %w", args[0], localstore.ErrRecordNotFound)
		}

		if deleteRemote && rec.BackendID != "" && a.remote != nil {
			id, err := strconv.ParseInt(rec.BackendID, 10, 64)
			if err != nil {
				return fmt.Errorf("backend id %q: %w", rec.BackendID, err)
			}
			err = a.remote.Delete(ctx, a.token(), id)
			switch {
			case remote.IsNotFound(err):
				a.logger.Info("exercise_remote_missing", zap.String("exercise_id", rec.ID), zap.Int64("backend_id", id))
			case err != nil:
				return fmt.Errorf("remote delete: %w", err)
			default:
				a.logger.Info("exercise_remote_deleted", zap.String("exercise_id", rec.ID), zap.Int64("backend_id", id))
			}
		}
		if err := a.local.Delete(ctx, a.device(), rec.ID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", rec.ID)
		return nil
	}),
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteRemote, "remote", false, "also delete the mirrored copy on the exercise service")
	rootCmd.AddCommand(deleteCmd)
}
