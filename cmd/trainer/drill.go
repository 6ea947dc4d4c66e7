package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/internal/trainer"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

var drillServer string

var drillCmd = &cobra.Command{
	Use:   "drill <exercise-id>",
	Short: "Play an exercise on the terminal",
	Long: `drill loads one exercise and reads moves from stdin in coordinate form
(e2e4, e7e8q). "<" and ">" step through the line, "resume" returns to the live
position, "fen" prints the board and "quit" leaves.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		drv, err := openDriver(ctx, a)
		if err != nil {
			return err
		}

		rep, err := drv.Do(ctx, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: args[0]})
		if err != nil {
			return err
		}
		if !rep.OK {
			return errors.New(rep.Message)
		}
		fmt.Println(rep.Message)
		total := rep.Exercise.Plies

		state := rep.State
		prompt := func() {
			fmt.Print(a.catalog.Text("drill.prompt", map[string]any{
				"Turn":  state.Turn,
				"Ply":   state.CurrentMoveIndex + 1,
				"Total": total,
			}))
		}
		prompt()

		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			line := strings.TrimSpace(in.Text())
			var cmd trainerdto.Command
			switch line {
			case "":
				prompt()
				continue
			case "q", "quit", "exit":
				return nil
			case "fen":
				fmt.Println(state.FEN)
				prompt()
				continue
			case "<":
				cmd = trainerdto.Command{Type: trainerdto.CmdKey, Key: "left"}
			case ">":
				cmd = trainerdto.Command{Type: trainerdto.CmdKey, Key: "right"}
			case "resume":
				cmd = trainerdto.Command{Type: trainerdto.CmdResume}
			default:
				mv, ok := oracle.ParseMoveRequest(line)
				if !ok {
					fmt.Println("enter a move like e2e4, < or >, resume, fen or quit")
					prompt()
					continue
				}
				cmd = trainerdto.Command{Type: trainerdto.CmdMove, From: mv.From, To: mv.To, Promotion: mv.Promotion}
			}
			rep, err := drv.Do(ctx, cmd)
			if err != nil {
				return err
			}
			if rep.Error != nil {
				fmt.Println(rep.Error.Message)
			}
			if rep.State != nil {
				state = rep.State
				if state.Mode == "scrubbing" {
					fmt.Printf("  [%d/%d] %s\n", state.CurrentMoveIndex, total, state.FEN)
				}
			}
			prompt()
		}
		return in.Err()
	}),
}

// driver is a local Session or a Client connected to "trainer serve".
type driver interface {
	Do(ctx context.Context, cmd trainerdto.Command) (trainerdto.Reply, error)
}

func openDriver(ctx context.Context, a *app) (driver, error) {
	if drillServer != "" {
		c, err := trainer.Dial(ctx, drillServer, a.device(), a.token())
		if err != nil {
			return nil, err
		}
		c.OnEvent(printEvent)
		go func() {
			<-ctx.Done()
			_ = c.Close()
		}()
		return c, nil
	}
	sess := trainer.New(a.device(), a.token(), a.deps(), a.options())
	go func() { _ = sess.Run(ctx) }()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sess.Events():
				printEvent(ev)
			}
		}
	}()
	return sess, nil
}

func printEvent(ev trainerdto.Event) {
	switch {
	case ev.Kind == "opponent_replied" && ev.State != nil && len(ev.State.Played) > 0:
		fmt.Printf("\n  opponent: %s\n", ev.State.Played[len(ev.State.Played)-1])
	case ev.Message != "":
		fmt.Printf("\n  %s\n", ev.Message)
	}
}

func init() {
	drillCmd.Flags().StringVar(&drillServer, "server", "", "play against a running \"trainer serve\" (ws://host:8080/ws)")
	rootCmd.AddCommand(drillCmd)
}
