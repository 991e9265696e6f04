package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-answer-llm/src/eventloop"
	"screen-answer-llm/src/singleinstance"
)

type stressOptions struct {
	n        int
	trigger  string
	deadline time.Duration
}

type delegator interface {
	Delegate(ctx context.Context, trigger string) (bool, error)
}

type tally struct {
	ok, absent, failed atomic.Int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-trigger",
		Short:         "Stress test trigger delegation to the resident instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, singleinstance.NewClient(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent clients")
	cmd.Flags().StringVar(&opts.trigger, "trigger", string(eventloop.TriggerClipboard), "trigger every client sends")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, client delegator, out io.Writer) error {
	t, err := eventloop.ParseTrigger(opts.trigger)
	if err != nil {
		return err
	}

	start := time.Now()
	res := stress(client, opts.n, string(t), opts.deadline)
	fmt.Fprintf(out, "launched=%d ok=%d no_resident=%d err=%d elapsed=%s\n",
		opts.n, res.ok.Load(), res.absent.Load(), res.failed.Load(), time.Since(start))
	return nil
}

func stress(client delegator, n int, trigger string, deadline time.Duration) *tally {
	var (
		wg  sync.WaitGroup
		res tally
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()
			delegated, err := client.Delegate(ctx, trigger)
			switch {
			case err != nil:
				res.failed.Add(1)
			case delegated:
				res.ok.Add(1)
			default:
				res.absent.Add(1)
			}
		}()
	}
	wg.Wait()
	return &res
}
