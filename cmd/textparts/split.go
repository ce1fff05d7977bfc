package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/jmurray2011/textparts/pkg/linesource"
	"github.com/jmurray2011/textparts/pkg/partition"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [file...]",
		Short: "Split files into parts such as trajectory frames",
		Long: `split cuts each input into parts and prints them, each followed by the
separator. Choose at most one rule; without one the whole input is one part.
Files ending in .gz or .zst are decompressed; "-" reads standard input.`,
		Example: `  textparts split --counted 1 frames.xyz
  textparts split -p '^\s*\d+\s*$' --count run1.xyz run2.xyz.gz
  textparts split -t '^END' input.pdb`,
		Args: cobra.ArbitraryArgs,
		RunE: runSplit,
	}
	cmd.Flags().IntP("lines", "n", 0, "parts of N lines")
	cmd.Flags().StringP("terminated", "t", "", "end a part with each line matching REGEX")
	cmd.Flags().StringP("preceded", "p", "", "start a new part at each line matching REGEX")
	cmd.Flags().String("counted", "", "blocks whose first line counts the body lines that follow N fixed lines (XYZ: 1)")
	cmd.Flags().String("separator", "--\n", "text printed after each part")
	cmd.Flags().Bool("count", false, "print the number of parts per file instead of the parts")

	viper.BindPFlag("split.lines", cmd.Flags().Lookup("lines"))
	viper.BindPFlag("split.terminated", cmd.Flags().Lookup("terminated"))
	viper.BindPFlag("split.preceded", cmd.Flags().Lookup("preceded"))
	viper.BindPFlag("split.counted", cmd.Flags().Lookup("counted"))
	viper.BindPFlag("split.separator", cmd.Flags().Lookup("separator"))
	viper.BindPFlag("split.count", cmd.Flags().Lookup("count"))
	return cmd
}

// splitPolicy builds the policy selected by the split settings. It returns a
// constructor because every input needs its own stateless copy.
func splitPolicy() (func() partition.Policy, error) {
	var chosen []string
	var policy func() partition.Policy

	lines, err := intSetting("split.lines")
	if err != nil {
		return nil, err
	}
	if lines > 0 {
		chosen = append(chosen, "--lines")
		policy = func() partition.Policy { return partition.FixedLines(lines) }
	}
	if expr := viper.GetString("split.terminated"); expr != "" {
		pred, err := partition.MatchRegexp(expr)
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, "--terminated")
		policy = func() partition.Policy { return partition.TerminatedBy(pred) }
	}
	if expr := viper.GetString("split.preceded"); expr != "" {
		pred, err := partition.MatchRegexp(expr)
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, "--preceded")
		policy = func() partition.Policy { return partition.PrecededBy(pred) }
	}
	if viper.GetString("split.counted") != "" {
		extra, err := intSetting("split.counted")
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, "--counted")
		policy = func() partition.Policy { return partition.Counted(extra) }
	}

	switch len(chosen) {
	case 0:
		return partition.Whole, nil
	case 1:
		return policy, nil
	default:
		return nil, fmt.Errorf("choose one of %v", chosen)
	}
}

func openInput(name string) (*linesource.Source, error) {
	if name == "-" {
		return linesource.New(os.Stdin, linesource.WithLogger(logger)), nil
	}
	return linesource.Open(name, linesource.WithLogger(logger))
}

func displayName(name string) string {
	if name == "-" {
		return "standard input"
	}
	return name
}

func runSplit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	args, err := inputArgs(args)
	if err != nil {
		return err
	}
	policy, err := splitPolicy()
	if err != nil {
		return err
	}

	if viper.GetBool("split.count") {
		return countParts(ctx, cmd, args, policy)
	}

	output := cmd.OutOrStdout()
	separator := separatorSetting("split.separator")
	failed := false
	for _, name := range args {
		if err := writeParts(ctx, cmd, name, policy(), output, separator); err != nil {
			reportErr(cmd, displayName(name), err)
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func writeParts(ctx context.Context, cmd *cobra.Command, name string, policy partition.Policy, output io.Writer, separator string) error {
	src, err := openInput(name)
	if err != nil {
		return err
	}
	parts := partition.New(src, policy, partition.WithLogger(logger))
	defer parts.Close()

	for part, err := range parts.All() {
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, linesource.ErrDecode) {
			reportErr(cmd, displayName(name), err)
			continue
		}
		if err != nil {
			return err
		}
		if _, err := io.WriteString(output, part+separator); err != nil {
			return err
		}
	}
	return nil
}

// partCount is the outcome of counting one input.
type partCount struct {
	name  string
	parts int
	err   error
}

// countParts counts the parts of every input on a bounded pool. Results are
// printed in argument order.
func countParts(ctx context.Context, cmd *cobra.Command, args []string, policy func() partition.Policy) error {
	p := pool.NewWithResults[partCount]().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, name := range args {
		p.Go(func() partCount {
			n, err := countOne(ctx, name, policy())
			return partCount{name: name, parts: n, err: err}
		})
	}

	failed := false
	output := cmd.OutOrStdout()
	for _, c := range p.Wait() {
		if c.err != nil {
			reportErr(cmd, displayName(c.name), c.err)
			failed = true
			continue
		}
		if len(args) > 1 {
			fmt.Fprintf(output, "%s\t%d\n", displayName(c.name), c.parts)
		} else {
			fmt.Fprintf(output, "%d\n", c.parts)
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func countOne(ctx context.Context, name string, policy partition.Policy) (int, error) {
	src, err := openInput(name)
	if err != nil {
		return 0, err
	}
	parts := partition.New(src, policy, partition.WithLogger(logger))
	defer parts.Close()

	n := 0
	for _, err := range parts.All() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if errors.Is(err, linesource.ErrDecode) {
			logger.WithFields(logrus.Fields{"fn": "countOne", "input": name, "error": err}).Warn("skipping line")
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
