package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jmurray2011/textparts/internal/follow"
	"github.com/jmurray2011/textparts/pkg/marker"
	"github.com/jmurray2011/textparts/pkg/search"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// engineValue is a flag restricted to the search engine names.
type engineValue string

var _ pflag.Value = (*engineValue)(nil)

func (e *engineValue) String() string { return string(*e) }

func (e *engineValue) Set(s string) error {
	switch s {
	case search.EngineAuto, search.EngineRipgrep, search.EngineBuiltin:
		*e = engineValue(s)
		return nil
	}
	return fmt.Errorf("must be %s, %s or %s", search.EngineAuto, search.EngineRipgrep, search.EngineBuiltin)
}

func (e *engineValue) Type() string { return "engine" }

func addSearchFlags(flags *pflag.FlagSet, prefix string) {
	engine := engineValue(search.EngineAuto)
	flags.BoolP("literal", "F", false, "treat PATTERN as literal strings separated by |")
	flags.IntP("max-count", "m", 0, "stop after NUM matching lines")
	flags.Var(&engine, "engine", "search engine: auto, rg or builtin")

	viper.BindPFlag(prefix+".literal", flags.Lookup("literal"))
	viper.BindPFlag(prefix+".max-count", flags.Lookup("max-count"))
	viper.BindPFlag(prefix+".engine", flags.Lookup("engine"))
}

// searchQuery builds the query from the search settings under prefix.
func searchQuery(prefix, pattern string) (search.Query, error) {
	maxCount, err := intSetting(prefix + ".max-count")
	if err != nil {
		return search.Query{}, err
	}
	q := search.Query{Pattern: pattern, MaxCount: maxCount}
	if viper.GetBool(prefix + ".literal") {
		q = search.LiteralQuery(pattern)
		q.MaxCount = maxCount
	}
	return q, nil
}

func openMarked(ctx context.Context, prefix, path, pattern string) (*marker.Reader, error) {
	q, err := searchQuery(prefix, pattern)
	if err != nil {
		return nil, err
	}
	s, err := search.ForEngine(viper.GetString(prefix+".engine"), logger)
	if err != nil {
		return nil, err
	}
	r, err := marker.Open(path, marker.WithSearcher(s), marker.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if _, err := r.MarkQuery(ctx, q); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func newMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark [flags] PATTERN FILE",
		Short: "Print the byte offset of every line matching PATTERN",
		Long: `mark prints the absolute byte offset of each line of FILE that matches
PATTERN, one per line. ripgrep is used when installed.`,
		Example: `  textparts mark '^ITEM: TIMESTEP' dump.lammpstrj
  textparts mark -F 'SCF Done|Standard orientation' job.log
  textparts mark -f --pid 4242 '^\s*\d+\s*$' running.xyz`,
		Args: cobra.ExactArgs(2),
		RunE: runMark,
	}
	addSearchFlags(cmd.Flags(), "mark")
	cmd.Flags().BoolP("follow", "f", false, "keep printing offsets as FILE grows")
	cmd.Flags().Float64P("sleep-interval", "s", 0.1, "with -f, check for changes every N seconds")
	cmd.Flags().Int("pid", 0, "with -f, terminate after process ID dies")

	viper.BindPFlag("mark.follow", cmd.Flags().Lookup("follow"))
	viper.BindPFlag("mark.sleep-interval", cmd.Flags().Lookup("sleep-interval"))
	viper.BindPFlag("mark.pid", cmd.Flags().Lookup("pid"))
	return cmd
}

func runMark(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pattern, path := args[0], args[1]
	output := cmd.OutOrStdout()

	if viper.GetBool("mark.follow") {
		q, err := searchQuery("mark", pattern)
		if err != nil {
			return err
		}
		pid, err := intSetting("mark.pid")
		if err != nil {
			return err
		}
		f := follow.NewFollower(follow.Config{
			Path:         path,
			Query:        q,
			PollInterval: time.Duration(viper.GetFloat64("mark.sleep-interval") * float64(time.Second)),
			PID:          pid,
			Log:          logger,
		})
		if err := f.Follow(ctx, output); err != nil {
			reportErr(cmd, path, err)
			return errFailed
		}
		return nil
	}

	r, err := openMarked(ctx, "mark", path, pattern)
	if err != nil {
		reportErr(cmd, path, err)
		return errFailed
	}
	defer r.Close()

	var b strings.Builder
	for _, off := range r.Markers() {
		fmt.Fprintln(&b, off)
	}
	_, err = fmt.Fprint(output, b.String())
	return err
}
