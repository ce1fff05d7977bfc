package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errFailed is returned after per-file errors have already been reported.
var errFailed = errors.New("one or more inputs failed")

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "textparts",
		Short: "Split and search large line-oriented data files",
		Long: `textparts streams large text files such as molecular trajectories,
LAMMPS dumps and quantum-chemistry logs. It splits them into parts
(frames, blocks) and indexes matching lines for quick random access.`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	root.PersistentFlags().String("config", "", "config file (TOML, YAML or JSON)")
	root.PersistentFlags().String("log-level", "warning", "log level: debug, info, warning, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", root.PersistentFlags().Lookup("log-format"))

	viper.SetEnvPrefix("TEXTPARTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(newSplitCmd(), newMarkCmd(), newReadCmd())
	return root
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig(cmd *cobra.Command, args []string) error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return setupLogging(cmd.ErrOrStderr())
}

// logger is configured by setupLogging before any command runs.
var logger = logrus.NewEntry(logrus.New())

func setupLogging(w io.Writer) error {
	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	switch format := viper.GetString("log-format"); format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format: %s (use 'text' or 'json')", format)
	}
	logger = logrus.NewEntry(l).WithField("app", "textparts")
	return nil
}

// intSetting reads an integer setting. Values from config files and the
// environment arrive as strings, so they are converted strictly instead of
// silently becoming zero.
func intSetting(key string) (int, error) {
	n, err := cast.ToIntE(viper.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: %d is negative", key, n)
	}
	return n, nil
}

// separatorSetting reads a separator, expanding Go escapes such as \n and
// \t so they can be typed on the command line. Values that do not unquote
// are used as given.
func separatorSetting(key string) string {
	sep := viper.GetString(key)
	if unquoted, err := strconv.Unquote(`"` + sep + `"`); err == nil {
		return unquoted
	}
	return sep
}

// inputArgs returns the files to read. With no arguments, piped stdin is
// read as "-".
func inputArgs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, fmt.Errorf("no files specified")
	}
	// Check both ModeCharDevice (Unix) and ModeNamedPipe (Windows) for cross-platform compatibility
	isPipe := (stat.Mode()&os.ModeCharDevice) == 0 || (stat.Mode()&os.ModeNamedPipe) != 0
	if !isPipe {
		return nil, fmt.Errorf("no files specified")
	}
	return []string{"-"}, nil
}

// reportErr prints a per-input error the way the command line tools do.
func reportErr(cmd *cobra.Command, name string, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "textparts: %s: %v\n", name, err)
}
