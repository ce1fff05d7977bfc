package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [flags] FILE",
		Short: "Print the part of FILE that starts at a matching line",
		Long: `read marks every line of FILE matching the -e pattern and prints text
starting at marker K: either N lines, or everything up to the next marker.`,
		Example: `  textparts read -e '^ITEM: TIMESTEP' -k 3 --until-next dump.lammpstrj
  textparts read -e 'Standard orientation' -k 0 -n 12 job.log
  textparts read -e '^\s*\d+\s*$' --all-markers --separator '--\n' frames.xyz`,
		Args: cobra.ExactArgs(1),
		RunE: runRead,
	}
	addSearchFlags(cmd.Flags(), "read")
	cmd.Flags().StringP("regexp", "e", "", "pattern marking the start of each part")
	cmd.Flags().IntP("marker", "k", 0, "index of the marker to start at")
	cmd.Flags().IntP("lines", "n", 0, "print N lines starting at the marker")
	cmd.Flags().Bool("until-next", false, "print up to the next marker (the default without -n)")
	cmd.Flags().Bool("all-markers", false, "print the part at every marker")
	cmd.Flags().String("separator", "", "text printed after each part")
	cmd.MarkFlagRequired("regexp")
	cmd.MarkFlagsMutuallyExclusive("lines", "until-next")
	cmd.MarkFlagsMutuallyExclusive("marker", "all-markers")

	viper.BindPFlag("read.regexp", cmd.Flags().Lookup("regexp"))
	viper.BindPFlag("read.marker", cmd.Flags().Lookup("marker"))
	viper.BindPFlag("read.lines", cmd.Flags().Lookup("lines"))
	viper.BindPFlag("read.all-markers", cmd.Flags().Lookup("all-markers"))
	viper.BindPFlag("read.separator", cmd.Flags().Lookup("separator"))
	return cmd
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	path := args[0]
	k, err := intSetting("read.marker")
	if err != nil {
		return err
	}
	n, err := intSetting("read.lines")
	if err != nil {
		return err
	}
	separator := separatorSetting("read.separator")
	output := cmd.OutOrStdout()

	r, err := openMarked(ctx, "read", path, viper.GetString("read.regexp"))
	if err != nil {
		reportErr(cmd, path, err)
		return errFailed
	}
	defer r.Close()

	if viper.GetBool("read.all-markers") {
		for i := 0; i < r.NumMarkers(); i++ {
			if ctx.Err() != nil {
				return nil
			}
			var b strings.Builder
			if _, err := r.GotoMarker(i); err != nil {
				reportErr(cmd, path, err)
				return errFailed
			}
			if err := r.ReadUntilNextMarker(&b); err != nil {
				reportErr(cmd, path, err)
				return errFailed
			}
			if _, err := fmt.Fprint(output, b.String()+separator); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := r.GotoMarker(k); err != nil {
		reportErr(cmd, path, err)
		return errFailed
	}
	var b strings.Builder
	if n > 0 {
		err = r.ReadLines(n, &b)
	} else {
		err = r.ReadUntilNextMarker(&b)
	}
	// partial reads are still printed
	fmt.Fprint(output, b.String()+separator)
	if err != nil {
		reportErr(cmd, path, err)
		return errFailed
	}
	return nil
}
