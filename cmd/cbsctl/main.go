// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/srdqty/mps/lib/arena"
	"github.com/srdqty/mps/lib/cbs"
)

type logLevelFlag struct {
	logrus.Level
}

func (lvl *logLevelFlag) Type() string { return "loglevel" }
func (lvl *logLevelFlag) Set(str string) error {
	var err error
	lvl.Level, err = logrus.ParseLevel(str)
	return err
}

var _ pflag.Value = (*logLevelFlag)(nil)

// engineFlags collects the construction-time knobs of a cbs.CBS, mirroring
// the fields of cbs.Config that make sense to drive from the command line.
type engineFlags struct {
	arenaBase   uint64
	arenaSize   uint64
	alignment   uint64
	minSize     uint64
	poolCap     int
	mayUseInline bool
	fastFind    bool
}

func (f *engineFlags) register(fs *pflag.FlagSet) {
	fs.Uint64Var(&f.arenaBase, "arena-base", 0, "lowest address of the simulated arena")
	fs.Uint64Var(&f.arenaSize, "arena-size", 1<<20, "size in bytes of the simulated arena")
	fs.Uint64Var(&f.alignment, "alignment", 16, "grain size every range's base and limit must be a multiple of")
	fs.Uint64Var(&f.minSize, "min-size", 0, "threshold at and above which a block is \"interesting\"")
	fs.IntVar(&f.poolCap, "pool-capacity", 0, "maximum number of tree nodes the index may allocate (0 means unbounded)")
	fs.BoolVar(&f.mayUseInline, "inline", true, "fall back to writing bookkeeping into the arena when the node pool is exhausted")
	fs.BoolVar(&f.fastFind, "fast-find", true, "maintain the subtree-maximum augmentation needed by find-first/find-last")
}

func (f *engineFlags) build() (*cbs.CBS, *arena.Arena, error) {
	a := arena.New(cbs.Addr(f.arenaBase), cbs.Size(f.arenaSize))
	c, err := cbs.New(cbs.Config{
		Pool:         cbs.NewBoundedPool(f.poolCap),
		Mem:          a,
		MinSize:      cbs.Size(f.minSize),
		Alignment:    cbs.Size(f.alignment),
		MayUseInline: f.mayUseInline,
		FastFind:     f.fastFind,
	})
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return c, a, nil
}

func main() {
	logLevelFlag := logLevelFlag{
		Level: logrus.InfoLevel,
	}
	var flags engineFlags

	argparser := &cobra.Command{
		Use:   "cbsctl {[flags]|SUBCOMMAND}",
		Short: "Drive a Coalescing Block Structure from the command line",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{ //nolint:exhaustivestruct
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&logLevelFlag, "verbosity", "set the verbosity")
	flags.register(argparser.PersistentFlags())

	argparserRun := &cobra.Command{
		Use:   "run [script]",
		Short: "Execute a script of CBS operations, one per line, against a single engine",
		Args:  cobra.MaximumNArgs(1),
	}
	argparser.AddCommand(argparserRun)
	argparserRun.RunE = func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		logger := logrus.New()
		logger.SetLevel(logLevelFlag.Level)
		ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			c, a, err := flags.build()
			if err != nil {
				return err
			}
			defer a.Close()
			defer c.Finish()

			return runScript(ctx, c, in, cmd.OutOrStdout())
		})
		return grp.Wait()
	}

	if err := argparser.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}

// runScript reads one CBS operation per line from in and prints its result
// to out, the way an interactive session would. Blank lines and lines
// starting with "#" are ignored.
func runScript(ctx context.Context, c *cbs.CBS, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dlog.Debugf(ctx, "line %d: %s", lineNo, line)
		if err := runLine(c, line, out); err != nil {
			return fmt.Errorf("line %d: %q: %w", lineNo, line, err)
		}
	}
	return scanner.Err()
}

func runLine(c *cbs.CBS, line string, out io.Writer) error {
	fields := strings.Fields(line)
	cmdName, rest := fields[0], fields[1:]

	switch cmdName {
	case "insert":
		base, limit, err := parseRange(rest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%v\n", c.Insert(base, limit))

	case "delete":
		base, limit, err := parseRange(rest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%v\n", c.Delete(base, limit))

	case "find-first", "find-last":
		size, err := parseOne(rest)
		if err != nil {
			return err
		}
		var found bool
		var r cbs.Range
		if cmdName == "find-first" {
			found, r = c.FindFirst(cbs.Size(size))
		} else {
			found, r = c.FindLast(cbs.Size(size))
		}
		if !found {
			fmt.Fprintf(out, "NOT_FOUND\n")
		} else {
			fmt.Fprintf(out, "%v\n", r)
		}

	case "set-min-size":
		size, err := parseOne(rest)
		if err != nil {
			return err
		}
		c.SetMinSize(cbs.Size(size))
		fmt.Fprintf(out, "OK\n")

	case "check":
		if err := c.Check(); err != nil {
			fmt.Fprintf(out, "FAIL: %v\n", err)
		} else {
			fmt.Fprintf(out, "OK\n")
		}

	case "describe":
		opts := cbs.DescribeOptions{}
		for _, f := range rest {
			if f == "--emergency" {
				opts.ShowEmergency = true
			}
		}
		if err := c.Describe(out, opts); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown operation %q", cmdName)
	}
	return nil
}

func parseOne(fields []string) (uint64, error) {
	if len(fields) != 1 {
		return 0, fmt.Errorf("expected exactly one argument, got %d", len(fields))
	}
	return strconv.ParseUint(fields[0], 0, 64)
}

func parseRange(fields []string) (base, limit cbs.Addr, err error) {
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected exactly two arguments (base, limit), got %d", len(fields))
	}
	b, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return 0, 0, err
	}
	l, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return 0, 0, err
	}
	return cbs.Addr(b), cbs.Addr(l), nil
}
