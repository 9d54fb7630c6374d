// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"io"
	"os"
	"slices"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/smartscp/pkg/config"
	"github.com/walteh/smartscp/pkg/endpoint"
	"github.com/walteh/smartscp/pkg/log"
	"github.com/walteh/smartscp/pkg/operation"
	"github.com/walteh/smartscp/pkg/status"
	"github.com/walteh/smartscp/pkg/transport"
	"github.com/walteh/smartscp/pkg/transport/dryrun"
	"github.com/walteh/smartscp/pkg/transport/scp"

	_ "github.com/walteh/smartscp/pkg/transport/local"
)

// rootFlags holds every command line flag
type rootFlags struct {
	configFile  string
	debug       bool
	dryRun      bool
	transport   string
	workers     int
	concurrency int
	ignoreFile  string
	exclude     []string
	localRoot   string
}

// newRootCmd creates the smartscp command
func newRootCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartscp <source> <destination>",
		Short: "Copy a tree to or from an ssh host, skipping what git ignores",
		Long: `smartscp copies a local file or directory to a remote host, or a remote tree
to the local machine. Uploads skip every path matched by the tree's .gitignore
files, so build output and dependencies never cross the wire.

One argument must name the remote side as host:path or user@host:path. For
uploads the remote path may be omitted: paths under your home directory keep
their place under the remote home, anything else lands in the remote home.`,
		Example: `  smartscp ./project devbox
  smartscp ~/src/api alice@build:/srv/api
  smartscp devbox:/var/log/app ./logs`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       GetVersionInfo().Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, flags, args, cmd.OutOrStdout())
		},
	}
	cmd.SetVersionTemplate(FormatVersion())

	addRootFlags(cmd, flags)
	return cmd
}

// addRootFlags adds the flags to the root command
func addRootFlags(cmd *cobra.Command, flags *rootFlags) {
	f := cmd.Flags()
	f.StringVarP(&flags.configFile, "config", "c", "", "config file path (default: $XDG_CONFIG_HOME/smartscp/config.yaml)")
	f.BoolVarP(&flags.debug, "debug", "d", false, "enable debug logging")
	f.BoolVar(&flags.dryRun, "dry-run", false, "print the plan without copying")
	f.StringVar(&flags.transport, "transport", "", "transport to use: scp, local or dry-run")
	f.IntVar(&flags.workers, "workers", 0, "parallel directory scans during the walk")
	f.IntVar(&flags.concurrency, "concurrency", 0, "parallel file copies")
	f.StringVar(&flags.ignoreFile, "ignore-file", "", "per-directory ignore file name")
	f.StringArrayVar(&flags.exclude, "exclude", nil, "extra gitignore pattern to exclude (repeatable)")
	f.StringVar(&flags.localRoot, "local-root", "", "mount point of the remote filesystem for the local transport")
}

// wantsDebug scans raw arguments for the debug flag, since logging is set up
// before cobra parses
func wantsDebug(args []string) bool {
	return slices.Contains(args, "--debug") || slices.Contains(args, "-d")
}

// setupLogging configures zerolog for the terminal
func setupLogging(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	writer := zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger
}

// loadConfig loads the config and lets explicitly set flags override it
func loadConfig(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, flags.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("transport") {
		cfg.Transport = flags.transport
	}
	if changed("workers") {
		cfg.Workers = flags.workers
	}
	if changed("concurrency") {
		cfg.Concurrency = flags.concurrency
	}
	if changed("ignore-file") {
		cfg.IgnoreFile = flags.ignoreFile
	}
	if changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, flags.exclude...)
	}
	if changed("local-root") {
		cfg.LocalRoot = flags.localRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}

// newTransport builds the configured transport. A dry run wraps the real
// transport so probes and listings still reach the remote side.
func newTransport(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) (transport.Transport, bool, error) {
	name := cfg.Transport
	if name == dryrun.Name {
		name = scp.Name
		dryRun = true
	}

	inner, err := transport.New(ctx, name, cfg.TransportSettings(out))
	if err != nil {
		return nil, false, errors.Errorf("creating transport: %w", err)
	}
	if dryRun {
		return dryrun.New(out, inner), true, nil
	}
	return inner, false, nil
}

// newParser builds the endpoint parser for this process
func newParser(ctx context.Context, fsys afero.Fs, cfg *config.Config) (*endpoint.Parser, error) {
	env, err := endpoint.OSEnvironment()
	if err != nil {
		return nil, err
	}

	sshConfig := cfg.SSH.ConfigFile
	if sshConfig == "" {
		sshConfig = endpoint.DefaultSSHConfigPath(env.Home)
	}
	homes, err := endpoint.LoadSSHConfigHomes(fsys, sshConfig, env.User)
	if err != nil {
		return nil, errors.Errorf("loading ssh config: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("ssh_config", sshConfig).Str("user", env.User).Msg("resolved environment")

	return endpoint.NewParser(fsys, env, homes), nil
}

// 🚀 run performs one transfer
func run(ctx context.Context, cmd *cobra.Command, flags *rootFlags, args []string, out io.Writer) error {
	logger := zerolog.Ctx(ctx)
	fsys := afero.NewOsFs()

	cfg, err := loadConfig(ctx, cmd, flags)
	if err != nil {
		return err
	}
	logger.Debug().Str("config", cfg.Location()).Stringer("settings", cfg).Msg("configuration loaded")

	parser, err := newParser(ctx, fsys, cfg)
	if err != nil {
		return err
	}
	spec, err := parser.Parse(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	logger.Debug().Stringer("spec", spec).Msg("parsed arguments")

	tr, dryRun, err := newTransport(ctx, cfg, flags.dryRun, out)
	if err != nil {
		return err
	}

	report := status.NewReport()
	console := log.NewWithZerolog(out, *logger)

	op, err := operation.New(operation.Options{
		FS:             fsys,
		Transport:      tr,
		Report:         report,
		Console:        console,
		IgnoreFile:     cfg.IgnoreFile,
		Ignore:         cfg.IgnoreOptions(),
		Workers:        cfg.Workers,
		FollowSymlinks: cfg.FollowSymlinksEnabled(),
		Concurrency:    cfg.Concurrency,
		DryRun:         dryRun,
	})
	if err != nil {
		return errors.Errorf("creating operator: %w", err)
	}

	console.StartTransfer(ctx, log.TransferHeader{
		Direction:   spec.Direction.String(),
		Source:      spec.Source().String(),
		Destination: spec.Destination().String(),
		Transport:   tr.Name(),
	})
	result, err := op.Transfer(ctx, spec)
	console.EndTransfer(ctx)

	user := log.NewUserLoggerTo(ctx, out)
	user.LogWarnings(report.Warnings())
	user.LogIgnored(report.Ignored())

	if result != nil && result.Plan != nil {
		dirs, files := result.Plan.Counts()
		user.LogSummary(status.FormatSummary(dirs, files, result.Plan.Bytes(), len(report.Ignored()), report.IgnoredDirs(), len(report.Warnings())), dryRun)
	}

	if err != nil {
		return errors.Errorf("transferring %s: %w", spec, err)
	}
	return nil
}
