package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-build-stamper/internal/config"
	"github.com/launchbynttdata/launch-build-stamper/internal/domain/buildmeta"
	"github.com/launchbynttdata/launch-build-stamper/internal/domain/bump"
	"github.com/launchbynttdata/launch-build-stamper/internal/layout"
	"github.com/launchbynttdata/launch-build-stamper/internal/logging"
	"github.com/launchbynttdata/launch-build-stamper/internal/revision"
	"github.com/launchbynttdata/launch-build-stamper/internal/services/stamping"
	"github.com/launchbynttdata/launch-build-stamper/internal/services/versioning"
	"github.com/launchbynttdata/launch-build-stamper/internal/version"
)

const (
	envProjectRoot = "BST_PROJECT_ROOT"
	envModule      = "BST_MODULE"
	envLogLevel    = "BST_LOG_LEVEL"
	envRevision    = "BST_REVISION"
	envGitBinary   = "BST_GIT_BINARY"
	envGitTimeout  = "BST_GIT_TIMEOUT"
	envDryRun      = "BST_DRY_RUN"
)

const (
	flagProjectRoot = "project-root"
	flagModule      = "module"
	flagLogLevel    = "log-level"
	flagRevision    = "revision"
	flagGitBinary   = "git-binary"
	flagGitTimeout  = "git-timeout"
	flagDryRun      = "dry-run"
	flagShort       = "short"
)

// Execute runs the CLI root command with the provided context.
func Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return newRootCommand(nil).ExecuteContext(ctx)
}

type rootFlagSet struct {
	projectRoot *stringFlag
	module      *stringFlag
	logLevel    *stringFlag
}

type stampFlagSet struct {
	revision   *stringFlag
	gitBinary  *stringFlag
	gitTimeout *durationFlag
	dryRun     *boolFlag
}

type runtimeConfig struct {
	resolver config.Resolver
	logger   *zap.Logger
	project  layout.Project
}

// newRootCommand builds the command tree. A nil clock stamps with time.Now.
func newRootCommand(now stamping.Clock) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bst",
		Short:         "Build stamper: increments the build number and regenerates the version header",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version.Version
	cmd.SetVersionTemplate("bst {{.Version}}\n")

	flags := bindRootFlags(cmd)
	cmd.AddCommand(
		newStampCommand(flags, now),
		newShowCommand(flags),
		newBumpCommand(flags),
		newPromoteCommand(flags),
		newVersionCommand(),
	)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata of the bst binary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "bst %s\ncommit: %s\nbuild date: %s\n", version.Version, version.Commit, version.BuildDate); err != nil {
				return fmt.Errorf("writing version info: %w", err)
			}
			return nil
		},
	}
}

func bindRootFlags(cmd *cobra.Command) *rootFlagSet {
	fs := cmd.PersistentFlags()
	return &rootFlagSet{
		projectRoot: bindStringFlag(fs, flagProjectRoot, flagProjectRoot, "C", envProjectRoot, ".", "Project root containing Source/ and the .uproject file"),
		module:      bindStringFlag(fs, flagModule, flagModule, "m", envModule, "", "Module name; defaults to the base name of the single .uproject in the project root"),
		logLevel:    bindStringFlag(fs, flagLogLevel, flagLogLevel, "", envLogLevel, logging.LevelTerse, "Log verbosity (terse or verbose)"),
	}
}

func newStampCommand(rootFlags *rootFlagSet, now stamping.Clock) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "Increment the build number, stamp date, time and git revision, and regenerate the header",
		Args:  cobra.NoArgs,
	}

	stampFlags := bindStampFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		runtime, cleanup, err := buildRuntime(rootFlags)
		if err != nil {
			return err
		}
		defer cleanup()

		source, dryRun, err := stampFlags.resolve(runtime)
		if err != nil {
			return err
		}

		service := stamping.NewService(source, now, runtime.logger)
		result, err := service.StampOnce(ctx, stamping.Config{Project: runtime.project, DryRun: dryRun})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.DryRun {
			if _, err := out.Write(result.Header); err != nil {
				return fmt.Errorf("writing header preview: %w", err)
			}
			return nil
		}

		if _, err := fmt.Fprintln(out, result.Metadata.Summary()); err != nil {
			return fmt.Errorf("writing stamp result: %w", err)
		}
		return nil
	}

	return cmd
}

func bindStampFlags(cmd *cobra.Command) *stampFlagSet {
	fs := cmd.Flags()
	return &stampFlagSet{
		revision:   bindStringFlag(fs, flagRevision, flagRevision, "", envRevision, "", "Use this revision instead of asking git"),
		gitBinary:  bindStringFlag(fs, flagGitBinary, flagGitBinary, "", envGitBinary, revision.DefaultBinary, "Git executable used to query the revision"),
		gitTimeout: bindDurationFlag(fs, flagGitTimeout, flagGitTimeout, "", envGitTimeout, revision.DefaultTimeout, "Upper bound for the git revision query"),
		dryRun:     bindBoolFlag(fs, flagDryRun, flagDryRun, "", envDryRun, false, "Print the header that would be written without touching any file"),
	}
}

func (f *stampFlagSet) resolve(runtime runtimeConfig) (revision.Source, bool, error) {
	dryRun, err := f.dryRun.Value(runtime.resolver)
	if err != nil {
		return nil, false, err
	}

	if fixed := f.revision.Value(runtime.resolver); fixed != "" {
		runtime.logger.Debug("using fixed revision", zap.String("revision", fixed))
		return revision.Fixed(fixed), dryRun, nil
	}

	binary := f.gitBinary.Value(runtime.resolver)
	if binary == "" {
		return nil, false, fmt.Errorf("%s must not be empty", flagGitBinary)
	}
	timeout, err := f.gitTimeout.Value(runtime.resolver)
	if err != nil {
		return nil, false, err
	}

	return revision.GitProbe{Dir: runtime.project.Root, Binary: binary, Timeout: timeout}, dryRun, nil
}

func newShowCommand(rootFlags *rootFlagSet) *cobra.Command {
	var shortFlag *boolFlag

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted build metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, cleanup, err := buildRuntime(rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			short, err := shortFlag.Value(runtime.resolver)
			if err != nil {
				return err
			}

			m, err := versioning.NewService(runtime.logger).Show(runtime.project)
			if err != nil {
				return err
			}

			if short {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), m.Version().String()); err != nil {
					return fmt.Errorf("writing version: %w", err)
				}
				return nil
			}

			renderMetadata(cmd, runtime.project, m)
			return nil
		},
	}

	shortFlag = bindBoolFlag(cmd.Flags(), flagShort, flagShort, "s", "", false, "Print only the semantic version with the build number as build metadata")

	return cmd
}

func renderMetadata(cmd *cobra.Command, project layout.Project, m buildmeta.Metadata) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Module", project.Module},
		{"Version", m.Version().String()},
		{"Build number", m.BuildNumber},
		{"Build date", m.BuildDate},
		{"Build time", m.BuildTime},
		{"Git hash", m.GitHash},
		{"Metadata file", project.MetaPath()},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func newBumpCommand(rootFlags *rootFlagSet) *cobra.Command {
	return &cobra.Command{
		Use:       "bump <major|minor|patch>",
		Short:     "Apply a semantic version bump to the persisted metadata",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{bump.BumpMajor.String(), bump.BumpMinor.String(), bump.BumpPatch.String()},
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := bump.Parse(args[0])
			if err != nil {
				return err
			}

			runtime, cleanup, err := buildRuntime(rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := versioning.NewService(runtime.logger).Bump(runtime.project, intent)
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), result.After.Version().String()); err != nil {
				return fmt.Errorf("writing bump result: %w", err)
			}
			return nil
		},
	}
}

func newPromoteCommand(rootFlags *rootFlagSet) *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Move a reviewed bootstrap sidecar into place as the metadata file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, cleanup, err := buildRuntime(rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			path, err := versioning.NewService(runtime.logger).Promote(runtime.project)
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), path); err != nil {
				return fmt.Errorf("writing promote result: %w", err)
			}
			return nil
		},
	}
}

func buildRuntime(flags *rootFlagSet) (runtimeConfig, func(), error) {
	nopResolver := config.NewResolver(zap.NewNop())
	logLevel := flags.logLevel.Value(nopResolver)

	logger, err := logging.New(strings.ToLower(logLevel))
	if err != nil {
		return runtimeConfig{}, nil, fmt.Errorf("configuring logger: %w", err)
	}

	resolver := config.NewResolver(logger)
	_ = flags.logLevel.Value(resolver)

	root := flags.projectRoot.Value(resolver)
	if root == "" {
		_ = logger.Sync()
		return runtimeConfig{}, nil, fmt.Errorf("%s is required (set %s or --%s)", flagProjectRoot, envProjectRoot, flagProjectRoot)
	}

	project, err := layout.Resolve(root, flags.module.Value(resolver))
	if err != nil {
		_ = logger.Sync()
		return runtimeConfig{}, nil, err
	}
	logger.Debug("project resolved",
		zap.String("root", project.Root),
		zap.String("module", project.Module),
	)

	cleanup := func() {
		_ = logger.Sync()
	}

	return runtimeConfig{
		resolver: resolver,
		logger:   logger,
		project:  project,
	}, cleanup, nil
}
