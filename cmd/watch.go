package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/loader"
	"github.com/conneroisu/protoplast/internal/server"
	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/watcher"
)

var (
	watchVerbose bool
	watchSpawn   []string
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Reload templates as their files change",
	Long: `Load every template below the source paths, then watch those paths and
register, reload or unregister templates as files are created, edited or
deleted. Objects spawned with --spawn stay alive for the whole session and are
re-applied whenever one of their templates reloads.

With --serve (or inspect.addr) a live inspector is served at that address:
an HTML view of every template, its dependencies and bound objects that
refreshes as templates change, plus a JSON API under /api.

Examples:
  protoplast watch
  protoplast watch --spawn Orc --spawn Knight --verbose
  protoplast watch --spawn Orc --serve localhost:7070`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "print every processed file and the spawned objects after each change")
	watchCmd.Flags().StringSliceVar(&watchSpawn, "spawn", nil, "templates to keep spawned while watching")
	watchCmd.Flags().String("serve", "", "serve the live inspector on host:port (overrides inspect.addr)")
	bind(watchCmd.Flags(), "serve", "inspect.addr")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	results, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, result := range results {
		printResult(cmd, result, watchVerbose)
	}
	s.printer.Fprintf(out, "Loaded %d templates\n", s.manager.Store().Count())

	var spawned []types.ObjectID
	for _, id := range watchSpawn {
		obj, err := s.manager.Spawn(ctx, id)
		if err != nil {
			return fmt.Errorf("spawn %s: %w", id, err)
		}
		spawned = append(spawned, obj)
		fmt.Fprintf(out, "Spawned %s as object %d\n", id, obj)
	}

	fileWatcher, err := watcher.NewFileWatcher(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.TemplateFilter(s.loader))
	errHandler := errors.NewErrorHandler(s.logger)
	fileWatcher.AddHandler(watcher.SyncHandler(ctx, s.loader, func(result loader.Result) {
		printResult(cmd, result, watchVerbose)
		errHandler.Handle(ctx, result.Err)
	}))
	if watchVerbose && len(spawned) > 0 {
		fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
			for _, obj := range spawned {
				if s.world.Exists(obj) {
					printObject(out, viewObject(s.world, obj), 0)
				}
			}
			return nil
		})
	}

	for _, path := range s.config.Sources.Paths {
		if err := fileWatcher.AddRecursive(path); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to watch path %s: %v\n", path, err)
		} else {
			fmt.Fprintf(out, "Watching: %s\n", path)
		}
	}

	served := make(chan struct{})
	if s.config.Inspect.Addr == "" {
		close(served)
	} else {
		inspector := server.New(s.manager, s.world, s.config.Inspect, s.logger)
		addr, err := inspector.Listen()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Inspector: http://%s/\n", addr)
		go func() {
			defer close(served)
			if err := inspector.Serve(ctx); err != nil {
				s.logger.Error(ctx, err, "Inspector stopped")
			}
		}()
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")

	<-ctx.Done()
	fmt.Fprintln(out, "Stopping file watcher...")
	<-served
	return nil
}

func printResult(cmd *cobra.Command, result loader.Result, verbose bool) {
	switch result.Action {
	case loader.ActionFailed:
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %s\n", result.Path, errors.FormatError(result.Err))
	case loader.ActionUnchanged, loader.ActionIgnored:
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", result.Action, result.Path)
		}
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s (%s)\n", result.Action, result.Template, result.Path)
	}
}
