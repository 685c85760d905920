package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grahamwalsh/syncdeck/internal/cache"
	"github.com/grahamwalsh/syncdeck/internal/dashboard"
	"github.com/grahamwalsh/syncdeck/internal/pipeline"
	"github.com/grahamwalsh/syncdeck/internal/remote"
	"github.com/grahamwalsh/syncdeck/internal/ui"
	"github.com/grahamwalsh/syncdeck/internal/watch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dashboard daemon: event stream, cache, WebSocket feed",
	Long: `Run the full dashboard loop. sdeck subscribes to the daemon's event
stream, keeps the local category cache fresh, watches configured folder
roots for local edits, and broadcasts breakdown snapshots over WebSocket.

Connect a client to ws://localhost:<port>/ws to follow along.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Folders) == 0 {
			return fmt.Errorf("no folders configured; add a folders section to the config file")
		}

		client, err := remote.NewClient(&remote.Config{
			BaseURL: cfg.Daemon.URL,
			APIKey:  cfg.Daemon.APIKey,
			PerPage: cfg.Daemon.PageSize,
			Logger:  newLogger("[remote] "),
		})
		if err != nil {
			return err
		}

		store, err := cache.OpenWithConfig(cfg.Cache.Path, &cache.Config{TTL: cfg.Cache.TTL})
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.InitSchema(); err != nil {
			return err
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   cfg.Dashboard.Port,
			Logger: newLogger("[dashboard] "),
		})
		if err := server.Start(); err != nil {
			return err
		}
		handler := dashboard.NewHandler(server, store, newLogger("[dashboard] "))

		// A terminal front-end chains its controller's Reapply into
		// these fan-outs alongside the feed.
		pip, err := pipeline.New(store, client, &pipeline.Config{
			InFlightTimeout: cfg.Pipeline.InFlightTimeout,
			LocalExists:     localChecker(),
			OnRefreshed:     refreshHooks(handler.OnRefreshed),
			OnFetchError:    handler.OnFetchError,
			Logger:          newLogger("[pipeline] "),
		})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if ok, err := client.SupportsLocalChanged(ctx); err == nil && !ok {
			ui.Warning("Daemon predates the locally-changed endpoint; local-only detection is disabled")
		}

		go func() {
			if err := pip.Run(ctx); err != nil && ctx.Err() == nil {
				ui.Error(fmt.Sprintf("Pipeline stopped: %v", err))
			}
		}()

		if cfg.Watch.Enabled {
			watcher, err := watch.New(pip.Dispatch, &watch.Config{
				DebounceInterval: cfg.Watch.DebounceInterval,
				Logger:           newLogger("[watch] "),
			})
			if err != nil {
				return err
			}
			for _, folder := range cfg.Folders {
				if err := watcher.AddFolder(folder.ID, folder.Root); err != nil {
					ui.Warning(fmt.Sprintf("Cannot watch %s: %v", folder.Root, err))
				}
			}
			if err := watcher.Start(); err != nil {
				return err
			}
			defer watcher.Stop()
		}

		go client.StreamEvents(ctx, pip.Dispatch)

		// Seed the cache so the feed has data before the first daemon
		// event arrives.
		for _, folder := range cfg.Folders {
			pip.Dispatch(pipeline.Event{Type: pipeline.RemoteSequenceChanged, FolderID: folder.ID})
		}

		fmt.Printf("Dashboard feed started on http://localhost:%d\n", cfg.Dashboard.Port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", cfg.Dashboard.Port)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		pip.Stop()
		if err := server.Stop(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

// refreshHooks fans one refresh callback out to every consumer, in
// order.
func refreshHooks(hooks ...func(string)) func(string) {
	return func(folderID string) {
		for _, hook := range hooks {
			hook(folderID)
		}
	}
}

// localChecker reports whether a daemon-relative path exists under any
// configured folder root. Paths from different folders rarely collide,
// so a cross-root check is close enough to refine Modified.
func localChecker() func(string) bool {
	return func(path string) bool {
		for _, folder := range cfg.Folders {
			if _, err := os.Stat(filepath.Join(folder.Root, filepath.FromSlash(path))); err == nil {
				return true
			}
		}
		return false
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
