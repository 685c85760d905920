package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grahamwalsh/syncdeck/internal/cache"
	"github.com/grahamwalsh/syncdeck/internal/category"
	"github.com/grahamwalsh/syncdeck/internal/remote"
	"github.com/grahamwalsh/syncdeck/internal/ui"
)

var statusYAML bool

// folderStatus is the YAML export shape for one folder.
type folderStatus struct {
	Folder    string         `yaml:"folder"`
	AllSynced bool           `yaml:"all_synced"`
	Counts    map[string]int `yaml:"counts"`
}

var statusCmd = &cobra.Command{
	Use:   "status [folder-id...]",
	Short: "Show per-folder out-of-sync breakdowns",
	Long: `Fetch fresh sync state from the daemon for each configured folder
(or just the folders named as arguments), update the local cache, and
print a per-category breakdown.

Use --yaml for machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		folders := args
		if len(folders) == 0 {
			for _, folder := range cfg.Folders {
				folders = append(folders, folder.ID)
			}
		}
		if len(folders) == 0 {
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

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		var statuses []folderStatus
		for _, folderID := range folders {
			status, err := refreshFolder(ctx, client, store, folderID)
			if err != nil {
				ui.Error(fmt.Sprintf("%s: %v", folderID, err))
				continue
			}
			statuses = append(statuses, status)
		}

		if statusYAML {
			return yaml.NewEncoder(os.Stdout).Encode(statuses)
		}

		for _, status := range statuses {
			counts := make(map[category.Category]int, len(status.Counts))
			for name, n := range status.Counts {
				counts[category.Category(name)] = n
			}
			fmt.Print(ui.BreakdownTable(status.Folder, counts))
		}
		return nil
	},
}

// refreshFolder pulls fresh daemon state for one folder, updates the
// cache, and returns its breakdown.
func refreshFolder(ctx context.Context, client *remote.Client, store *cache.Store, folderID string) (folderStatus, error) {
	needed, err := client.FetchNeeded(ctx, folderID)
	if err != nil {
		return folderStatus{}, err
	}
	locallyChanged, err := client.FetchLocallyChanged(ctx, folderID)
	if err != nil {
		return folderStatus{}, err
	}

	entries := category.Categorize(needed, locallyChanged, localChecker())
	if err := store.UpsertCategories(ctx, folderID, entries); err != nil {
		return folderStatus{}, err
	}

	counts, err := store.Breakdown(ctx, folderID)
	if err != nil {
		return folderStatus{}, err
	}

	status := folderStatus{
		Folder:    folderID,
		AllSynced: true,
		Counts:    make(map[string]int, len(counts)),
	}
	for cat, n := range counts {
		status.Counts[cat.String()] = n
		if n > 0 {
			status.AllSynced = false
		}
	}
	return status, nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "print machine-readable YAML")
	rootCmd.AddCommand(statusCmd)
}
