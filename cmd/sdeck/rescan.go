package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/grahamwalsh/syncdeck/internal/remote"
	"github.com/grahamwalsh/syncdeck/internal/ui"
)

var rescanYes bool

var rescanCmd = &cobra.Command{
	Use:   "rescan <folder-id>",
	Short: "Ask the daemon to rescan a folder",
	Long: `Request an immediate rescan of a folder. The daemon re-hashes local
files and announces any changes, which then flow back into the cache
through the event stream.

A rescan of a large folder can take a while, so sdeck asks before
sending the request. Use --yes to skip the prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folderID := args[0]

		if !rescanYes {
			var confirmed bool
			form := huh.NewConfirm().
				Title(fmt.Sprintf("Rescan folder %q?", folderID)).
				Description("The daemon will re-hash every local file in this folder.").
				Affirmative("Rescan").
				Negative("Cancel").
				Value(&confirmed)
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				ui.Notice("Rescan cancelled")
				return nil
			}
		}

		client, err := remote.NewClient(&remote.Config{
			BaseURL: cfg.Daemon.URL,
			APIKey:  cfg.Daemon.APIKey,
			Logger:  newLogger("[remote] "),
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := client.Rescan(ctx, folderID); err != nil {
			return err
		}

		ui.Success(fmt.Sprintf("Rescan of %s requested", folderID))
		return nil
	},
}

func init() {
	rescanCmd.Flags().BoolVar(&rescanYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(rescanCmd)
}
