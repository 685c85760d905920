package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grahamwalsh/syncdeck/internal/remote"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the connected daemon's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := remote.NewClient(&remote.Config{
			BaseURL: cfg.Daemon.URL,
			APIKey:  cfg.Daemon.APIKey,
			Logger:  newLogger("[remote] "),
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		version, err := client.Version(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("daemon: %s\n", version)

		if ok, err := client.SupportsLocalChanged(ctx); err == nil {
			if ok {
				fmt.Println("locally-changed endpoint: supported")
			} else {
				fmt.Println("locally-changed endpoint: not supported (local-only detection disabled)")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
