package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ivlev/topic2video/internal/api"
	"github.com/ivlev/topic2video/internal/app"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return api.NewServer(a).Run(ctx, addr)
		})
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the draft: script, captions, prompts, scenes, frames, uploads and renders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			report, err := a.Workspace.Clean()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}
