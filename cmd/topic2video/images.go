package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/topic2video/internal/app"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Talk to the image source",
}

var imagesRequestCmd = &cobra.Command{
	Use:   "request [prompt...]",
	Short: "Ask the image source to generate images for the prompts",
	Long: `Ask the image source to generate images for the prompts. Without
arguments the saved prompts are sent. Waits for the acknowledgement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			prompts := args
			if len(prompts) == 0 {
				saved, err := a.Workspace.LoadPrompts()
				if err != nil {
					return err
				}
				prompts = saved
			}
			req, ack, err := a.RequestImages(ctx, prompts)
			if err != nil {
				return err
			}
			if !ack.Accepted {
				return fmt.Errorf("image request %s rejected: %s", req.ID, ack.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %s accepted, %d images expected\n", req.ID, req.Expected())
			return nil
		})
	},
}

func init() {
	imagesCmd.AddCommand(imagesRequestCmd)
}
