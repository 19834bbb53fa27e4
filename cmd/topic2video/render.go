package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/topic2video/internal/app"
)

var (
	renderAudio string
	renderOut   string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the scenes over the narration track",
	Long: `Render the scenes over the narration track. Without --audio the trimmed
track on record is used, else the newest file in the uploads directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out, err := a.Render(ctx, renderAudio, renderOut)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "video written to %s\n", out)
			return nil
		})
	},
}

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Prepare the narration track",
}

var audioTrimCmd = &cobra.Command{
	Use:   "trim [file]",
	Short: "Remove silences from the narration (newest upload by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in string
		if len(args) == 1 {
			in = args[0]
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			info, err := a.TrimAudio(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2fs -> %.2fs\n", info.Trimmed, info.OriginalSeconds, info.TrimmedSeconds)
			return nil
		})
	},
}

var audioInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the narration durations on record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			info, err := a.AudioInfo()
			if err != nil {
				return err
			}
			if info == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no audio on record")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), info)
		})
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderAudio, "audio", "", "narration track")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output video (default from config)")

	audioCmd.AddCommand(audioTrimCmd)
	audioCmd.AddCommand(audioInfoCmd)
}
