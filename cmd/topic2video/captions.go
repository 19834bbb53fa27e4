package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivlev/topic2video/internal/app"
	"github.com/ivlev/topic2video/internal/errs"
)

var captionsCmd = &cobra.Command{
	Use:   "captions",
	Short: "Build, inspect and edit the SRT captions",
}

var (
	captionText    string
	captionFile    string
	captionMinutes float64
)

var captionsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Segment the script into caption blocks and write the SRT file",
	Long: `Segment the narration script into caption blocks and write the SRT file.
The text comes from --text, --file or the saved script, in that order.
With --target-minutes the block size is derived from the requested runtime.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			text := captionText
			switch {
			case text != "":
			case captionFile != "":
				data, err := os.ReadFile(captionFile)
				if err != nil {
					return errs.NotFound("captions build", captionFile)
				}
				text = string(data)
			default:
				script, err := a.Workspace.ScriptProvider().Script(ctx, "")
				if err != nil {
					return err
				}
				text = script
			}

			tl, err := a.BuildCaptions(text, captionMinutes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d blocks, %.3fs -> %s\n", len(tl.Blocks), tl.TotalSeconds, a.Config.Paths.Captions)
			if tl.TargetSeconds > 0 && tl.Drift() != 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "drift from target: %+.3fs\n", tl.Drift())
			}
			return nil
		})
	},
}

var captionsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the blocks of the current SRT file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			info, err := a.CaptionInfo()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		})
	},
}

var captionsEditCmd = &cobra.Command{
	Use:   "edit <index> <text>",
	Short: "Replace the text of one caption block (zero-based), keeping its timing",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return errs.Validation("captions edit", "invalid index %q", args[0])
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			info, err := a.EditCaption(index, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "block %d updated (%d blocks)\n", index, info.BlockCount)
			return nil
		})
	},
}

func init() {
	captionsBuildCmd.Flags().StringVar(&captionText, "text", "", "narration text")
	captionsBuildCmd.Flags().StringVar(&captionFile, "file", "", "read the narration from a file")
	captionsBuildCmd.Flags().Float64Var(&captionMinutes, "target-minutes", 0, "target runtime in minutes (0 keeps the configured block size)")

	captionsCmd.AddCommand(captionsBuildCmd)
	captionsCmd.AddCommand(captionsInfoCmd)
	captionsCmd.AddCommand(captionsEditCmd)
}
