package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ivlev/topic2video/internal/app"
	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
)

var scenesCmd = &cobra.Command{
	Use:   "scenes",
	Short: "Manage the scene list",
}

var scenesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the scene document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.Store.Load(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		})
	},
}

var redistributeTotal float64

var scenesRedistributeCmd = &cobra.Command{
	Use:   "redistribute",
	Short: "Spread a total duration evenly over the scenes",
	Long: `Spread a total duration evenly over the scenes. Without --total the
narration duration on record (trimmed track first) is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.RedistributeScenes(ctx, redistributeTotal)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d scenes, %.3fs total\n", len(doc.Scenes), doc.TotalDuration())
			return nil
		})
	},
}

var (
	setPrompt    string
	setDuration  float64
	setFrame     string
	setEffect    string
	setAnimation string
	setMoveTo    int
)

var scenesSetCmd = &cobra.Command{
	Use:   "set <index>",
	Short: "Update one scene; only the given flags change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		var p scenes.Patch
		flags := cmd.Flags()
		if flags.Changed("prompt") {
			p.Prompt = &setPrompt
		}
		if flags.Changed("duration") {
			p.Duration = &setDuration
		}
		if flags.Changed("frame") {
			p.FramePath = &setFrame
		}
		if flags.Changed("effect") {
			e := scenes.Effect(setEffect)
			p.Effect = &e
		}
		if flags.Changed("animation") {
			an := scenes.Animation(setAnimation)
			p.Animation = &an
		}
		if flags.Changed("move-to") {
			p.MoveTo = &setMoveTo
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.Store.UpdateOne(ctx, index, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc.Scenes)
		})
	},
}

var scenesDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Remove a scene and its frame file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.Store.DeleteOne(ctx, index)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scene %d deleted, %d left\n", index, len(doc.Scenes))
			return nil
		})
	},
}

var importNoWait bool

var scenesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import freshly downloaded images as scene frames",
	Long: `Import freshly downloaded images as scene frames. Unless --no-wait is
given, waits until every prompt has its images (or the wait times out).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.ImportImages(ctx, !importNoWait)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d images imported into %s\n", res.Imported, a.Config.Paths.FramesDir)
			if res.Partial {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: fewer images than expected")
			}
			return nil
		})
	},
}

var scenesImportPDFCmd = &cobra.Command{
	Use:   "import-pdf [file]",
	Short: "Render the pages of a PDF storyboard as scene frames (newest upload by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.ImportPDF(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pages imported\n", len(doc.Scenes))
			return nil
		})
	},
}

var scenesImportDirCmd = &cobra.Command{
	Use:   "import-dir <dir>",
	Short: "Use the images of a directory, sorted by name, as scene frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.ImportImageDir(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d images imported\n", len(doc.Scenes))
			return nil
		})
	},
}

var qrDuration float64

var scenesAddQRCmd = &cobra.Command{
	Use:   "add-qr <url>",
	Short: "Append an end card with a QR code for url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			doc, err := a.AddQRCard(ctx, args[0], qrDuration)
			if err != nil {
				return err
			}
			last := doc.Scenes[len(doc.Scenes)-1]
			fmt.Fprintf(cmd.OutOrStdout(), "scene %d: %s\n", last.Index, last.FramePath)
			return nil
		})
	},
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, errs.Validation("scenes", "invalid index %q", s)
	}
	return i, nil
}

func init() {
	scenesRedistributeCmd.Flags().Float64Var(&redistributeTotal, "total", 0, "total seconds (default: narration duration)")

	f := scenesSetCmd.Flags()
	f.StringVar(&setPrompt, "prompt", "", "image prompt")
	f.Float64Var(&setDuration, "duration", 0, "seconds on screen")
	f.StringVar(&setFrame, "frame", "", "frame image path")
	f.StringVar(&setEffect, "effect", "", "none, fade, blur, brightness or sepia")
	f.StringVar(&setAnimation, "animation", "", "none, zoom-in, zoom-out, pan-left, pan-right, pan-up or pan-down")
	f.IntVar(&setMoveTo, "move-to", 0, "new position")

	scenesImportCmd.Flags().BoolVar(&importNoWait, "no-wait", false, "import what is there without waiting")
	scenesAddQRCmd.Flags().Float64Var(&qrDuration, "duration", 0, "seconds on screen (default: scene default)")

	scenesCmd.AddCommand(scenesListCmd)
	scenesCmd.AddCommand(scenesRedistributeCmd)
	scenesCmd.AddCommand(scenesSetCmd)
	scenesCmd.AddCommand(scenesDeleteCmd)
	scenesCmd.AddCommand(scenesImportCmd)
	scenesCmd.AddCommand(scenesImportPDFCmd)
	scenesCmd.AddCommand(scenesImportDirCmd)
	scenesCmd.AddCommand(scenesAddQRCmd)
}
