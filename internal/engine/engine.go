package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/topic2video/internal/effects"
	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/renderer"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/video"
)

type Strategy string

const (
	// StrategyConcat feeds a concat-demuxer list to a single encode.
	StrategyConcat Strategy = "concat"
	// StrategyFilterGraph opens one looped input per scene and filters each.
	StrategyFilterGraph Strategy = "filtergraph"
)

// Request is one render call. OutputPath falls back to Options.DefaultOutput.
type Request struct {
	AudioPath  string
	Scenes     []scenes.Scene
	OutputPath string
}

type Options struct {
	Width          int
	Height         int
	FPS            int
	ConcatListPath string
	DefaultOutput  string
	Codec          video.Codec
}

// Plan is the fully resolved encoder invocation for a request.
type Plan struct {
	Strategy   Strategy
	Args       []string
	OutputPath string
	// ConcatList is the list file body; empty for the filter-graph strategy.
	ConcatList string
	Duration   float64
}

// Compositor renders scene lists against a narration track. Callers
// serialize Render calls that share an output path.
type Compositor struct {
	opts    Options
	encoder video.Encoder
}

func NewCompositor(enc video.Encoder, opts Options) *Compositor {
	return &Compositor{opts: opts, encoder: enc}
}

// SelectStrategy picks concat when no scene carries an effect or animation.
func SelectStrategy(list []scenes.Scene) Strategy {
	if effects.IsPlain(list) {
		return StrategyConcat
	}
	return StrategyFilterGraph
}

// Render checks every input exists, writes the concat list when needed and
// runs the encoder. It returns the output path.
func (c *Compositor) Render(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	if err := checkInputs(ctx, req); err != nil {
		return "", err
	}

	plan, err := c.Plan(req)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	logger := log.With().Str("job", jobID).Str("strategy", string(plan.Strategy)).Logger()
	logger.Info().
		Int("scenes", len(req.Scenes)).
		Float64("duration", plan.Duration).
		Str("output", plan.OutputPath).
		Msg("render started")

	if plan.Strategy == StrategyConcat {
		if err := writeFile(c.opts.ConcatListPath, plan.ConcatList); err != nil {
			return "", fmt.Errorf("render: write concat list: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(plan.OutputPath), 0755); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	if _, err := c.encoder.Encode(ctx, video.Job{Op: "render", Args: plan.Args, Duration: plan.Duration}); err != nil {
		logger.Error().Err(err).Msg("render failed")
		return "", err
	}

	logger.Info().Str("output", plan.OutputPath).Msg("render finished")
	return plan.OutputPath, nil
}

// Plan resolves the strategy and encoder arguments without touching disk.
func (c *Compositor) Plan(req Request) (*Plan, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	out := req.OutputPath
	if out == "" {
		out = c.opts.DefaultOutput
	}
	if out == "" {
		return nil, errs.Validation("render", "no output path and no default output configured")
	}

	plan := &Plan{
		Strategy:   SelectStrategy(req.Scenes),
		OutputPath: out,
	}
	for _, sc := range req.Scenes {
		plan.Duration += sc.Duration
	}

	switch plan.Strategy {
	case StrategyConcat:
		if c.opts.ConcatListPath == "" {
			return nil, errs.Validation("render", "concat list path is not configured")
		}
		list, err := BuildConcatList(req.Scenes)
		if err != nil {
			return nil, err
		}
		plan.ConcatList = list
		plan.Args = c.concatArgs(req.AudioPath, out)
	default:
		plan.Args = c.filterGraphArgs(req, out)
	}
	return plan, nil
}

// BuildConcatList renders the concat-demuxer list. The last file is
// repeated so that its duration directive is honored.
func BuildConcatList(list []scenes.Scene) (string, error) {
	var b strings.Builder
	var last string
	for _, sc := range list {
		abs, err := filepath.Abs(sc.FramePath)
		if err != nil {
			return "", fmt.Errorf("concat list: %w", err)
		}
		last = quoteConcatPath(abs)
		fmt.Fprintf(&b, "file %s\nduration %s\n", last, renderer.Num(sc.Duration))
	}
	if last != "" {
		fmt.Fprintf(&b, "file %s\n", last)
	}
	return b.String(), nil
}

func quoteConcatPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func (c *Compositor) concatArgs(audio, out string) []string {
	p := effects.Params{Width: c.opts.Width, Height: c.opts.Height, FPS: c.opts.FPS}
	fit := effects.Base(p)[:2]

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", c.opts.ConcatListPath,
		"-i", audio,
		"-vf", fit.String(),
		"-r", renderer.Num(float64(c.opts.FPS)),
	}
	args = append(args, c.opts.Codec.Args()...)
	args = append(args, c.opts.Codec.AudioArgs()...)
	return append(args, "-shortest", out)
}

func (c *Compositor) filterGraphArgs(req Request, out string) []string {
	args := []string{"-y"}
	for _, sc := range req.Scenes {
		args = append(args,
			"-loop", "1", "-framerate", "1",
			"-t", renderer.Num(sc.Duration),
			"-i", sc.FramePath,
		)
	}
	audioIndex := len(req.Scenes)
	args = append(args, "-i", req.AudioPath)

	var graph strings.Builder
	var labels strings.Builder
	for i, sc := range req.Scenes {
		chain := effects.Build(sc, c.opts.Width, c.opts.Height, c.opts.FPS)
		if chain == nil {
			chain = effects.Base(effects.Params{Width: c.opts.Width, Height: c.opts.Height, FPS: c.opts.FPS, Duration: sc.Duration})
		}
		fmt.Fprintf(&graph, "[%d:v]%s[v%d];", i, chain, i)
		fmt.Fprintf(&labels, "[v%d]", i)
	}
	fmt.Fprintf(&graph, "%sconcat=n=%d:v=1:a=0[vout]", labels.String(), len(req.Scenes))

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a", audioIndex),
	)
	args = append(args, c.opts.Codec.Args()...)
	args = append(args, c.opts.Codec.AudioArgs()...)
	return append(args, "-shortest", out)
}

func validate(req Request) error {
	if strings.TrimSpace(req.AudioPath) == "" {
		return errs.Validation("render", "audio path is required")
	}
	if len(req.Scenes) == 0 {
		return errs.Validation("render", "scene list is empty")
	}
	for i, sc := range req.Scenes {
		if sc.FramePath == "" {
			return errs.Validation("render", "scene %d has no frame", i)
		}
		if sc.Duration <= 0 {
			return errs.Validation("render", "scene %d has non-positive duration %g", i, sc.Duration)
		}
		if !sc.Effect.Valid() && sc.Effect != "" {
			return errs.Validation("render", "scene %d: unknown effect %q", i, sc.Effect)
		}
		if !sc.Animation.Valid() && sc.Animation != "" {
			return errs.Validation("render", "scene %d: unknown animation %q", i, sc.Animation)
		}
	}
	return nil
}

// checkInputs stats the audio track and every frame concurrently.
func checkInputs(ctx context.Context, req Request) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	paths := make([]string, 0, len(req.Scenes)+1)
	paths = append(paths, req.AudioPath)
	for _, sc := range req.Scenes {
		paths = append(paths, sc.FramePath)
	}
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fi, err := os.Stat(p)
			if err != nil {
				if os.IsNotExist(err) {
					return errs.NotFound("render", p)
				}
				return fmt.Errorf("render: %w", err)
			}
			if fi.IsDir() {
				return errs.NotFound("render", p)
			}
			return nil
		})
	}
	return g.Wait()
}

func writeFile(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body), 0644)
}
