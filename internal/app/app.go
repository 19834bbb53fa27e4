// Package app wires the configuration into the components and exposes the
// project operations shared by the CLI and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/audio"
	"github.com/ivlev/topic2video/internal/config"
	"github.com/ivlev/topic2video/internal/engine"
	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/queue"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/source"
	"github.com/ivlev/topic2video/internal/srt"
	"github.com/ivlev/topic2video/internal/system"
	"github.com/ivlev/topic2video/internal/timeline"
	"github.com/ivlev/topic2video/internal/video"
	"github.com/ivlev/topic2video/internal/workspace"
)

type App struct {
	Config    *config.Config
	Store     scenes.Store
	Encoder   video.Encoder
	Prober    audio.Prober
	Queue     queue.Queue
	Workspace *workspace.Workspace
	Importer  *source.Importer

	renderMu sync.Mutex
	closers  []func(context.Context) error
}

// New connects the configured backends. Close releases them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config:    cfg,
		Encoder:   video.NewFFmpegEncoder(cfg.Encoder.FFmpeg, cfg.Encoder.Progress),
		Prober:    audio.FFprobe{Binary: cfg.Encoder.FFprobe},
		Workspace: workspace.New(cfg.Paths),
	}

	switch cfg.Store.Backend {
	case "mongo":
		client, coll, err := scenes.ConnectMongo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.Store.MongoCollection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		a.Store = scenes.NewMongoStore(coll, cfg.Store.ProjectID, a.SceneDefaults())
	default:
		a.Store = scenes.NewFileStore(cfg.Paths.Metadata, a.SceneDefaults())
	}

	switch cfg.Queue.Backend {
	case "amqp":
		q, err := queue.DialAMQP(cfg.Queue.AMQPURL, cfg.Queue.Name, cfg.Queue.AckTimeout)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Queue = q
	default:
		q := queue.NewChannelQueue(4, cfg.Queue.AckTimeout)
		go q.Serve(context.WithoutCancel(ctx), a.publishPrompts)
		a.Queue = q
	}

	im := source.NewImporter(cfg.Import.DownloadDirs, cfg.Paths.FramesDir, a.Store)
	im.MaxAge = cfg.Import.MaxAge
	im.PollInterval = cfg.Import.PollInterval
	im.WaitTimeout = cfg.Import.WaitTimeout
	im.ImagesPerPrompt = cfg.Import.ImagesPerPrompt
	a.Importer = im
	return a, nil
}

func (a *App) Close(ctx context.Context) error {
	var problems []error
	if a.Queue != nil {
		problems = append(problems, a.Queue.Close())
	}
	for _, c := range a.closers {
		problems = append(problems, c(ctx))
	}
	return errors.Join(problems...)
}

func (a *App) SceneDefaults() scenes.Defaults {
	return scenes.Defaults{
		Width:     a.Config.Video.Width,
		Height:    a.Config.Video.Height,
		FPS:       a.Config.Video.FPS,
		FramesDir: a.Config.Paths.FramesDir,
		Duration:  a.Config.Scenes.DefaultDuration,
	}
}

// Codec resolves "auto" to the best available H.264 encoder and fills
// quality and thread count defaults.
func (a *App) Codec(ctx context.Context) video.Codec {
	e := a.Config.Encoder
	name := e.VideoCodec
	if name == "" || name == "auto" {
		name = system.GetBestH264Encoder(e.FFmpeg)
		if name != "libx264" {
			log.Info().Str("encoder", name).Msg("hardware encoder detected")
		}
	}

	quality := e.Quality
	if quality == 0 {
		switch name {
		case "h264_videotoolbox":
			quality = 75
		case "h264_nvenc":
			quality = 28
		}
	}

	threads := e.Threads
	if threads == 0 {
		threads = system.DetectResources(ctx).EncoderThreads()
	}
	return video.Codec{
		Name:        name,
		Preset:      e.Preset,
		PixelFormat: e.PixelFormat,
		AudioCodec:  e.AudioCodec,
		Quality:     quality,
		Threads:     threads,
	}
}

func (a *App) Compositor(ctx context.Context) *engine.Compositor {
	return engine.NewCompositor(a.Encoder, engine.Options{
		Width:          a.Config.Video.Width,
		Height:         a.Config.Video.Height,
		FPS:            a.Config.Video.FPS,
		ConcatListPath: a.Config.Paths.ConcatList,
		DefaultOutput:  a.Config.Paths.DefaultOutput,
		Codec:          a.Codec(ctx),
	})
}

// BuildCaptions segments text into a timeline, saves the script and writes
// the caption file. A positive targetMinutes switches to target-duration
// mode.
func (a *App) BuildCaptions(text string, targetMinutes float64) (*timeline.Timeline, error) {
	opts := timeline.Options{
		MaxChars:    a.Config.Captions.MaxCharsPerBlock,
		Step:        a.Config.Captions.StepSeconds,
		ExactTarget: a.Config.Captions.ExactTarget,
	}
	var (
		tl  *timeline.Timeline
		err error
	)
	if targetMinutes > 0 {
		tl, err = timeline.BuildForDuration(text, targetMinutes*60, opts)
	} else {
		tl, err = timeline.BuildFixed(text, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := a.Workspace.SaveScript(text); err != nil {
		return nil, fmt.Errorf("build captions: %w", err)
	}
	if err := srt.WriteFile(a.Config.Paths.Captions, tl.Blocks); err != nil {
		return nil, err
	}
	ev := log.Info().Int("blocks", len(tl.Blocks)).Float64("seconds", tl.TotalSeconds)
	if tl.TargetSeconds > 0 {
		ev = ev.Float64("drift", tl.Drift())
	}
	ev.Str("path", a.Config.Paths.Captions).Msg("captions written")
	return tl, nil
}

func (a *App) CaptionInfo() (srt.Info, error) {
	return srt.ReadFile(a.Config.Paths.Captions)
}

func (a *App) EditCaption(index int, text string) (srt.Info, error) {
	return srt.EditFile(a.Config.Paths.Captions, index, text)
}

// TrimAudio removes silences from in and records both durations.
func (a *App) TrimAudio(ctx context.Context, in string) (*audio.Info, error) {
	if in == "" {
		latest, err := system.FindLatestAudio(a.Config.Paths.UploadsDir)
		if err != nil {
			return nil, err
		}
		in = latest
	}
	if _, err := os.Stat(in); err != nil {
		return nil, errs.NotFound("trim audio", in)
	}
	original, err := a.Prober.Duration(ctx, in)
	if err != nil {
		return nil, err
	}
	opts := audio.SilenceOptions{ThresholdDB: a.Config.Silence.ThresholdDB, MinSilence: a.Config.Silence.MinSilence}
	trimmed, err := audio.TrimSilence(ctx, a.Encoder, a.Prober, in, a.Config.Paths.TrimmedAudio, opts)
	if err != nil {
		return nil, err
	}

	info := audio.Info{
		Original:        in,
		Trimmed:         trimmed.Path,
		OriginalSeconds: original,
		TrimmedSeconds:  trimmed.Seconds,
	}
	if err := audio.SaveInfo(a.Config.Paths.AudioInfo, info); err != nil {
		return nil, err
	}
	return audio.LoadInfo(a.Config.Paths.AudioInfo)
}

func (a *App) AudioInfo() (*audio.Info, error) {
	return audio.LoadInfo(a.Config.Paths.AudioInfo)
}

// ResolveAudio picks the narration track: the explicit path, else the
// trimmed track on record, else the newest upload.
func (a *App) ResolveAudio(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	info, err := a.AudioInfo()
	if err != nil {
		return "", err
	}
	if info != nil {
		if best, _ := info.Best(); best != "" {
			if _, err := os.Stat(best); err == nil {
				return best, nil
			}
		}
	}
	return system.FindLatestAudio(a.Config.Paths.UploadsDir)
}

// Render composes the stored scenes over the narration. Concurrent calls
// are serialized since they share the concat list and default output.
func (a *App) Render(ctx context.Context, audioPath, out string) (string, error) {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()

	audioPath, err := a.ResolveAudio(audioPath)
	if err != nil {
		return "", err
	}
	doc, err := a.Store.Load(ctx)
	if err != nil {
		return "", err
	}
	return a.Compositor(ctx).Render(ctx, engine.Request{
		AudioPath:  audioPath,
		Scenes:     doc.Scenes,
		OutputPath: out,
	})
}

// RedistributeScenes spreads totalSeconds evenly over the scenes. A
// non-positive total uses the narration duration on record.
func (a *App) RedistributeScenes(ctx context.Context, totalSeconds float64) (*scenes.Document, error) {
	if totalSeconds <= 0 {
		info, err := a.AudioInfo()
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, errs.Validation("redistribute", "no total duration given and no audio on record")
		}
		_, totalSeconds = info.Best()
	}
	doc, err := a.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	list, err := scenes.Redistribute(doc.Scenes, totalSeconds)
	if err != nil {
		return nil, err
	}
	doc.Scenes = list
	if err := a.Store.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RequestImages saves the prompts, seeds one scene per prompt when the
// document is empty and submits the request to the image source.
func (a *App) RequestImages(ctx context.Context, prompts []string) (queue.Request, queue.Ack, error) {
	req, err := queue.NewRequest(prompts, a.Config.Import.ImagesPerPrompt)
	if err != nil {
		return queue.Request{}, queue.Ack{}, err
	}
	if err := a.Workspace.SavePrompts(req.Prompts); err != nil {
		return req, queue.Ack{}, fmt.Errorf("request images: %w", err)
	}

	doc, err := a.Store.Load(ctx)
	if err != nil {
		return req, queue.Ack{}, err
	}
	if len(doc.Scenes) == 0 {
		for _, p := range req.Prompts {
			doc.Scenes = append(doc.Scenes, scenes.Scene{Prompt: p})
		}
		if err := a.Store.Save(ctx, doc); err != nil {
			return req, queue.Ack{}, err
		}
	}

	ack, err := a.Queue.Submit(ctx, req)
	if err != nil {
		return req, queue.Ack{}, err
	}
	log.Info().Str("request", req.ID.String()).Bool("accepted", ack.Accepted).Int("expected", req.Expected()).Msg("image request acknowledged")
	return req, ack, nil
}

// publishPrompts is the in-process image source: it leaves the prompts in
// the workspace for the browser helper to pick up.
func (a *App) publishPrompts(_ context.Context, req queue.Request) error {
	return a.Workspace.SavePrompts(req.Prompts)
}

func (a *App) ImportImages(ctx context.Context, wait bool) (*source.ImportResult, error) {
	return a.Importer.Import(ctx, wait)
}

// ImportPDF renders the pages of a PDF storyboard as scene frames. An empty
// path picks the newest PDF in the uploads directory.
func (a *App) ImportPDF(ctx context.Context, path string) (*scenes.Document, error) {
	if path == "" {
		latest, err := system.FindLatestPDF(a.Config.Paths.UploadsDir)
		if err != nil {
			return nil, err
		}
		path = latest
	}
	src, err := source.NewFitzPDFSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return source.ImportSource(ctx, a.Store, src, a.Config.Paths.FramesDir, a.Config.Import.DPI)
}

// ImportImageDir uses the images of dir, sorted by name, as scene frames.
func (a *App) ImportImageDir(ctx context.Context, dir string) (*scenes.Document, error) {
	src, err := source.NewImageSource(dir)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return source.ImportSource(ctx, a.Store, src, a.Config.Paths.FramesDir, a.Config.Import.DPI)
}

func (a *App) AddQRCard(ctx context.Context, url string, duration float64) (*scenes.Document, error) {
	if duration <= 0 {
		duration = a.Config.Scenes.DefaultDuration
	}
	card := source.QRCard{URL: url, Width: a.Config.Video.Width, Height: a.Config.Video.Height}
	return source.AddQRScene(ctx, a.Store, card, a.Config.Paths.FramesDir, duration)
}
