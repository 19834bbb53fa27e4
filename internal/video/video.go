package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/topic2video/internal/errs"
)

// Job is one encoder invocation.
type Job struct {
	Op   string
	Args []string
	// Duration is the expected output length in seconds, used for progress.
	Duration float64
}

type Result struct {
	ExitCode int
	Stderr   string
}

// Encoder runs the external media tool. A non-nil error from a failed run
// is an *errs.EncodingError carrying the exit code and stderr.
type Encoder interface {
	Encode(ctx context.Context, job Job) (Result, error)
}

// FFmpegEncoder runs ffmpeg as a subprocess.
type FFmpegEncoder struct {
	Binary   string
	Progress bool
	// ProgressOut receives the progress bar; stderr when nil.
	ProgressOut io.Writer
}

func NewFFmpegEncoder(binary string, progress bool) *FFmpegEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEncoder{Binary: binary, Progress: progress}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, job Job) (Result, error) {
	op := job.Op
	if op == "" {
		op = "ffmpeg"
	}
	log.Debug().Str("op", op).Str("cmd", e.Binary+" "+strings.Join(job.Args, " ")).Msg("running encoder")

	cmd := exec.CommandContext(ctx, e.Binary, job.Args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, &errs.EncodingError{Op: op, ExitCode: -1, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, &errs.EncodingError{Op: op, ExitCode: -1, Err: fmt.Errorf("start %s: %w", e.Binary, err)}
	}

	var bar *progressbar.ProgressBar
	if e.Progress && job.Duration > 0 {
		bar = newBar(op, job.Duration, e.ProgressOut)
	}

	// stderr must be drained before Wait.
	var captured bytes.Buffer
	watchProgress(stderr, &captured, func(seconds float64) {
		if bar != nil {
			_ = bar.Set(int(seconds))
		}
	})

	waitErr := cmd.Wait()
	res := Result{Stderr: captured.String()}
	if bar != nil && waitErr == nil {
		_ = bar.Finish()
	}
	if waitErr != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			waitErr = ctxErr
		}
		return res, &errs.EncodingError{Op: op, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: waitErr}
	}
	return res, nil
}

func newBar(op string, duration float64, out io.Writer) *progressbar.ProgressBar {
	if out == nil {
		out = os.Stderr
	}
	return progressbar.NewOptions(int(duration+0.5),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(op),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
}

var progressTime = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// watchProgress copies r into sink and reports every time= position ffmpeg
// prints. ffmpeg separates status updates with carriage returns.
func watchProgress(r io.Reader, sink *bytes.Buffer, report func(seconds float64)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(scanStatusLines)
	for sc.Scan() {
		line := sc.Text()
		sink.WriteString(line)
		sink.WriteByte('\n')
		if s, ok := ParseProgress(line); ok {
			report(s)
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

// ParseProgress extracts the time= position from an ffmpeg status line.
func ParseProgress(line string) (float64, bool) {
	m := progressTime.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+mins*60) + sec, true
}

func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
