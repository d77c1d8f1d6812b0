package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes one encoder invocation. args are the encoder arguments
// after the common prefix; onProgress receives the media time processed so far.
type Runner interface {
	Run(ctx context.Context, args []string, onProgress func(done time.Duration)) error
}

// FFmpegRunner runs an ffmpeg binary and reads its machine-readable progress
// from stdout.
type FFmpegRunner struct {
	Path string
}

func NewFFmpegRunner(path string) *FFmpegRunner {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegRunner{Path: path}
}

const stderrTail = 2048

func (r *FFmpegRunner) Run(ctx context.Context, args []string, onProgress func(done time.Duration)) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, r.Path, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	readProgress(stdout, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), stderrTail))
	}
	return nil
}

// readProgress consumes key=value progress lines until EOF.
func readProgress(r io.Reader, onProgress func(done time.Duration)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || onProgress == nil {
			continue
		}
		// out_time_ms is reported in microseconds despite its name
		if key != "out_time_us" && key != "out_time_ms" {
			continue
		}
		us, err := strconv.ParseInt(val, 10, 64)
		if err != nil || us < 0 {
			continue
		}
		onProgress(time.Duration(us) * time.Microsecond)
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
