// Package transcode re-encodes captures so they fit the upload size target.
//
// Inputs are classified into a Strategy by container, detected from the
// content when the declared type is missing or generic. Direct inputs go
// through the encoder ladder (full and reduced MP3, then minimal AAC); recorder
// containers are decoded to PCM, downmixed, resampled to speech rate and
// only re-encoded when the intermediate WAV is still too large. Progress is
// reported as one continuous percentage across load, convert and cleanup.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/sizemodel"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/dustin/go-humanize"
)

// State is the lifecycle of one Transcode invocation.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateConverting
	StateFinalizing
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateConverting:
		return "converting"
	case StateFinalizing:
		return "finalizing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProgressFunc receives overall completion in percent, never decreasing.
type ProgressFunc func(percent float64)

// Request describes one capture to transcode.
type Request struct {
	Data     []byte
	MimeType string
	FileName string
	// Tier overrides the tier derived from the size target when non-zero.
	Tier sizemodel.Tier
	// DurationSeconds is the measured duration; zero means estimate it.
	DurationSeconds float64
}

// Result is the transcoded capture. When Bypassed is set Data is the
// original input and Warning says why it was not reduced.
type Result struct {
	Data     []byte
	MimeType string
	FileName string
	Tier     sizemodel.Tier
	Strategy Strategy
	Rung     Rung
	Bypassed bool
	Warning  string
}

const (
	loadEnd    = 10.0
	convertEnd = 90.0
)

// Transcoder runs one transcode at a time.
type Transcoder struct {
	runner  Runner
	policy  sizemodel.Policy
	workDir string
	log     logging.Logger

	mu    sync.Mutex
	run   sync.Mutex
	state State
}

func New(runner Runner, policy sizemodel.Policy, workDir string, log logging.Logger) *Transcoder {
	if log == nil {
		log = logging.Nop{}
	}
	return &Transcoder{runner: runner, policy: policy, workDir: workDir, log: log.With("component", "transcoder")}
}

func (t *Transcoder) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transcoder) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Transcode re-encodes req. Cancelling ctx discards partial output, returns
// common.ErrCancelled and leaves the transcoder idle. Exhausting the ladder
// returns common.ErrTranscodeExhausted, after which the caller may choose to
// upload the original bytes.
func (t *Transcoder) Transcode(ctx context.Context, req Request, progress ProgressFunc) (res Result, err error) {
	t.run.Lock()
	defer t.run.Unlock()

	p := newProgress(progress)
	req.MimeType = sniff(req.MimeType, req.Data)
	strategy := Classify(req.MimeType)
	log := t.log.With("file", req.FileName, "strategy", strategy.String(), "bytes", len(req.Data))

	defer func() {
		switch {
		case err == nil:
			t.setState(StateSucceeded)
		case errors.Is(err, common.ErrCancelled):
			t.setState(StateIdle)
			log.Info(ctx, "transcode cancelled")
		default:
			t.setState(StateFailed)
			log.Warn(ctx, "transcode failed", "error", err)
		}
	}()

	t.setState(StatePreparing)
	if len(req.Data) == 0 {
		return Result{}, common.ErrEmptyOutput
	}

	if strategy == StrategyResample && t.policy.ResampleCeiling > 0 && int64(len(req.Data)) > t.policy.ResampleCeiling {
		warning := fmt.Sprintf("%s is above the %s decode limit; uploading without size reduction",
			humanize.Bytes(uint64(len(req.Data))), humanize.Bytes(uint64(t.policy.ResampleCeiling)))
		log.Warn(ctx, "transcode bypassed", "reason", warning)
		p.set(100)
		return Result{
			Data: req.Data, MimeType: req.MimeType, FileName: req.FileName,
			Strategy: strategy, Bypassed: true, Warning: warning,
		}, nil
	}

	dir, err := os.MkdirTemp(t.workDir, "transcode-*")
	if err != nil {
		return Result{}, fmt.Errorf("work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+extensionFor(req.MimeType, req.FileName))
	if err := os.WriteFile(in, req.Data, 0o600); err != nil {
		return Result{}, fmt.Errorf("stage input: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return Result{}, err
	}
	p.set(loadEnd)

	seconds := req.DurationSeconds
	if seconds <= 0 {
		seconds = sizemodel.EstimateDurationSeconds(int64(len(req.Data)))
	}
	tier := req.Tier
	if tier == (sizemodel.Tier{}) {
		tier = sizemodel.ChooseEncodingForDuration(seconds, t.policy.TargetBytes)
	}

	t.setState(StateConverting)
	var out Result
	switch strategy {
	case StrategyResample:
		out, err = t.decodeResample(ctx, dir, in, tier, p, log)
	default:
		out, err = t.ladder(ctx, dir, in, tier, seconds, p.span(loadEnd, convertEnd), log)
	}
	if err != nil {
		return Result{}, err
	}
	out.Strategy = strategy

	t.setState(StateFinalizing)
	if len(out.Data) == 0 {
		return Result{}, common.ErrEmptyOutput
	}
	out.FileName = outputName(req.FileName, out.MimeType)
	p.set(100)

	log.Info(ctx, "transcode finished",
		"rung", out.Rung.String(), "bitrate", out.Tier.Bitrate, "sample_rate", out.Tier.SampleRate, "out_bytes", len(out.Data))
	return out, nil
}

// ladder tries each rung in order until one produces non-empty output.
func (t *Transcoder) ladder(ctx context.Context, dir, in string, tier sizemodel.Tier, seconds float64, p *progress, log logging.Logger) (Result, error) {
	var errs []error
	for _, rung := range Ladder {
		out := filepath.Join(dir, "out-"+rung.String()+rung.extension())
		err := t.runner.Run(ctx, rung.args(in, out, tier), p.media(seconds))
		if err := cancelled(ctx); err != nil {
			return Result{}, err
		}
		if err == nil {
			data, rerr := os.ReadFile(out)
			switch {
			case rerr != nil:
				err = rerr
			case len(data) == 0:
				err = common.ErrEmptyOutput
			default:
				p.set(100)
				return Result{Data: data, MimeType: rung.mimeType(), Tier: tier, Rung: rung}, nil
			}
		}
		log.Warn(ctx, "encoder rung failed", "rung", rung.String(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", rung, err))
	}
	return Result{}, fmt.Errorf("%w: %w", common.ErrTranscodeExhausted, errors.Join(errs...))
}

// decodeResample decodes to PCM, reduces it to mono speech rate and hands the
// WAV to the ladder only if it is still above target. A failed decode falls
// back to the ladder on the original input.
func (t *Transcoder) decodeResample(ctx context.Context, dir, in string, tier sizemodel.Tier, p *progress, log logging.Logger) (Result, error) {
	decodeP := p.span(loadEnd, 50)
	encodeP := p.span(50, convertEnd)

	decoded := filepath.Join(dir, "decoded.wav")
	err := t.runner.Run(ctx, decodeArgs(in, decoded), nil)
	if err := cancelled(ctx); err != nil {
		return Result{}, err
	}
	var raw []byte
	if err == nil {
		raw, err = os.ReadFile(decoded)
	}
	var audio pcm
	if err == nil {
		audio, err = parseWAV(raw)
	}
	if err != nil {
		log.Warn(ctx, "decode failed, trying encoder directly", "error", err)
		seconds := sizemodel.EstimateDurationSeconds(fileSize(in))
		return t.ladder(ctx, dir, in, tier, seconds, p.span(loadEnd, convertEnd), log)
	}
	decodeP.set(50)

	mono := resample(downmix(audio), SpeechSampleRate)
	wav := encodeWAV(mono)
	decodeP.set(100)
	if err := cancelled(ctx); err != nil {
		return Result{}, err
	}

	speech := sizemodel.Tier{Bitrate: tier.Bitrate, SampleRate: min(tier.SampleRate, SpeechSampleRate)}
	if int64(len(wav)) <= t.policy.TargetBytes {
		encodeP.set(100)
		return Result{Data: wav, MimeType: "audio/wav", Tier: sizemodel.Tier{Bitrate: SpeechSampleRate * 16, SampleRate: SpeechSampleRate}, Rung: RungNone}, nil
	}

	intermediate := filepath.Join(dir, "speech.wav")
	if err := os.WriteFile(intermediate, wav, 0o600); err != nil {
		return Result{}, fmt.Errorf("stage intermediate: %w", err)
	}
	return t.ladder(ctx, dir, intermediate, speech, mono.Seconds(), encodeP, log)
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", common.ErrCancelled, ctx.Err())
	}
	return nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func outputName(name, mimeType string) string {
	if name == "" {
		name = "capture"
	}
	base := name[:len(name)-len(filepath.Ext(name))]
	switch mimeType {
	case "audio/wav":
		return base + ".wav"
	case "audio/mpeg":
		return base + ".mp3"
	case "audio/mp4":
		return base + ".m4a"
	default:
		return name
	}
}

// progress maps sub-ranges onto the caller's 0..100 scale.
type progress struct {
	fn     ProgressFunc
	lo, hi float64
	mu     *sync.Mutex
	last   *float64
}

func newProgress(fn ProgressFunc) *progress {
	last := -1.0
	return &progress{fn: fn, lo: 0, hi: 100, mu: &sync.Mutex{}, last: &last}
}

// span returns a view where 0..100 covers [lo, hi] of the parent.
func (p *progress) span(lo, hi float64) *progress {
	return &progress{
		fn: p.fn, mu: p.mu, last: p.last,
		lo: p.lo + (p.hi-p.lo)*lo/100,
		hi: p.lo + (p.hi-p.lo)*hi/100,
	}
}

// set reports pct of this span.
func (p *progress) set(pct float64) {
	if p.fn == nil {
		return
	}
	pct = max(0, min(100, pct))
	v := p.lo + (p.hi-p.lo)*pct/100

	p.mu.Lock()
	if v <= *p.last {
		p.mu.Unlock()
		return
	}
	*p.last = v
	p.mu.Unlock()

	p.fn(v)
}

// media converts encoder media-time events into span percentages.
func (p *progress) media(totalSeconds float64) func(time.Duration) {
	return func(done time.Duration) {
		if totalSeconds <= 0 {
			return
		}
		p.set(done.Seconds() / totalSeconds * 100)
	}
}
