package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/sizemodel"
	"github.com/dmitrijs2005/voxkeeper/internal/audio/transcode"
	"github.com/dmitrijs2005/voxkeeper/internal/audio/validation"
	"github.com/dmitrijs2005/voxkeeper/internal/auth"
	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/cryptox"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/dmitrijs2005/voxkeeper/internal/transport"
	"github.com/google/uuid"
)

// CompressMode is the user's answer to a compression offer.
type CompressMode int

const (
	// CompressAuto compresses when the size policy suggests or requires it.
	CompressAuto CompressMode = iota
	CompressAlways
	// CompressNever skips optional compression. Required compression still runs.
	CompressNever
)

// Stage names the step a submission is in.
type Stage string

const (
	StageTranscoding Stage = "transcoding"
	StageUploading   Stage = "uploading"
)

// Progress is reported across the whole submission; Percent never decreases.
type Progress struct {
	Stage   Stage
	Percent float64
}

type SubmitOptions struct {
	Compress CompressMode
	// AllowOriginalOnFailure uploads the untouched capture when every
	// transcode attempt failed.
	AllowOriginalOnFailure bool
	// ConfirmOriginal is asked instead when AllowOriginalOnFailure is unset.
	ConfirmOriginal func(cause error) bool
	// ConfirmCompress, in CompressAuto, decides the offer and suggest bands
	// instead of the built-in default.
	ConfirmCompress func(d sizemodel.Decision, size int64) bool
	OnProgress      func(Progress)
	// OnSession exposes the upload session, mainly so the caller can cancel it.
	OnSession func(*transport.Session)
}

// Outcome says where a submitted capture ended up.
type Outcome int

const (
	OutcomeUploaded Outcome = iota
	OutcomeQueued
)

func (o Outcome) String() string {
	if o == OutcomeQueued {
		return "queued"
	}
	return "uploaded"
}

type SubmitResult struct {
	RecordID   string
	Outcome    Outcome
	Decision   sizemodel.Decision
	Transcoded bool
	Warning    string
	Size       int64
	MimeType   string
	FileName   string
}

// CaptureService is the live upload path.
type CaptureService struct {
	validator  *validation.Validator
	policy     sizemodel.Policy
	transcoder Transcoder
	queue      pending.Repository
	records    records.Repository
	transport  transport.Transport
	tokens     TokenSource
	online     Online
	log        logging.Logger

	now       func() time.Time
	heartbeat time.Duration
}

func NewCaptureService(v *validation.Validator, policy sizemodel.Policy, tc Transcoder,
	queue pending.Repository, recs records.Repository, tr transport.Transport,
	tokens TokenSource, online Online, log logging.Logger) *CaptureService {
	if log == nil {
		log = logging.Nop{}
	}
	return &CaptureService{
		validator:  v,
		policy:     policy,
		transcoder: tc,
		queue:      queue,
		records:    recs,
		transport:  tr,
		tokens:     tokens,
		online:     online,
		log:        log.With("component", "capture"),
		now:        time.Now,
		heartbeat:  heartbeatInterval,
	}
}

// Submit validates c, compresses it if the size policy and opts call for it,
// then uploads it, or queues it locally when offline.
//
// Validation rejections and exhausted transcodes are returned as is. A
// cancelled upload deletes its record and returns common.ErrCancelled. Any
// other upload failure marks the record as errored and wraps
// common.ErrTransfer.
func (s *CaptureService) Submit(ctx context.Context, ownerID string, c models.Capture, opts SubmitOptions) (SubmitResult, error) {
	report := newReporter(opts.OnProgress)

	mimeType, err := s.validator.Validate(c)
	if err != nil {
		return SubmitResult{}, err
	}

	res := SubmitResult{
		RecordID: uuid.NewString(),
		Decision: s.policy.Decide(c.Size()),
		MimeType: mimeType,
		FileName: c.FileName,
	}
	data := c.Data
	ctx = logging.ContextWith(ctx, "capture_id", res.RecordID, "owner_id", ownerID)
	log := s.log

	compress := shouldCompress(res.Decision, opts.Compress)
	if opts.Compress == CompressAuto && opts.ConfirmCompress != nil &&
		(res.Decision == sizemodel.DecisionOffer || res.Decision == sizemodel.DecisionSuggest) {
		compress = opts.ConfirmCompress(res.Decision, c.Size())
	}

	if compress {
		report.split = 50
		out, err := s.transcoder.Transcode(ctx, transcode.Request{
			Data:            c.Data,
			MimeType:        mimeType,
			FileName:        c.FileName,
			DurationSeconds: c.DurationSeconds,
		}, func(pct float64) { report.stage(StageTranscoding, pct) })

		switch {
		case err == nil:
			data = out.Data
			res.MimeType = out.MimeType
			res.FileName = out.FileName
			res.Transcoded = !out.Bypassed
			res.Warning = out.Warning
			log.Info(ctx, "capture transcoded", "decision", res.Decision.String(),
				"bytes_in", c.Size(), "bytes", len(out.Data), "rung", out.Rung.String())
		case errors.Is(err, common.ErrTranscodeExhausted) && allowOriginal(opts, err):
			res.Warning = "compression failed, uploading the original"
			log.Warn(ctx, "transcode exhausted, using original", "error", err)
		default:
			return SubmitResult{}, err
		}
	}
	res.Size = int64(len(data))

	if s.online != nil && !s.online.IsOnline() {
		return s.enqueue(ctx, ownerID, c, data, res, log)
	}
	return s.upload(ctx, ownerID, c, data, res, opts, report, log)
}

func (s *CaptureService) enqueue(ctx context.Context, ownerID string, c models.Capture, data []byte,
	res SubmitResult, log logging.Logger) (SubmitResult, error) {
	pc := &models.PendingCapture{
		Id:              res.RecordID,
		OwnerID:         ownerID,
		FileName:        res.FileName,
		FileSize:        res.Size,
		MimeType:        res.MimeType,
		Data:            data,
		Checksum:        cryptox.Checksum(data),
		DurationSeconds: c.DurationSeconds,
	}
	if err := s.queue.Enqueue(ctx, pc); err != nil {
		return SubmitResult{}, fmt.Errorf("queue capture: %w", err)
	}
	res.Outcome = OutcomeQueued
	log.Info(ctx, "offline, capture queued", "bytes", res.Size)
	return res, nil
}

func (s *CaptureService) upload(ctx context.Context, ownerID string, c models.Capture, data []byte,
	res SubmitResult, opts SubmitOptions, report *reporter, log logging.Logger) (SubmitResult, error) {
	key := auth.ObjectKey(ownerID, res.RecordID, res.FileName)
	rec := &models.RecordingRecord{
		Id:          res.RecordID,
		OwnerID:     ownerID,
		StoragePath: key,
		FileName:    res.FileName,
		FileSize:    res.Size,
		Duration:    durationPtr(c.DurationSeconds),
	}

	token, err := s.tokens(ownerID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("credential: %w", err)
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return SubmitResult{}, fmt.Errorf("create record: %w", err)
	}

	session, uctx := transport.NewSession(ctx, res.Size)
	defer session.Done()
	hb := newHeartbeat(ctx, s.records, rec, s.heartbeat, s.now, log)
	session.Observe(func(sent, total int64) {
		hb.beat(sent, total)
		if total > 0 {
			report.stage(StageUploading, float64(sent)*100/float64(total))
		}
	})
	if opts.OnSession != nil {
		opts.OnSession(session)
	}

	obj := transport.Object{Key: key, Data: data, ContentType: res.MimeType}
	err = s.transport.Upload(uctx, obj, token, session.Track)
	cctx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
	case errors.Is(err, common.ErrCancelled):
		if derr := s.records.Delete(cctx, ownerID, rec.Id); derr != nil && !errors.Is(derr, common.ErrNotFound) {
			log.Error(ctx, "failed to delete record of cancelled upload", "error", derr)
		}
		log.Info(ctx, "upload cancelled", "bytes_sent", session.Sent())
		return SubmitResult{}, err
	default:
		if merr := s.records.MarkError(cctx, ownerID, rec.Id, err.Error()); merr != nil {
			log.Error(ctx, "failed to mark record errored", "error", merr)
		}
		if !errors.Is(err, common.ErrTransfer) {
			err = fmt.Errorf("%w: %w", common.ErrTransfer, err)
		}
		return res, err
	}

	if err := markUploaded(ctx, s.records, rec, log); err != nil {
		return res, fmt.Errorf("mark done: %w", err)
	}
	report.stage(StageUploading, 100)
	res.Outcome = OutcomeUploaded
	log.Info(ctx, "capture uploaded", "bytes", res.Size, "key", key)
	return res, nil
}

func allowOriginal(opts SubmitOptions, cause error) bool {
	if opts.AllowOriginalOnFailure {
		return true
	}
	return opts.ConfirmOriginal != nil && opts.ConfirmOriginal(cause)
}

func shouldCompress(d sizemodel.Decision, mode CompressMode) bool {
	switch {
	case d == sizemodel.DecisionRequire:
		return true
	case mode == CompressAlways:
		return true
	case mode == CompressNever:
		return false
	default:
		return d == sizemodel.DecisionSuggest
	}
}

// reporter folds per-stage percentages into one monotonic figure. When a
// transcode runs it takes the first split percent of the bar.
type reporter struct {
	fn    func(Progress)
	split float64
	last  float64
}

func newReporter(fn func(Progress)) *reporter {
	return &reporter{fn: fn}
}

func (r *reporter) stage(st Stage, pct float64) {
	if r.fn == nil {
		return
	}
	pct = min(max(pct, 0), 100)

	var overall float64
	if st == StageTranscoding {
		overall = pct * r.split / 100
	} else {
		overall = r.split + pct*(100-r.split)/100
	}
	if overall < r.last {
		return
	}
	r.last = overall
	r.fn(Progress{Stage: st, Percent: overall})
}
