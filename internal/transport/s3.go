package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/voxkeeper/internal/auth"
	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/transfers"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/sethvargo/go-retry"
)

// MinPartSize is the smallest part S3 accepts except for the last one.
const MinPartSize = 5 << 20

// S3API is the subset of *s3.Client the transport needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// RetryPolicy bounds per-request retries.
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return retry.WithMaxRetries(p.MaxRetries, retry.NewExponential(base))
}

type S3Transport struct {
	api      S3API
	bucket   string
	partSize int64
	parts    transfers.Repository
	secret   []byte
	retry    RetryPolicy
	log      logging.Logger
}

func NewS3Transport(api S3API, bucket string, partSize int64, parts transfers.Repository, secret []byte, rp RetryPolicy, log logging.Logger) *S3Transport {
	if partSize < MinPartSize {
		partSize = MinPartSize
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &S3Transport{
		api: api, bucket: bucket, partSize: partSize, parts: parts,
		secret: secret, retry: rp, log: log.With("component", "s3-transport"),
	}
}

func (t *S3Transport) Upload(ctx context.Context, obj Object, credential string, progress ProgressFunc) error {
	if _, err := auth.Authorize(credential, t.secret, obj.Key); err != nil {
		return classify(ctx, "authorize", err)
	}
	if progress == nil {
		progress = func(int64, int64) {}
	}

	total := int64(len(obj.Data))
	if total <= t.partSize {
		return classify(ctx, "put object", t.put(ctx, obj, progress))
	}
	return t.multipart(ctx, obj, progress)
}

func (t *S3Transport) put(ctx context.Context, obj Object, progress ProgressFunc) error {
	total := int64(len(obj.Data))
	progress(0, total)
	err := retry.Do(ctx, t.retry.backoff(), func(ctx context.Context) error {
		_, err := t.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(t.bucket),
			Key:           aws.String(obj.Key),
			Body:          bytes.NewReader(obj.Data),
			ContentLength: aws.Int64(total),
			ContentType:   contentType(obj),
		})
		return retryable(ctx, err)
	})
	if err != nil {
		return err
	}
	progress(total, total)
	return nil
}

// multipart uploads obj in parts, resuming a recorded upload for the same
// key and size when there is one.
func (t *S3Transport) multipart(ctx context.Context, obj Object, progress ProgressFunc) error {
	log := t.log.With("key", obj.Key, "bytes", len(obj.Data))

	st, resumed, err := t.begin(ctx, obj)
	if err != nil {
		return classify(ctx, "create multipart upload", err)
	}

	err = t.uploadParts(ctx, obj, st, progress, log)
	if resumed && isNoSuchUpload(err) {
		// the recorded upload expired on the server side; start over once
		log.Warn(ctx, "recorded multipart upload is gone, restarting")
		if ferr := t.parts.Forget(ctx, obj.Key); ferr != nil {
			return classify(ctx, "forget transfer", ferr)
		}
		st, _, err = t.begin(ctx, obj)
		if err != nil {
			return classify(ctx, "create multipart upload", err)
		}
		err = t.uploadParts(ctx, obj, st, progress, log)
	}

	if err != nil {
		if ctx.Err() != nil {
			t.abort(ctx, st, log)
		}
		return classify(ctx, "multipart upload", err)
	}
	return nil
}

func (t *S3Transport) begin(ctx context.Context, obj Object) (*models.TransferState, bool, error) {
	total := int64(len(obj.Data))

	st, err := t.parts.Get(ctx, obj.Key)
	switch {
	case err == nil && st.Total == total && st.PartSize == t.partSize:
		return st, true, nil
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return nil, false, err
	}

	out, err := t.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(obj.Key),
		ContentType: contentType(obj),
	})
	if err != nil {
		return nil, false, err
	}
	st = &models.TransferState{Key: obj.Key, UploadID: aws.ToString(out.UploadId), Total: total, PartSize: t.partSize}
	if err := t.parts.Begin(ctx, st); err != nil {
		return nil, false, err
	}
	return st, false, nil
}

func (t *S3Transport) uploadParts(ctx context.Context, obj Object, st *models.TransferState, progress ProgressFunc, log logging.Logger) error {
	total := int64(len(obj.Data))
	done := make(map[int32]models.TransferPart, len(st.Parts))
	var sent int64
	for _, p := range st.Parts {
		done[p.Number] = p
		sent += p.Size
	}
	if len(done) > 0 {
		log.Info(ctx, "resuming multipart upload", "parts_done", len(done), "sent", sent)
	}
	progress(sent, total)

	for off, n := int64(0), int32(1); off < total; off, n = off+st.PartSize, n+1 {
		if _, ok := done[n]; ok {
			continue
		}
		chunk := obj.Data[off:min(off+st.PartSize, total)]

		var etag string
		err := retry.Do(ctx, t.retry.backoff(), func(ctx context.Context) error {
			out, err := t.api.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(t.bucket),
				Key:           aws.String(obj.Key),
				UploadId:      aws.String(st.UploadID),
				PartNumber:    aws.Int32(n),
				Body:          bytes.NewReader(chunk),
				ContentLength: aws.Int64(int64(len(chunk))),
			})
			if err != nil {
				return retryable(ctx, err)
			}
			etag = aws.ToString(out.ETag)
			return nil
		})
		if err != nil {
			return fmt.Errorf("part %d: %w", n, err)
		}

		part := models.TransferPart{Number: n, ETag: etag, Size: int64(len(chunk))}
		if err := t.parts.AddPart(ctx, obj.Key, part); err != nil {
			return err
		}
		done[n] = part
		sent += part.Size
		progress(sent, total)
		log.Debug(ctx, "part acknowledged", "part", n, "sent", sent)
	}

	completed := make([]types.CompletedPart, 0, len(done))
	for _, p := range done {
		completed = append(completed, types.CompletedPart{ETag: aws.String(p.ETag), PartNumber: aws.Int32(p.Number)})
	}
	sort.Slice(completed, func(i, j int) bool {
		return aws.ToInt32(completed[i].PartNumber) < aws.ToInt32(completed[j].PartNumber)
	})

	err := retry.Do(ctx, t.retry.backoff(), func(ctx context.Context) error {
		_, err := t.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          aws.String(t.bucket),
			Key:             aws.String(obj.Key),
			UploadId:        aws.String(st.UploadID),
			MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
		})
		return retryable(ctx, err)
	})
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	if err := t.parts.Forget(ctx, obj.Key); err != nil {
		log.Warn(ctx, "forget transfer bookkeeping", "error", err)
	}
	return nil
}

// abort runs after cancellation, so it gets a fresh context.
func (t *S3Transport) abort(ctx context.Context, st *models.TransferState, log logging.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_, err := t.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(st.Key),
		UploadId: aws.String(st.UploadID),
	})
	if err != nil {
		log.Warn(ctx, "abort multipart upload", "error", err)
	}
	if err := t.parts.Forget(ctx, st.Key); err != nil {
		log.Warn(ctx, "forget transfer bookkeeping", "error", err)
	}
}

// Exists reports whether an object is stored at key.
func (t *S3Transport) Exists(ctx context.Context, key string) (bool, error) {
	_, err := t.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object: %w", err)
}

func retryable(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || isNoSuchUpload(err) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket", "EntityTooSmall", "InvalidPart":
			return err
		}
	}
	return retry.RetryableError(err)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

func isNoSuchUpload(err error) bool {
	if err == nil {
		return false
	}
	var nsu *types.NoSuchUpload
	if errors.As(err, &nsu) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload"
}

func contentType(obj Object) *string {
	if obj.ContentType == "" {
		return aws.String("application/octet-stream")
	}
	return aws.String(obj.ContentType)
}
