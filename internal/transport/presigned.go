package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/voxkeeper/internal/auth"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

// Presigner hands out short-lived URLs for a single object.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	PresignHead(ctx context.Context, key string) (string, error)
}

var (
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignHeadObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignHeadObject(ctx, in, optFns...)
	}
)

// S3Presigner presigns against one bucket.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

func NewS3Presigner(c *s3.Client, bucket string, ttl time.Duration) *S3Presigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Presigner{client: s3.NewPresignClient(c), bucket: bucket, ttl: ttl}
}

func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	req, err := presignPutObject(p.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (p *S3Presigner) PresignHead(ctx context.Context, key string) (string, error) {
	req, err := presignHeadObject(p.client, ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

type contentLengthKey struct{}

// PresignedTransport uploads whole objects with a presigned PUT.
type PresignedTransport struct {
	presigner Presigner
	http      *resty.Client
	secret    []byte
	retry     RetryPolicy
	log       logging.Logger
}

func NewPresignedTransport(p Presigner, secret []byte, rp RetryPolicy, log logging.Logger) *PresignedTransport {
	if log == nil {
		log = logging.Nop{}
	}
	c := resty.New().
		SetTimeout(0).
		SetPreRequestHook(func(_ *resty.Client, req *http.Request) error {
			// presigned PUTs reject chunked bodies
			if n, ok := req.Context().Value(contentLengthKey{}).(int64); ok {
				req.ContentLength = n
			}
			return nil
		})
	return &PresignedTransport{presigner: p, http: c, secret: secret, retry: rp, log: log.With("component", "presigned-transport")}
}

func (t *PresignedTransport) Upload(ctx context.Context, obj Object, credential string, progress ProgressFunc) error {
	if _, err := auth.Authorize(credential, t.secret, obj.Key); err != nil {
		return classify(ctx, "authorize", err)
	}
	if progress == nil {
		progress = func(int64, int64) {}
	}
	ct := aws.ToString(contentType(obj))
	total := int64(len(obj.Data))

	url, err := t.presigner.PresignPut(ctx, obj.Key, ct)
	if err != nil {
		return classify(ctx, "presign", err)
	}

	err = retry.Do(ctx, t.retry.backoff(), func(ctx context.Context) error {
		body := &countingReader{r: bytes.NewReader(obj.Data), total: total, progress: progress}
		resp, err := t.http.R().
			SetContext(context.WithValue(ctx, contentLengthKey{}, total)).
			SetHeader("Content-Type", ct).
			SetBody(body).
			Put(url)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		if resp.IsError() {
			err := fmt.Errorf("upload failed: %s; body: %s", resp.Status(), resp.String())
			if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusTooManyRequests {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return classify(ctx, "presigned put", err)
	}
	progress(total, total)
	return nil
}

func (t *PresignedTransport) Exists(ctx context.Context, key string) (bool, error) {
	url, err := t.presigner.PresignHead(ctx, key)
	if err != nil {
		return false, fmt.Errorf("presign head: %w", err)
	}
	resp, err := t.http.R().SetContext(ctx).Head(url)
	if err != nil {
		return false, fmt.Errorf("head object: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, fmt.Errorf("head object: %s", resp.Status())
	}
	return true, nil
}

// countingReader reports bytes handed to the HTTP client as they are read.
type countingReader struct {
	r        io.Reader
	n        int64
	total    int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		c.progress(c.n, c.total)
	}
	return n, err
}
