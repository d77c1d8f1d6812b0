package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/sizemodel"
	"github.com/dmitrijs2005/voxkeeper/internal/audio/validation"
	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/services"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/filex"
	"github.com/dustin/go-humanize"
)

var errUsage = errors.New("usage: upload <path> [--compress|--no-compress] [--force-original]")

func parseUploadArgs(args []string) (string, services.SubmitOptions, error) {
	var (
		path       string
		opts       services.SubmitOptions
		compress   bool
		noCompress bool
	)
	for _, arg := range args {
		switch arg {
		case "--compress":
			compress = true
		case "--no-compress":
			noCompress = true
		case "--force-original":
			opts.AllowOriginalOnFailure = true
		default:
			if path != "" || len(arg) > 1 && arg[0] == '-' {
				return "", opts, errUsage
			}
			path = arg
		}
	}
	if path == "" || compress && noCompress {
		return "", opts, errUsage
	}
	switch {
	case compress:
		opts.Compress = services.CompressAlways
	case noCompress:
		opts.Compress = services.CompressNever
	}
	return path, opts, nil
}

// Upload reads a file and submits it. Ctrl-C cancels the running transcode
// or upload.
func (a *App) Upload(ctx context.Context, args []string) error {
	path, opts, err := parseUploadArgs(args)
	if err != nil {
		a.printf("%v\n", err)
		return err
	}

	data, err := filex.ReadLimited(path, a.maxBytes)
	if err != nil {
		if errors.Is(err, filex.ErrTooLarge) {
			a.printf("file too large: the limit is %s\n", humanize.Bytes(uint64(a.maxBytes)))
		} else {
			a.printf("cannot read %s: %v\n", path, err)
		}
		return err
	}

	c := models.Capture{
		Data:     data,
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		FileName: filepath.Base(path),
	}

	bar := newProgressBar(a.out, 30)
	if a.interactive {
		opts.OnProgress = bar.update
		opts.ConfirmOriginal = func(error) bool {
			bar.finish()
			return confirm(a.reader, "compression failed, upload original anyway?", false, a.out)
		}
		if opts.Compress == services.CompressAuto {
			opts.ConfirmCompress = func(d sizemodel.Decision, size int64) bool {
				return confirm(a.reader, fmt.Sprintf("%s is %s, compress before upload?",
					c.FileName, humanize.Bytes(uint64(size))), d == sizemodel.DecisionSuggest, a.out)
			}
		}
	}

	uctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := a.uploader.Submit(uctx, a.owner, c, opts)
	bar.finish()
	if err != nil {
		a.reportUploadError(err)
		return err
	}

	if res.Warning != "" {
		a.printf("warning: %s\n", res.Warning)
	}
	switch res.Outcome {
	case services.OutcomeQueued:
		a.printf("offline: %s queued for sync (%s)\n", res.FileName, humanize.Bytes(uint64(res.Size)))
	default:
		a.printf("uploaded %s as %s (%s)\n", res.FileName, res.RecordID, humanize.Bytes(uint64(res.Size)))
	}
	return nil
}

func (a *App) reportUploadError(err error) {
	var rej *validation.Rejection
	switch {
	case errors.As(err, &rej):
		a.printf("rejected: %s\n", rej.Reason)
	case errors.Is(err, common.ErrCancelled):
		a.printf("upload cancelled\n")
	case errors.Is(err, common.ErrTranscodeExhausted):
		a.printf("compression failed; run again with --force-original to upload the original\n")
	case errors.Is(err, common.ErrDuplicate):
		a.printf("this recording is already waiting for sync\n")
	case errors.Is(err, common.ErrTransfer):
		a.printf("upload failed: %v\nrun the same upload command to retry\n", err)
	default:
		a.printf("upload failed: %v\n", err)
	}
}
