// Package validation decides whether a capture may enter the pipeline at all.
package validation

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the hard ceiling on capture size.
const DefaultMaxBytes int64 = 1_000_000_000

// Rejection is a user-displayable reason a capture was refused.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func reject(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

var allowedTypes = map[string]struct{}{
	"audio/mpeg":      {},
	"audio/mp3":       {},
	"audio/mp4":       {},
	"audio/x-m4a":     {},
	"audio/m4a":       {},
	"audio/aac":       {},
	"audio/wav":       {},
	"audio/x-wav":     {},
	"audio/wave":      {},
	"audio/ogg":       {},
	"audio/webm":      {},
	"audio/flac":      {},
	"audio/x-flac":    {},
	"audio/3gpp":      {},
	"audio/amr":       {},
	"video/mp4":       {},
	"video/webm":      {},
	"video/quicktime": {},
	"video/3gpp":      {},
}

var allowedExtensions = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".mp4": {}, ".aac": {}, ".wav": {}, ".ogg": {}, ".oga": {},
	".opus": {}, ".webm": {}, ".flac": {}, ".3gp": {}, ".amr": {}, ".mov": {},
}

// Validator checks captures against the format allow-list and size ceiling.
type Validator struct {
	MaxBytes int64
}

func New(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{MaxBytes: maxBytes}
}

// Validate returns the effective MIME type of an acceptable capture, or a
// *Rejection. It has no side effects.
func (v *Validator) Validate(c models.Capture) (string, error) {
	size := c.Size()
	if size == 0 {
		return "", reject("%s is empty", displayName(c))
	}
	if size > v.MaxBytes {
		return "", reject("file too large: %s exceeds the %s limit",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(v.MaxBytes)))
	}

	mt := EffectiveType(c)
	if _, ok := allowedTypes[mt]; ok {
		return mt, nil
	}

	// an unknown declared type still passes on a known audio extension
	ext := strings.ToLower(filepath.Ext(c.FileName))
	if _, ok := allowedExtensions[ext]; ok && isGeneric(mt) {
		return mt, nil
	}

	if mt == "" {
		mt = "unknown type"
	}
	return "", reject("unsupported format: %s (%s)", mt, displayName(c))
}

// EffectiveType normalizes the declared MIME type and falls back to content
// sniffing when nothing specific was declared.
func EffectiveType(c models.Capture) string {
	mt := Normalize(c.MimeType)
	if !isGeneric(mt) {
		return mt
	}
	if len(c.Data) == 0 {
		return mt
	}
	return Normalize(mimetype.Detect(c.Data).String())
}

// Normalize lower-cases a media type and strips its parameters.
func Normalize(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt, _, _ = strings.Cut(declared, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func isGeneric(mt string) bool {
	return mt == "" || mt == "application/octet-stream"
}

func displayName(c models.Capture) string {
	if c.FileName == "" {
		return "capture"
	}
	return c.FileName
}
