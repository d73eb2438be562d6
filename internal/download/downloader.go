// Package download fetches catalog assets to disk with integrity validation.
// Fetches are idempotent: a destination that already holds a valid image is
// left untouched, so interrupted runs resume instead of re-downloading.
package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	transportAttempts = 3
	transportBackoff  = 500 * time.Millisecond
)

// Outcome says how a Fetch satisfied its request.
type Outcome int

const (
	// OutcomeDownloaded means the file was fetched and validated this call.
	OutcomeDownloaded Outcome = iota
	// OutcomeCached means a valid file was already on disk.
	OutcomeCached
)

func (o Outcome) String() string {
	if o == OutcomeCached {
		return "cached"
	}
	return "downloaded"
}

// Config controls the download transport.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// Transport overrides the default HTTP transport. Tests inject their
	// server's TLS-aware transport here.
	Transport http.RoundTripper
}

// Downloader fetches assets over HTTPS. It is safe for concurrent use.
type Downloader struct {
	http *resty.Client
	log  *zap.Logger
}

// New builds a Downloader.
func New(cfg Config, log *zap.Logger) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	return &Downloader{http: client, log: log}
}

// Fetch downloads rawURL to dest. A valid existing file short-circuits to
// OutcomeCached; an invalid one is deleted and re-fetched. Transport errors
// are retried with linear backoff, validation failures are not.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) (Outcome, error) {
	ok, err := fileValid(dest)
	if err != nil {
		return 0, fmt.Errorf("inspect %s: %w", dest, err)
	}
	if ok {
		return OutcomeCached, nil
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		d.log.Warn("replacing invalid file on disk", zap.String("path", dest))
		if err := os.Remove(dest); err != nil {
			return 0, fmt.Errorf("remove invalid file %s: %w", dest, err)
		}
	}

	body, contentType, err := d.get(ctx, UpgradeURL(rawURL))
	if err != nil {
		return 0, err
	}
	if err := validateBody(body, contentType); err != nil {
		return 0, fmt.Errorf("validate %s: %w", rawURL, err)
	}

	if err := writeAtomic(dest, body); err != nil {
		return 0, err
	}
	return OutcomeDownloaded, nil
}

// get retrieves the body, retrying transport failures. HTTP status errors are
// terminal: the server answered, retrying will not change its mind.
func (d *Downloader) get(ctx context.Context, url string) ([]byte, string, error) {
	var body []byte
	var contentType string
	err := retry.Do(
		func() error {
			resp, err := d.http.R().SetContext(ctx).Get(url)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return retry.Unrecoverable(fmt.Errorf("status %d", resp.StatusCode()))
			}
			body = resp.Body()
			contentType = resp.Header().Get("Content-Type")
			return nil
		},
		retry.Attempts(transportAttempts),
		retry.DelayType(linearBackoff),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", url, err)
	}
	return body, contentType, nil
}

// linearBackoff waits backoff x attempt number, matching the store's
// contention policy rather than retry-go's default exponential curve.
func linearBackoff(n uint, _ error, _ *retry.Config) time.Duration {
	return time.Duration(n+1) * transportBackoff
}

// validateBody rejects bodies that cannot be a real catalog image. HTML gets
// its own diagnostic because it means the CDN served an error or anti-bot
// page with a 200.
func validateBody(body []byte, contentType string) error {
	prefix := body
	if len(prefix) > signatureLen {
		prefix = prefix[:signatureLen]
	}
	if looksLikeHTML(prefix) {
		return fmt.Errorf("server returned html instead of an image: %q", snippet(body))
	}
	// octet-stream is what the CDN labels most images; only an explicit
	// non-image type is a rejection.
	if contentType != "" &&
		!strings.HasPrefix(contentType, "image/") &&
		!strings.HasPrefix(contentType, "application/octet-stream") {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	if len(body) < minValidSize {
		return fmt.Errorf("body too small: %d bytes", len(body))
	}
	if !validSignature(prefix) {
		return fmt.Errorf("unrecognized image signature: % x", prefix)
	}
	return nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return strings.TrimSpace(s)
}

// writeAtomic lands the body via temp file + rename so a crashed run never
// leaves a half-written file that a later run would trust.
func writeAtomic(dest string, body []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// fileValid reports whether dest holds a plausible image already.
func fileValid(dest string) (bool, error) {
	info, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() || info.Size() < minValidSize {
		return false, nil
	}
	f, err := os.Open(dest)
	if err != nil {
		return false, err
	}
	defer f.Close()
	prefix := make([]byte, signatureLen)
	n, err := f.Read(prefix)
	if err != nil {
		return false, nil
	}
	return validSignature(prefix[:n]), nil
}
