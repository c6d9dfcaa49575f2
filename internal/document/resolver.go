// Package document resolves book documents to local files and keeps the
// page and zoom state of an open document.
package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/sync/singleflight"

	"ereader/internal/platform/metrics"
	"ereader/internal/sentinel"
)

// pdfMagic starts every PDF file.
var pdfMagic = []byte("%PDF-")

const (
	defaultMaxBytes = 200 << 20
	defaultTimeout  = 2 * time.Minute
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Base resolves relative document paths against the backend.
// *client.Client satisfies it.
type Base interface {
	BaseURL() *url.URL
	Resolve(ref string) (*url.URL, error)
}

// Resolver turns a book's document reference into a readable local file.
// Local paths are checked and returned as-is. Remote documents are
// downloaded once into the cache directory, keyed by the SHA-256 of their
// URL; concurrent requests for the same URL share one download.
type Resolver struct {
	dir      string
	base     Base
	maxBytes int64
	timeout  time.Duration
	backend  HTTPDoer
	external HTTPDoer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	group    singleflight.Group
}

type ResolverOption func(*Resolver)

func WithMaxBytes(n int64) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBackendClient sets the client used for documents served by the
// backend host.
func WithBackendClient(c HTTPDoer) ResolverOption {
	return func(r *Resolver) {
		r.backend = c
	}
}

// WithExternalClient replaces the SSRF-guarded client used for every other
// host.
func WithExternalClient(c HTTPDoer) ResolverOption {
	return func(r *Resolver) {
		r.external = c
	}
}

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver caches downloads under dir. base may be nil when relative
// references are not expected.
func NewResolver(dir string, base Base, opts ...ResolverOption) (*Resolver, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("document cache dir: %w", sentinel.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}
	r := &Resolver{
		dir:      dir,
		base:     base,
		maxBytes: defaultMaxBytes,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.backend == nil {
		r.backend = &http.Client{Timeout: r.timeout}
	}
	if r.external == nil {
		r.external = NewSafeClient(r.timeout)
	}
	return r, nil
}

// NewSafeClient returns an HTTP client that refuses private, loopback and
// link-local destinations, checked after DNS resolution.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// Resolve returns the path of a local copy of src: a local file path, a
// file:// URL, an http(s) URL, or a path relative to the backend.
func (r *Resolver) Resolve(ctx context.Context, src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", fmt.Errorf("empty document reference: %w", sentinel.ErrInvalidInput)
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse document reference: %w", sentinel.ErrInvalidInput)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return r.fetch(ctx, u)
	case "file":
		return checkLocal(u.Path)
	case "":
	default:
		return "", fmt.Errorf("unsupported scheme %q: %w", u.Scheme, sentinel.ErrInvalidInput)
	}

	if info, err := os.Stat(src); err == nil && info.Mode().IsRegular() {
		return checkLocal(src)
	}
	if r.base == nil {
		return "", fmt.Errorf("document %s: %w", src, sentinel.ErrNotFound)
	}
	remote, err := r.base.Resolve(src)
	if err != nil {
		return "", fmt.Errorf("resolve document path: %w", sentinel.ErrInvalidInput)
	}
	return r.fetch(ctx, remote)
}

// CachePath is where the download of rawURL is stored.
func (r *Resolver) CachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(r.dir, hex.EncodeToString(sum[:])+".pdf")
}

// Purge deletes every cached document and reports how many were removed.
func (r *Resolver) Purge() (int, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.pdf"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", m, err)
		}
		removed++
	}
	return removed, nil
}

func (r *Resolver) fetch(ctx context.Context, u *url.URL) (string, error) {
	key := u.String()
	path := r.CachePath(key)
	if _, err := os.Stat(path); err == nil {
		r.metrics.RecordDocument("hit", 0)
		return path, nil
	}

	ch := r.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.download(dctx, u, path)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.metrics.RecordDocument("error", 0)
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Resolver) download(ctx context.Context, u *url.URL, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create document request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	start := time.Now()
	resp, err := r.clientFor(u).Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("download %s: %w", u.Redacted(), sentinel.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("download %s: status %d: %w", u.Redacted(), resp.StatusCode, sentinel.ErrUnavailable)
	case resp.ContentLength > r.maxBytes:
		return "", fmt.Errorf("document is %d bytes: %w", resp.ContentLength, sentinel.ErrTooLarge)
	}

	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	if n > r.maxBytes {
		return "", fmt.Errorf("document exceeds %d bytes: %w", r.maxBytes, sentinel.ErrTooLarge)
	}
	if err := checkMagic(tmp); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	committed = true

	r.metrics.RecordDocument("miss", n)
	r.logger.InfoContext(ctx, "document cached",
		"host", u.Host,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

// clientFor trusts the backend host and guards everything else.
func (r *Resolver) clientFor(u *url.URL) HTTPDoer {
	if r.base != nil {
		if b := r.base.BaseURL(); b != nil && strings.EqualFold(b.Host, u.Host) {
			return r.backend
		}
	}
	return r.external
}

func checkLocal(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("document %s: %w", path, sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("document %s is not a file: %w", path, sentinel.ErrInvalidInput)
	}
	if err := checkMagic(f); err != nil {
		return "", err
	}
	return path, nil
}

func checkMagic(f *os.File) error {
	head := make([]byte, len(pdfMagic))
	if _, err := f.ReadAt(head, 0); err != nil || !bytes.Equal(head, pdfMagic) {
		return fmt.Errorf("not a PDF document: %w", sentinel.ErrCorrupt)
	}
	return nil
}
