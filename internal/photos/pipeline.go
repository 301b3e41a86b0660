// Package photos turns uploaded images into stored photo references, either
// remote URLs or size-bounded inline payloads.
package photos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/imaging"
	"github.com/erikfacundo/mechiv2-sub000/internal/metrics"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
)

// Size ceilings in bytes.
const (
	DefaultInlineMaxBytes    = 200 * 1024
	DefaultInlineBudgetBytes = 600 * 1024
	DefaultDocumentMaxBytes  = 1024 * 1024
)

// DefaultSignedURLTTL is the lifetime of URLs returned by SignedURL.
const DefaultSignedURLTTL = 15 * time.Minute

// Limits bounds inline storage. Zero fields select the defaults.
type Limits struct {
	InlineMaxBytes    int
	InlineBudgetBytes int
	DocumentMaxBytes  int
}

func (l Limits) withDefaults() Limits {
	if l.InlineMaxBytes <= 0 {
		l.InlineMaxBytes = DefaultInlineMaxBytes
	}
	if l.InlineBudgetBytes <= 0 {
		l.InlineBudgetBytes = DefaultInlineBudgetBytes
	}
	if l.DocumentMaxBytes <= 0 {
		l.DocumentMaxBytes = DefaultDocumentMaxBytes
	}
	return l
}

// ProcessFunc resizes and re-encodes an image.
type ProcessFunc func(ctx context.Context, data []byte, opts imaging.Options) (*imaging.Result, error)

// Pipeline ingests and deletes photos.
type Pipeline struct {
	store     objstore.Store
	imageOpts imaging.Options
	limits    Limits
	logger    *slog.Logger
	metrics   *metrics.Metrics
	process   ProcessFunc
	now       func() time.Time
	newID     func() string
	signedTTL time.Duration
	// publicPrefix is where the store serves objects. URLs under it, or on
	// an R2 domain, are treated as remote.
	publicPrefix string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithImageOptions sets the resize parameters.
func WithImageOptions(o imaging.Options) Option {
	return func(p *Pipeline) { p.imageOpts = o }
}

// WithLimits sets the inline and document ceilings.
func WithLimits(l Limits) Option {
	return func(p *Pipeline) { p.limits = l.withDefaults() }
}

// WithMetrics records ingest outcomes and processing time.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithProcessor replaces imaging.Process.
func WithProcessor(fn ProcessFunc) Option {
	return func(p *Pipeline) { p.process = fn }
}

// WithClock sets the time source for keys and timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDFunc sets the photo id generator.
func WithIDFunc(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// WithSignedURLTTL sets how long URLs returned by SignedURL stay valid.
func WithSignedURLTTL(d time.Duration) Option {
	return func(p *Pipeline) { p.signedTTL = d }
}

// WithPublicPrefix overrides the URL prefix used to recognise stored
// objects. By default it is taken from the store when it exposes one.
func WithPublicPrefix(prefix string) Option {
	return func(p *Pipeline) { p.publicPrefix = prefix }
}

// New creates a Pipeline writing to store.
func New(store objstore.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		limits:    Limits{}.withDefaults(),
		logger:    logger,
		process:   imaging.Process,
		now:       time.Now,
		newID:     uuid.NewString,
		signedTTL: DefaultSignedURLTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	if pp, ok := store.(objstore.PublicPrefixer); ok && p.publicPrefix == "" {
		p.publicPrefix = pp.PublicURL()
	}
	return p
}

// Limits returns the effective ceilings.
func (p *Pipeline) Limits() Limits { return p.limits }

// IngestRequest describes one image to attach to a record.
type IngestRequest struct {
	Data        []byte
	FileName    string
	Prefix      string
	Kind        string
	Description string
	// Existing holds the photos already on the record, used for the
	// inline budget.
	Existing []models.Photo
}

// Outcome is the result of a successful ingest.
type Outcome struct {
	Photo models.Photo
	// Warning is set when the upload failed and the photo was stored inline.
	Warning string
}

// Ingest processes the image, uploads it and falls back to inline storage
// when the upload fails. A missing storage configuration is returned as is.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*Outcome, error) {
	res, err := p.runProcess(ctx, req.Data)
	if err != nil {
		p.metrics.PhotoIngested(metrics.OutcomeRejected)
		return nil, err
	}

	photo := models.Photo{
		ID:          p.newID(),
		Timestamp:   p.now().UTC(),
		Description: strings.TrimSpace(req.Description),
		Kind:        req.Kind,
	}

	url, _, err := p.put(ctx, res, req.FileName, req.Prefix)
	if err == nil {
		photo.RemoteURL = url
		p.metrics.PhotoIngested(metrics.OutcomeRemote)
		return &Outcome{Photo: photo}, nil
	}
	if errors.Is(err, apperr.ErrNotConfigured) {
		p.metrics.PhotoIngested(metrics.OutcomeNotConfigured)
		return nil, err
	}

	p.logger.Warn("photo upload failed, storing inline",
		slog.String("file", req.FileName),
		slog.Int("bytes", res.Size()),
		slog.String("error", err.Error()),
	)

	inline, ierr := p.inline(res, req.Existing)
	if ierr != nil {
		p.metrics.PhotoIngested(metrics.OutcomeRejected)
		return nil, ierr
	}
	photo.InlineData = inline
	p.metrics.PhotoIngested(metrics.OutcomeInlineFallback)
	return &Outcome{Photo: photo, Warning: err.Error()}, nil
}

// Upload processes the image and stores it remotely without any inline
// fallback. It returns the public URL and the object key.
func (p *Pipeline) Upload(ctx context.Context, data []byte, fileName, prefix string) (string, string, error) {
	res, err := p.runProcess(ctx, data)
	if err != nil {
		return "", "", err
	}
	url, key, err := p.put(ctx, res, fileName, prefix)
	if err != nil {
		return "", "", err
	}
	p.metrics.PhotoIngested(metrics.OutcomeRemote)
	return url, key, nil
}

// SignedURL returns a temporary URL for the object stored under key.
func (p *Pipeline) SignedURL(ctx context.Context, key string) (string, error) {
	return p.store.SignedURL(ctx, key, p.signedTTL)
}

// IsRemote reports whether rawURL points into object storage. Such images
// were optimized on upload and are served as is.
func (p *Pipeline) IsRemote(rawURL string) bool {
	return objstore.IsRemoteURL(rawURL, p.publicPrefix)
}

// DeleteURL removes a previously uploaded object. URLs outside object
// storage are rejected with ErrInvalid.
func (p *Pipeline) DeleteURL(ctx context.Context, rawURL string) error {
	if !p.IsRemote(rawURL) {
		return fmt.Errorf("%w: %s is not in object storage", apperr.ErrInvalid, rawURL)
	}
	return p.store.Delete(ctx, rawURL)
}

// Delete releases the storage behind photo. Remote deletes that fail are
// logged and swallowed so the record can still be removed.
func (p *Pipeline) Delete(ctx context.Context, photo models.Photo) {
	if photo.RemoteURL == "" {
		return
	}
	if !p.IsRemote(photo.RemoteURL) {
		p.logger.Debug("photo not in object storage, nothing to delete",
			slog.String("photo_id", photo.ID),
			slog.String("url", photo.RemoteURL))
		return
	}
	if err := p.store.Delete(ctx, photo.RemoteURL); err != nil {
		p.logger.Warn("remote photo delete failed",
			slog.String("photo_id", photo.ID),
			slog.String("url", photo.RemoteURL),
			slog.String("error", err.Error()),
		)
	}
}

// CheckDocument applies the configured document ceiling.
func (p *Pipeline) CheckDocument(doc any) error {
	return checkDocumentSize(doc, p.limits.DocumentMaxBytes)
}

func (p *Pipeline) runProcess(ctx context.Context, data []byte) (*imaging.Result, error) {
	start := p.now()
	res, err := p.process(ctx, data, p.imageOpts)
	p.metrics.ObserveImageProcessing(p.now().Sub(start))
	if err != nil {
		return nil, fmt.Errorf("processing image: %w", err)
	}
	return res, nil
}

// put stores res; any failure other than ErrNotConfigured is wrapped in
// ErrUploadFailed.
func (p *Pipeline) put(ctx context.Context, res *imaging.Result, fileName, prefix string) (string, string, error) {
	key := objstore.Key(prefix, storedName(fileName, res.ContentType), p.now())
	url, err := p.store.Put(ctx, res.Bytes, key, res.ContentType)
	if errors.Is(err, apperr.ErrNotConfigured) {
		return "", "", err
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", apperr.ErrUploadFailed, err)
	}
	return url, key, nil
}

// inline applies the per-image and per-record ceilings. The image limit is
// measured on processed bytes, the record budget on stored payload length.
func (p *Pipeline) inline(res *imaging.Result, existing []models.Photo) (string, error) {
	if res.Size() > p.limits.InlineMaxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", apperr.ErrImageTooLargeForInline, res.Size(), p.limits.InlineMaxBytes)
	}
	payload := res.DataURL()
	total := models.InlineBytes(existing) + len(payload)
	if total > p.limits.InlineBudgetBytes {
		return "", fmt.Errorf("%w: %d bytes, budget %d", apperr.ErrInlineBudgetExceeded, total, p.limits.InlineBudgetBytes)
	}
	return payload, nil
}

// storedName keeps the caller's base name with the extension of the
// re-encoded type, or generates one.
func storedName(fileName, contentType string) string {
	ext := imaging.Extension(contentType)
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(fileName, `\`, "/")), path.Ext(fileName))
	if base == "" || base == "." || base == "/" {
		base = uuid.NewString()
	}
	return base + ext
}
