package photos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/imaging"
	"github.com/erikfacundo/mechiv2-sub000/internal/metrics"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

type fakeStore struct {
	putErr    error
	deleteErr error
	puts      []string
	deletes   []string
}

func (f *fakeStore) Put(_ context.Context, _ []byte, key, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.puts = append(f.puts, key)
	return "https://pub-test.r2.dev/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, rawURL string) error {
	f.deletes = append(f.deletes, rawURL)
	return f.deleteErr
}

func (f *fakeStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://pub-test.r2.dev/" + key + "?sig", nil
}

var testNow = time.UnixMilli(1715333400000)

// sized returns a processor that yields n bytes of JPEG output.
func sized(n int) ProcessFunc {
	return func(context.Context, []byte, imaging.Options) (*imaging.Result, error) {
		return &imaging.Result{Bytes: bytes.Repeat([]byte{0xAB}, n), ContentType: "image/jpeg"}, nil
	}
}

func newPipeline(store *fakeStore, n int, opts ...Option) *Pipeline {
	base := []Option{
		WithProcessor(sized(n)),
		WithClock(func() time.Time { return testNow }),
		WithIDFunc(func() string { return "photo-1" }),
	}
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), append(base, opts...)...)
}

func TestIngest_Remote(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(store, 1000)

	out, err := p.Ingest(context.Background(), IngestRequest{Data: []byte("x"), FileName: "front.png", Prefix: "AB12CD", Kind: models.PhotoKindInitial})
	require.NoError(t, err)
	assert.Equal(t, "https://pub-test.r2.dev/AB12CD/1715333400000-front.jpg", out.Photo.RemoteURL)
	assert.Empty(t, out.Photo.InlineData)
	assert.Empty(t, out.Warning)
	assert.Equal(t, models.PhotoKindInitial, out.Photo.Kind)
	assert.Equal(t, []string{"AB12CD/1715333400000-front.jpg"}, store.puts)
}

func TestIngest_NotConfiguredDoesNotFallBack(t *testing.T) {
	store := &fakeStore{putErr: apperr.ErrNotConfigured}
	p := newPipeline(store, 1000)

	out, err := p.Ingest(context.Background(), IngestRequest{Data: []byte("x")})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperr.ErrNotConfigured)
	assert.NotErrorIs(t, err, apperr.ErrUploadFailed)
}

func TestIngest_UploadFailureFallsBackInline(t *testing.T) {
	store := &fakeStore{putErr: errors.New("connection reset")}
	m := metrics.New()
	p := newPipeline(store, 1000, WithMetrics(m))

	out, err := p.Ingest(context.Background(), IngestRequest{Data: []byte("x")})
	require.NoError(t, err)
	assert.Empty(t, out.Photo.RemoteURL)
	assert.True(t, strings.HasPrefix(out.Photo.InlineData, "data:image/jpeg;base64,"))
	assert.Contains(t, out.Warning, "connection reset")
	assert.True(t, out.Photo.IsInline())
}

func TestIngest_InlineImageBoundary(t *testing.T) {
	store := &fakeStore{putErr: errors.New("down")}

	_, err := newPipeline(store, DefaultInlineMaxBytes).Ingest(context.Background(), IngestRequest{Data: []byte("x")})
	require.NoError(t, err, "exactly the limit is accepted")

	_, err = newPipeline(store, DefaultInlineMaxBytes+1).Ingest(context.Background(), IngestRequest{Data: []byte("x")})
	assert.ErrorIs(t, err, apperr.ErrImageTooLargeForInline)
	assert.NotErrorIs(t, err, apperr.ErrInlineBudgetExceeded)
}

func TestIngest_InlineBudget(t *testing.T) {
	store := &fakeStore{putErr: errors.New("down")}
	p := newPipeline(store, 10)
	payloadLen := len("data:image/jpeg;base64,") + 16 // 10 bytes encode to 16 base64 chars

	existing := []models.Photo{
		{ID: "a", InlineData: strings.Repeat("A", DefaultInlineBudgetBytes-payloadLen)},
		{ID: "r", RemoteURL: "https://pub-test.r2.dev/x.jpg"},
	}
	_, err := p.Ingest(context.Background(), IngestRequest{Data: []byte("x"), Existing: existing})
	require.NoError(t, err, "budget filled exactly")

	existing[0].InlineData += "A"
	_, err = p.Ingest(context.Background(), IngestRequest{Data: []byte("x"), Existing: existing})
	assert.ErrorIs(t, err, apperr.ErrInlineBudgetExceeded)
	assert.ErrorIs(t, err, apperr.ErrImageTooLargeForInline)
}

func TestIngest_ProcessingError(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(store, 0, WithProcessor(func(context.Context, []byte, imaging.Options) (*imaging.Result, error) {
		return nil, apperr.ErrDecode
	}))
	_, err := p.Ingest(context.Background(), IngestRequest{Data: []byte("x")})
	assert.ErrorIs(t, err, apperr.ErrDecode)
	assert.Empty(t, store.puts)
}

func TestUpload(t *testing.T) {
	store := &fakeStore{}
	url, key, err := newPipeline(store, 10).Upload(context.Background(), []byte("x"), "", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "photos/1715333400000-"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	store.putErr = errors.New("timeout")
	_, _, err = newPipeline(store, 10).Upload(context.Background(), []byte("x"), "a.jpg", "")
	assert.ErrorIs(t, err, apperr.ErrUploadFailed)
}

func TestDelete(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("403")}
	p := newPipeline(store, 10)

	p.Delete(context.Background(), models.Photo{ID: "i", InlineData: "data:image/png;base64,AA=="})
	assert.Empty(t, store.deletes, "inline photos need no external call")

	p.Delete(context.Background(), models.Photo{ID: "r", RemoteURL: "https://pub-test.r2.dev/a.jpg"})
	assert.Equal(t, []string{"https://pub-test.r2.dev/a.jpg"}, store.deletes)
}

func TestIsRemoteAndForeignURLs(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(store, 10, WithPublicPrefix("https://img.example.com"))

	assert.True(t, p.IsRemote("https://img.example.com/AB12/1-a.jpg"))
	assert.True(t, p.IsRemote("https://pub-test.r2.dev/a.jpg"))
	assert.False(t, p.IsRemote("https://elsewhere.example.com/a.jpg"))
	assert.False(t, p.IsRemote("data:image/jpeg;base64,AA=="))

	p.Delete(context.Background(), models.Photo{ID: "x", RemoteURL: "https://elsewhere.example.com/a.jpg"})
	assert.Empty(t, store.deletes, "foreign URLs are not sent to the store")

	err := p.DeleteURL(context.Background(), "https://elsewhere.example.com/a.jpg")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	require.NoError(t, p.DeleteURL(context.Background(), "https://img.example.com/AB12/1-a.jpg"))
	assert.Equal(t, []string{"https://img.example.com/AB12/1-a.jpg"}, store.deletes)
}

func TestStoredName(t *testing.T) {
	assert.Equal(t, "front.jpg", storedName("front.HEIC", "image/jpeg"))
	assert.Equal(t, "scan.png", storedName(`C:\tmp\scan.png`, "image/png"))
	assert.True(t, strings.HasSuffix(storedName("", "image/png"), ".png"))
}
