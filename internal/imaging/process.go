// Package imaging resizes and recompresses uploaded photos before they are
// stored, and decodes the base64 payloads clients send them in.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"math"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

// Processing limits.
const (
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 800
	DefaultQuality   = 0.65
	DefaultTimeout   = 30 * time.Second

	// Sources larger than this on either axis are always reduced with
	// PathologicalQuality, whatever the caller asked for.
	PathologicalDim     = 4000
	PathologicalQuality = 0.60

	// MaxCanvasDim is the largest target edge that will be rasterized.
	MaxCanvasDim = 16384
)

// Options controls Process. Zero values select the defaults.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
	Timeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxHeight
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = DefaultQuality
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Result is a processed image.
type Result struct {
	Bytes        []byte
	ContentType  string
	Width        int
	Height       int
	SourceFormat string
}

// Size returns the encoded size in bytes.
func (r *Result) Size() int { return len(r.Bytes) }

// Base64 returns the encoded bytes as standard base64.
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Bytes)
}

// DataURL returns the image as a data: URL suitable for inline storage.
func (r *Result) DataURL() string {
	return "data:" + r.ContentType + ";base64," + r.Base64()
}

// Process decodes data, scales it down to fit the configured box and
// re-encodes it. PNG input stays PNG; everything else becomes JPEG.
func Process(ctx context.Context, data []byte, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, contextErr(err, opts.Timeout)
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := process(data, opts)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, contextErr(ctx.Err(), opts.Timeout)
	case out := <-done:
		return out.res, out.err
	}
}

func contextErr(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", apperr.ErrTimeout, timeout)
	}
	return err
}

func process(data []byte, opts Options) (*Result, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", apperr.ErrDecode)
	}

	opts = effectiveOptions(cfg.Width, cfg.Height, opts)
	tw, th := TargetSize(cfg.Width, cfg.Height, opts.MaxWidth, opts.MaxHeight)
	if err := checkCanvas(tw, th); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrDecode, err)
	}

	isPNG := format == "png"
	dst := scale(src, tw, th, !isPNG)

	var buf bytes.Buffer
	res := &Result{Width: tw, Height: th, SourceFormat: format}
	if isPNG {
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("imaging: encode png: %w", err)
		}
		res.ContentType = "image/png"
	} else {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality(opts.Quality)}); err != nil {
			return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
		}
		res.ContentType = "image/jpeg"
	}
	res.Bytes = buf.Bytes()
	return res, nil
}

// effectiveOptions forces the conservative settings for oversized sources.
func effectiveOptions(w, h int, opts Options) Options {
	if w > PathologicalDim || h > PathologicalDim {
		opts.MaxWidth = DefaultMaxWidth
		opts.MaxHeight = DefaultMaxHeight
		opts.Quality = PathologicalQuality
	}
	return opts
}

// checkCanvas rejects targets too large to rasterize.
func checkCanvas(w, h int) error {
	if w > MaxCanvasDim || h > MaxCanvasDim {
		return fmt.Errorf("%w: target %dx%d exceeds %d px", apperr.ErrUnsupportedDimensions, w, h, MaxCanvasDim)
	}
	return nil
}

// TargetSize scales w x h down (never up) to fit maxW x maxH, keeping the
// aspect ratio.
func TargetSize(w, h, maxW, maxH int) (int, int) {
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	if ratio >= 1 {
		return w, h
	}
	tw := int(math.Round(float64(w) * ratio))
	th := int(math.Round(float64(h) * ratio))
	return max(tw, 1), max(th, 1)
}

// scale draws src into a w x h canvas. opaque flattens transparency onto
// white, as JPEG has no alpha channel.
func scale(src image.Image, w, h int, opaque bool) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h && !opaque {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if opaque {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	return min(max(v, 1), 100)
}
