// Package media accepts image uploads, downscales oversized photos and
// hands the result to an Uploader.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/starford/furrow/internal/apperr"
)

const (
	// DefaultMaxBytes is the upload size limit when none is configured.
	DefaultMaxBytes = 5 << 20
	// DefaultMaxPixels bounds width*height so a small compressed file
	// cannot decode into a huge bitmap.
	DefaultMaxPixels = 40_000_000
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var typeExt = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Uploader stores a finished file and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, filename string, data []byte) (string, error)
}

// Config limits uploads. MaxWidth zero disables downscaling.
type Config struct {
	MaxBytes  int64
	MaxWidth  int
	MaxPixels int
}

// Result is returned to the uploader's client.
type Result struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Service validates and stores images.
type Service struct {
	cfg Config
	up  Uploader
	now func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config, up Uploader) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Service{cfg: cfg, up: up, now: time.Now}
}

// MaxBytes returns the configured size limit.
func (s *Service) MaxBytes() int64 { return s.cfg.MaxBytes }

// Upload reads an image from r, checks its sniffed type and size, downscales
// JPEG and PNG images wider than MaxWidth and stores the result.
func (s *Service) Upload(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, apperr.Invalid("No file provided")
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, apperr.Invalid(fmt.Sprintf("File too large. Maximum size: %s", humanSize(s.cfg.MaxBytes)))
	}

	ct := http.DetectContentType(data)
	ext, ok := typeExt[ct]
	if !ok {
		return nil, apperr.Invalid("Unsupported file type. Allowed types: " + strings.Join(allowedTypes, ", "))
	}
	dim, err := decodeConfig(ct, data)
	if err != nil {
		return nil, apperr.Invalid("Corrupt or unreadable image")
	}
	if int64(dim.Width)*int64(dim.Height) > int64(s.cfg.MaxPixels) {
		return nil, apperr.Invalid(fmt.Sprintf("Image dimensions too large: %dx%d", dim.Width, dim.Height))
	}

	if s.cfg.MaxWidth > 0 && (ct == "image/jpeg" || ct == "image/png") {
		resized, changed, err := downscale(ct, data, s.cfg.MaxWidth)
		if err != nil {
			return nil, apperr.Invalid("Corrupt or unreadable image")
		}
		if changed {
			slog.Info("media: downscaled upload", "from_bytes", len(data), "to_bytes", len(resized))
			data = resized
		}
	}

	name := s.filename(ext)
	url, err := s.up.Put(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, URL: url, Filename: name}, nil
}

// filename returns <unix millis>-<9 random chars>.<ext>.
func (s *Service) filename(ext string) string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), rnd, ext)
}

// decodeConfig reads the image header without decoding pixels.
func decodeConfig(ct string, data []byte) (image.Config, error) {
	r := bytes.NewReader(data)
	switch ct {
	case "image/jpeg":
		return jpeg.DecodeConfig(r)
	case "image/png":
		return png.DecodeConfig(r)
	case "image/gif":
		return gif.DecodeConfig(r)
	case "image/webp":
		return webp.DecodeConfig(r)
	}
	return image.Config{}, fmt.Errorf("media: unsupported type %s", ct)
}

// downscale shrinks the image to maxWidth keeping its aspect ratio.
// changed is false when the image is already narrow enough.
func downscale(ct string, data []byte, maxWidth int) ([]byte, bool, error) {
	var (
		src image.Image
		err error
	)
	if ct == "image/jpeg" {
		src, err = jpeg.Decode(bytes.NewReader(data))
	} else {
		src, err = png.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, false, err
	}
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return data, false, nil
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if ct == "image/jpeg" {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func humanSize(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
