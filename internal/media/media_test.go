package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/storage"
)

type memUploader struct {
	files map[string][]byte
}

func (m *memUploader) Put(_ context.Context, name string, data []byte) (string, error) {
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = data
	return "/blog/" + name, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var nameRe = regexp.MustCompile(`^1700000000000-[0-9a-f]{9}\.png$`)

func newTestService(cfg Config) (*Service, *memUploader) {
	up := &memUploader{}
	s := NewService(cfg, up)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s, up
}

func TestUploadPNG(t *testing.T) {
	s, up := newTestService(Config{})
	res, err := s.Upload(context.Background(), bytes.NewReader(pngBytes(t, 10, 10)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Success || !nameRe.MatchString(res.Filename) {
		t.Errorf("result = %+v", res)
	}
	if res.URL != "/blog/"+res.Filename {
		t.Errorf("url = %q", res.URL)
	}
	if _, ok := up.files[res.Filename]; !ok {
		t.Error("file not stored")
	}
}

func TestUploadDownscales(t *testing.T) {
	s, up := newTestService(Config{MaxWidth: 40})
	res, err := s.Upload(context.Background(), bytes.NewReader(pngBytes(t, 100, 50)))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(up.files[res.Filename]))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Errorf("size = %dx%d, want 40x20", cfg.Width, cfg.Height)
	}
}

func TestUploadRejects(t *testing.T) {
	s, _ := newTestService(Config{MaxBytes: 64})
	cases := map[string][]byte{
		"No file provided":   nil,
		"Unsupported":        []byte("just some text, definitely not an image"),
		"File too large":     bytes.Repeat([]byte{0x89}, 65),
		"Corrupt or unreada": append([]byte("\x89PNG\r\n\x1a\n"), 0, 0, 0),
	}
	for prefix, data := range cases {
		_, err := s.Upload(context.Background(), bytes.NewReader(data))
		if !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("%s: err = %v, want invalid", prefix, err)
			continue
		}
		if !strings.HasPrefix(apperr.Message(err), prefix) {
			t.Errorf("message = %q, want prefix %q", apperr.Message(err), prefix)
		}
	}
}

func TestUploadRejectsOversizedDimensions(t *testing.T) {
	s, up := newTestService(Config{MaxPixels: 100})
	_, err := s.Upload(context.Background(), bytes.NewReader(pngBytes(t, 20, 20)))
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want invalid", err)
	}
	if apperr.Message(err) != "Image dimensions too large: 20x20" {
		t.Errorf("message = %q", apperr.Message(err))
	}
	if len(up.files) != 0 {
		t.Errorf("stored %d files", len(up.files))
	}

	if _, err := s.Upload(context.Background(), bytes.NewReader(pngBytes(t, 10, 10))); err != nil {
		t.Errorf("10x10 upload: %v", err)
	}
}

func TestFSUploader(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	u := NewFSUploader(store, "/uploads/")
	url, err := u.Put(context.Background(), "a.png", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "/uploads/a.png" {
		t.Errorf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.png")); err != nil {
		t.Errorf("file missing: %v", err)
	}
}
