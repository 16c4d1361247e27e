package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int, alpha uint8) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{0, 0, 255, alpha})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestProcessJPEG(t *testing.T) {
	photo, err := Process(bytes.NewReader(createTestJPEG(100, 100)))
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if photo.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", photo.MIME)
	}
	if len(photo.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestProcessPNGBecomesJPEG(t *testing.T) {
	photo, err := Process(bytes.NewReader(createTestPNG(100, 100, 255)))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if photo.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", photo.MIME)
	}
}

func TestProcessTransparentPNGOnWhite(t *testing.T) {
	photo, err := Process(bytes.NewReader(createTestPNG(10, 10, 0)))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(photo.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	if r < 0xf000 || g < 0xf000 || b < 0xf000 {
		t.Errorf("expected transparent pixels to become white, got %x %x %x", r, g, b)
	}
}

func TestProcessDownscale(t *testing.T) {
	photo, err := Process(bytes.NewReader(createTestJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}
	w, h := decodeSize(t, photo.Data)
	if w != MaxDimension || h != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, w, h)
	}
	if photo.Width != w || photo.Height != h {
		t.Errorf("reported size %dx%d differs from encoded %dx%d", photo.Width, photo.Height, w, h)
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	photo, err := Process(bytes.NewReader(createTestJPEG(50, 50)))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}
	if w, h := decodeSize(t, photo.Data); w != 50 || h != 50 {
		t.Errorf("small image should not be resized: got %dx%d", w, h)
	}
}

func TestThumbnail(t *testing.T) {
	photo, err := Thumbnail(createTestJPEG(800, 400), 0)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if w, h := decodeSize(t, photo.Data); w != ThumbnailDimension || h != ThumbnailDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", ThumbnailDimension, ThumbnailDimension/2, w, h)
	}
}

func TestProcessRejected(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"text", []byte("not an image"), ErrUnsupportedFormat},
		{"gif", []byte("GIF89a..."), ErrUnsupportedFormat},
		{"oversized", append([]byte("\xff\xd8\xff"), make([]byte, MaxUploadBytes)...), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Process(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
