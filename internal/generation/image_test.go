package generation

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeTestJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func TestResizeImageDownscales(t *testing.T) {
	data := encodeTestJPEG(2000, 1000)

	resized, err := ResizeImage(data, 1024)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
	if img.Bounds().Dx() != 1024 || img.Bounds().Dy() != 512 {
		t.Errorf("expected 1024x512, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestResizeImageSmallStaysPut(t *testing.T) {
	data := encodeTestJPEG(100, 80)

	resized, err := ResizeImage(data, 1024)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Errorf("small image must keep its dimensions, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestResizeImageInvalidData(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 1024); err == nil {
		t.Error("expected error for invalid image data")
	}
}
