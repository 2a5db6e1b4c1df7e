package analyzer

import (
	"image"
	"image/color"
	"testing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			b := uint8(128)
			img.SetNRGBA(x, y, color.NRGBA{r, g, b, 255})
		}
	}

	return img
}

func createGrayImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	return img
}

func TestNew(t *testing.T) {
	analyzer := New()
	if analyzer == nil {
		t.Fatal("New() returned nil")
	}

	if analyzer.config.ChromaTolerance != 0.02 {
		t.Errorf("Expected chroma tolerance 0.02, got %f", analyzer.config.ChromaTolerance)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := Config{
		ChromaTolerance: 0.1,
		MinImageSize:    200,
	}

	analyzer := NewWithConfig(cfg)
	if analyzer.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", analyzer.config.MinImageSize)
	}
}

func TestGetImageInfo(t *testing.T) {
	analyzer := New()
	img := createTestImage(400, 300)

	info := analyzer.GetImageInfo(img)

	if info.Width != 400 {
		t.Errorf("Expected width 400, got %d", info.Width)
	}

	if info.Height != 300 {
		t.Errorf("Expected height 300, got %d", info.Height)
	}

	expectedRatio := float64(400) / float64(300)
	if info.AspectRatio != expectedRatio {
		t.Errorf("Expected aspect ratio %f, got %f", expectedRatio, info.AspectRatio)
	}

	if info.Area != 120000 {
		t.Errorf("Expected area 120000, got %d", info.Area)
	}

	if info.HasAlpha {
		t.Error("Opaque image reported alpha")
	}

	if info.Mode() != ModeColor {
		t.Errorf("Expected mode color, got %s", info.Mode())
	}
}

func TestModes(t *testing.T) {
	analyzer := New()

	tests := []struct {
		name string
		img  image.Image
		want Mode
	}{
		{"gray", createGrayImage(64, 64), ModeGray},
		{"color", createTestImage(64, 64), ModeColor},
		{"alpha", func() image.Image {
			img := createTestImage(64, 64)
			img.SetNRGBA(10, 10, color.NRGBA{1, 2, 3, 100})
			return img
		}(), ModeAlpha},
		{"gray rgb", func() image.Image {
			img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
			for i := 0; i < len(img.Pix); i += 4 {
				v := uint8(i)
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
			}
			return img
		}(), ModeGray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := analyzer.Mode(tt.img); got != tt.want {
				t.Errorf("Mode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSampling(t *testing.T) {
	analyzer := NewWithConfig(Config{ChromaTolerance: 0.02, MaxSamples: 100})
	img := createTestImage(500, 500)

	info := analyzer.GetImageInfo(img)
	if info.Mode() != ModeColor {
		t.Errorf("Expected color from sampled pixels, got %s", info.Mode())
	}
}

func TestEmptyImage(t *testing.T) {
	info := New().GetImageInfo(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	if info.Area != 0 || info.AspectRatio != 0 {
		t.Errorf("Expected zero info, got %+v", info)
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := NewWithConfig(Config{MinImageSize: 100})

	if err := analyzer.ValidateImage(createTestImage(200, 200)); err != nil {
		t.Errorf("Valid image failed validation: %v", err)
	}

	if err := analyzer.ValidateImage(createTestImage(50, 50)); err == nil {
		t.Error("Small image passed validation")
	}
}
