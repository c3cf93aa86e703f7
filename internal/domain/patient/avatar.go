package patient

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// MaxAvatarSide bounds the stored avatar; larger crops are scaled down.
	MaxAvatarSide = 1024
	// MaxAvatarPixels rejects uploads whose declared size would need an
	// oversized buffer to decode.
	MaxAvatarPixels = 40_000_000
	avatarQuality   = 90
)

var ErrInvalidImage = errors.New("avatar must be a JPEG or PNG image")

// Crop is a rectangle in source image pixels. Right and Bottom are exclusive.
type Crop struct {
	Left   int `json:"left" form:"left" query:"left"`
	Top    int `json:"top" form:"top" query:"top"`
	Right  int `json:"right" form:"right" query:"right"`
	Bottom int `json:"bottom" form:"bottom" query:"bottom"`
}

// Clamp fits the crop inside bounds. An empty or inverted edge pair is
// widened to one pixel.
func (c Crop) Clamp(bounds image.Rectangle) image.Rectangle {
	left, right := clampSpan(c.Left, c.Right, bounds.Min.X, bounds.Max.X)
	top, bottom := clampSpan(c.Top, c.Bottom, bounds.Min.Y, bounds.Max.Y)
	return image.Rect(left, top, right, bottom)
}

func clampSpan(start, end, lo, hi int) (int, int) {
	start = clamp(start, lo, hi-1)
	end = clamp(end, lo, hi)
	if start >= end {
		end = start + 1
	}
	return start, end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ProcessAvatar decodes an uploaded JPEG or PNG, applies the optional crop and
// re-encodes it as JPEG.
func ProcessAvatar(data []byte, crop *Crop) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxAvatarPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, MaxAvatarPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	r := src.Bounds()
	if crop != nil {
		r = crop.Clamp(r)
	}

	w, h := r.Dx(), r.Dy()
	if w > MaxAvatarSide || h > MaxAvatarSide {
		if w >= h {
			w, h = MaxAvatarSide, max(1, h*MaxAvatarSide/w)
		} else {
			w, h = max(1, w*MaxAvatarSide/h), MaxAvatarSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == r.Dx() && h == r.Dy() {
		draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, r, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: avatarQuality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
