// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the webp decoder
)

// Bounds is the largest width and height a stored image may have.
type Bounds struct{ Width, Height int }

var kindBounds = map[Kind]Bounds{
	Poster:     {500, 750},
	Backdrop:   {1920, 1080},
	ShowPoster: {800, 600},
}

// maxPixels rejects images whose decoded size would be unreasonable before
// any pixel data is allocated.
const maxPixels = 50_000_000

// jpegQuality is used when a scaled image is re-encoded as JPEG.
const jpegQuality = 85

// BoundsFor returns the bounding box of kind.
func BoundsFor(kind Kind) Bounds {
	if b, ok := kindBounds[kind]; ok {
		return b
	}
	return Bounds{800, 600}
}

// fitSize scales w x h down to fit b, keeping the aspect ratio. Images that
// already fit are returned unchanged.
func fitSize(w, h int, b Bounds) (int, int) {
	if w <= b.Width && h <= b.Height {
		return w, h
	}
	nw, nh := b.Width, h*b.Width/w
	if nh > b.Height {
		nw, nh = w*b.Height/h, b.Height
	}
	return max(nw, 1), max(nh, 1)
}

// fitImage validates data as an image and scales it into b. It returns the
// bytes to store and their extension. Images within b are kept byte for byte.
func fitImage(data []byte, ext string, b Bounds) ([]byte, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("not a decodable image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", errors.New("image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("image is %dx%d, too large to process", cfg.Width, cfg.Height)
	}

	w, h := fitSize(cfg.Width, cfg.Height, b)
	if w == cfg.Width && h == cfg.Height {
		return data, ext, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
		ext = "png"
	case "gif":
		err = gif.Encode(&buf, dst, nil)
		ext = "gif"
	default:
		// jpeg, and webp which has no encoder.
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
		ext = "jpg"
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", ext, err)
	}
	return buf.Bytes(), ext, nil
}
