// Package qr renders QR code images for short URLs.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Size selects the rendered image dimensions.
type Size string

const (
	Small  Size = "small"
	Medium Size = "medium"
	Large  Size = "large"
)

// pixel dimensions per size, roughly matching a version-1 code with a
// quiet-zone border.
var sizePixels = map[Size]int{
	Small:  150,
	Medium: 290,
	Large:  495,
}

// ParseSize maps a query-string value to a Size, defaulting to Medium for
// empty or unknown input.
func ParseSize(s string) Size {
	switch Size(s) {
	case Small, Medium, Large:
		return Size(s)
	default:
		return Medium
	}
}

// PNG encodes data as a PNG QR image with medium error correction.
func PNG(data string, size Size) ([]byte, error) {
	px, ok := sizePixels[size]
	if !ok {
		px = sizePixels[Medium]
	}

	img, err := qrcode.Encode(data, qrcode.Medium, px)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return img, nil
}
