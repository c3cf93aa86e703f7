package barcode

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRCode renders payload as a square PNG of size pixels for wristbands and
// handheld scanners that read 2D symbols.
func QRCode(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("qr payload is empty")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
