// Package printout packages a composed label for download and printing: a
// DPI-tagged PNG, a self-printing HTML page sized to the label stock, and a
// borderless PDF.
package printout

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"math"
	"strings"
	"unicode"
)

const (
	LabelWidthMM  = 100.0
	LabelHeightMM = 43.0

	// IHDR is always the first chunk: 4 length + 4 type + 13 data + 4 crc.
	pngSignatureLen = 8
	ihdrChunkLen    = 25
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// EncodePNG losslessly encodes img and tags it with a pHYs chunk so print
// dialogs size it at dpi.
func EncodePNG(img image.Image, dpi int) ([]byte, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("invalid dpi %d", dpi)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return withPhys(buf.Bytes(), dpi)
}

func withPhys(data []byte, dpi int) ([]byte, error) {
	head := pngSignatureLen + ihdrChunkLen
	if len(data) < head || !bytes.Equal(data[:pngSignatureLen], pngSignature) {
		return nil, errors.New("not a png stream")
	}

	ppm := uint32(math.Round(float64(dpi) / 0.0254))
	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	chunk = append(chunk, "pHYs"...)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1) // unit: metre
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:head]...)
	out = append(out, chunk...)
	out = append(out, data[head:]...)
	return out, nil
}

// DPI reads the resolution from a PNG's pHYs chunk. ok is false when the
// chunk is absent or not in metres.
func DPI(data []byte) (dpi int, ok bool) {
	if len(data) < pngSignatureLen || !bytes.Equal(data[:pngSignatureLen], pngSignature) {
		return 0, false
	}
	for p := pngSignatureLen; p+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[p:]))
		typ := string(data[p+4 : p+8])
		if typ == "IDAT" || p+12+n > len(data) {
			return 0, false
		}
		if typ == "pHYs" && n == 9 {
			body := data[p+8 : p+8+n]
			if body[8] != 1 {
				return 0, false
			}
			ppm := binary.BigEndian.Uint32(body)
			return int(math.Round(float64(ppm) * 0.0254)), true
		}
		p += 12 + n
	}
	return 0, false
}

// FileName is the download name for a label.
func FileName(phn string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, phn)
	return "barcode_" + safe + ".png"
}

// DataURI embeds PNG bytes for use in an img src.
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
