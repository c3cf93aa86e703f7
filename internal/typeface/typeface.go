// Package typeface resolves the faces used on printed labels. A configured
// TrueType file is preferred; the embedded Go fonts stand in when it is
// missing, and basicfont.Face7x13 is the last resort so text is always drawn.
package typeface

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	builtinOnce    sync.Once
	builtinBold    *opentype.Font
	builtinRegular *opentype.Font
	builtinErr     error
)

func builtins() (*opentype.Font, *opentype.Font, error) {
	builtinOnce.Do(func() {
		builtinBold, builtinErr = opentype.Parse(gobold.TTF)
		if builtinErr != nil {
			return
		}
		builtinRegular, builtinErr = opentype.Parse(goregular.TTF)
	})
	return builtinBold, builtinRegular, builtinErr
}

// Open parses a TrueType/OpenType file from disk.
func Open(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

// Set holds the bold and regular typefaces for one rendering pass. Faces
// produced from it are not safe for concurrent use, so callers build a Set
// per render.
type Set struct {
	bold     *opentype.Font
	regular  *opentype.Font
	warnings []string
}

// Load resolves both typefaces. Empty paths select the embedded Go fonts
// without a warning; a path that fails to load is recorded as a warning.
func Load(boldPath, regularPath string) *Set {
	s := &Set{}
	bold, regular, err := builtins()
	if err != nil {
		s.warn("builtin fonts unavailable, using basic font: %v", err)
	}

	s.bold = s.resolve(boldPath, bold)
	s.regular = s.resolve(regularPath, regular)
	return s
}

func (s *Set) resolve(path string, builtin *opentype.Font) *opentype.Font {
	if path == "" {
		return builtin
	}
	f, err := Open(path)
	if err != nil {
		s.warn("preferred font unavailable: %v", err)
		return builtin
	}
	return f
}

// Face returns a face of the given pixel size. It never fails: when the
// typeface cannot produce a face the basic bitmap font is returned and a
// warning is recorded.
func (s *Set) Face(bold bool, sizePx float64) font.Face {
	f := s.regular
	if bold {
		f = s.bold
	}
	if f == nil {
		return Basic()
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		s.warn("create face (size=%.1f): %v", sizePx, err)
		return Basic()
	}
	return face
}

// Warnings lists every substitution made so far.
func (s *Set) Warnings() []string {
	return append([]string(nil), s.warnings...)
}

func (s *Set) warn(format string, args ...interface{}) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// Basic is the built-in bitmap face of last resort.
func Basic() font.Face {
	return basicfont.Face7x13
}
