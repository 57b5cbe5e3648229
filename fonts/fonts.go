// Package fonts resolves fonts for overlay text. The standard 14 fonts
// are available by name (with common aliases); TrueType fonts must be
// registered explicitly and are embedded as Type0/Identity-H with a
// FontFile2 stream.
package fonts

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/jeanlaroche/PDFMail/model"
)

// ErrUnknownFont marks a font name that is neither a standard 14 font
// nor a registered TrueType font.
var ErrUnknownFont = errors.New("unknown font")

// Registry resolves font names to font resources.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]*model.Font
	faces  map[string]*sfnt.Font // keyed by BaseFont, for encoding and shaping
}

func NewRegistry() *Registry {
	return &Registry{
		custom: make(map[string]*model.Font),
		faces:  make(map[string]*sfnt.Font),
	}
}

// Resolve returns the font resource for a name. Registered TrueType
// fonts shadow standard names.
func (r *Registry) Resolve(name string) (*model.Font, error) {
	r.mu.RLock()
	f, ok := r.custom[normalizeName(name)]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}
	if canonical, ok := canonicalStandardName(name); ok {
		return standardFont(canonical), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFont, name)
}

// RegisterTrueType parses a TrueType/OpenType font and registers it
// under name. The full font is embedded (no subsetting).
func (r *Registry) RegisterTrueType(name string, data []byte) (*model.Font, error) {
	if len(data) == 0 {
		return nil, errors.New("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, errors.New("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(int32(unitsPerEm) << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = ps
	}
	if baseName == "" {
		baseName = "CustomTT"
	}

	widths := glyphWidths(font, buf, unitsPerEm, ppem)
	defaultWidth := widths[0]
	if defaultWidth == 0 {
		defaultWidth = 1000
	}

	metrics, _ := font.Metrics(buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(buf, ppem, xfont.HintingNone)
	descriptor := &model.FontDescriptor{
		FontName:    baseName,
		Flags:       4, // non-symbolic
		ItalicAngle: italicAngle(font),
		Ascent:      scaleFixed(metrics.Ascent, unitsPerEm),
		Descent:     scaleFixed(metrics.Descent, unitsPerEm),
		CapHeight:   scaleFixed(metrics.Ascent, unitsPerEm),
		StemV:       80,
		FontBBox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			scaleFixed(bounds.Min.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			scaleFixed(bounds.Max.Y, unitsPerEm),
		},
		FontFile:     data,
		FontFileType: "FontFile2",
	}

	f := &model.Font{
		Subtype:  "Type0",
		BaseFont: baseName,
		Encoding: "Identity-H",
		Widths:   widths,
		DescendantFont: &model.CIDFont{
			Subtype:         "CIDFontType2",
			BaseFont:        baseName,
			Registry:        "Adobe",
			Ordering:        "Identity",
			Supplement:      0,
			DW:              defaultWidth,
			W:               widths,
			CIDToGIDMapName: "Identity",
			Descriptor:      descriptor,
		},
		Descriptor: descriptor,
	}

	r.mu.Lock()
	r.custom[normalizeName(name)] = f
	r.faces[baseName] = font
	r.mu.Unlock()
	return f, nil
}

// GlyphIndex maps a rune to its glyph (CID under Identity-H) for a
// registered TrueType font.
func (r *Registry) GlyphIndex(f *model.Font, ch rune) (int, bool) {
	r.mu.RLock()
	face, ok := r.faces[f.BaseFont]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}
	buf := &sfnt.Buffer{}
	gid, err := face.GlyphIndex(buf, ch)
	if err != nil || gid == 0 {
		return 0, false
	}
	return int(gid), true
}

func canonicalStandardName(name string) (string, bool) {
	if _, ok := standardWidths[name]; ok {
		return name, true
	}
	if canonical, ok := standardAliases[normalizeName(name)]; ok {
		return canonical, true
	}
	return "", false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func standardFont(canonical string) *model.Font {
	widths := make(map[int]int, len(standardWidths[canonical]))
	first, last := 255, 0
	for r, w := range standardWidths[canonical] {
		code := int(r)
		widths[code] = w
		if code < first {
			first = code
		}
		if code > last {
			last = code
		}
	}
	encoding := "WinAnsiEncoding"
	if canonical == "Symbol" || canonical == "ZapfDingbats" {
		encoding = "" // built-in encoding
	}
	return &model.Font{
		Subtype:   "Type1",
		BaseFont:  canonical,
		Encoding:  encoding,
		Widths:    widths,
		FirstChar: first,
		LastChar:  last,
	}
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[int]int {
	glyphs := font.NumGlyphs()
	widths := make(map[int]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[i] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}
