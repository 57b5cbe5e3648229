package fonts

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/jeanlaroche/PDFMail/model"
)

// Encode converts text to the byte encoding the font expects in a Tj
// operand: WinAnsi single bytes for standard fonts, big-endian 2-byte
// CIDs for Type0/Identity-H fonts.
func (r *Registry) Encode(f *model.Font, text string) ([]byte, error) {
	if f.Subtype == "Type0" {
		out := make([]byte, 0, len(text)*2)
		for _, ch := range text {
			gid, ok := r.GlyphIndex(f, ch)
			if !ok {
				return nil, fmt.Errorf("font %s has no glyph for %q", f.BaseFont, ch)
			}
			out = append(out, byte(gid>>8), byte(gid))
		}
		return out, nil
	}
	enc := charmap.Windows1252.NewEncoder()
	out, err := enc.Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("font %s cannot encode %q: %w", f.BaseFont, text, err)
	}
	return out, nil
}

// MeasureString returns the rendered width of text in points at the
// given size. TrueType fonts are measured by shaping; standard fonts by
// their width tables; anything else by a half-em approximation.
func (r *Registry) MeasureString(f *model.Font, text string, size float64) float64 {
	if f == nil || text == "" {
		return 0
	}
	if f.Subtype == "Type0" && f.Descriptor != nil && len(f.Descriptor.FontFile) > 0 {
		if glyphs, err := ShapeText(text, f); err == nil && len(glyphs) > 0 {
			total := 0.0
			for _, g := range glyphs {
				total += g.XAdvance
			}
			return total * size / 1000.0
		}
	}
	if len(f.Widths) > 0 {
		total := 0
		known := true
		for _, ch := range text {
			w, ok := f.Widths[int(ch)]
			if !ok {
				known = false
				break
			}
			total += w
		}
		if known {
			return float64(total) * size / 1000.0
		}
	}
	return float64(len([]rune(text))) * size * 0.5
}
