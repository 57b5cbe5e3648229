package mailing

import (
	"fmt"

	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/overlay"
)

// US Letter in points.
const (
	LetterWidth  = 612.0
	LetterHeight = 792.0
)

// Layout positions address blocks on verso pages. Adjustments are in
// points. PerPage selects one address per sheet or two stacked halves
// meant to be cut apart.
type Layout struct {
	PerPage        int // 1 or 2
	XAdjust        float64
	YAdjust        float64
	FontSizeAdjust float64
	FontName       string // defaults to Times-Roman
}

// Mailing couples an address list with its layout.
type Mailing struct {
	Addresses []string
	Layout    Layout
	// Sorted pairs top and bottom halves so cut stacks stay in ZIP
	// order: address i shares a sheet with address i+sheetCount.
	Sorted bool
}

func (l Layout) perPage() int {
	if l.PerPage == 2 {
		return 2
	}
	return 1
}

func (l Layout) fontName() string {
	if l.FontName != "" {
		return l.FontName
	}
	return "Times-Roman"
}

func (l Layout) fontSize() float64 {
	size := 16.0
	if l.perPage() == 2 {
		size = 14.0
	}
	return size + l.FontSizeAdjust
}

// Overlays computes the overlay instruction map for a document of
// pageCount pages. Pages alternate recto/verso; addresses go on the
// verso pages (odd indices). Addresses beyond the available pages are
// dropped.
func (m *Mailing) Overlays(pageCount int, pageW, pageH float64) (map[int]overlay.PageOverlay, error) {
	l := m.Layout
	if l.PerPage != 0 && l.PerPage != 1 && l.PerPage != 2 {
		return nil, fmt.Errorf("addresses per page must be 1 or 2, got %d", l.PerPage)
	}
	overlays := make(map[int]overlay.PageOverlay)
	if l.perPage() == 1 {
		for i, address := range m.Addresses {
			page := 2*i + 1
			if page >= pageCount {
				break
			}
			overlays[page] = overlay.PageOverlay{Texts: []overlay.TextInstruction{
				l.instruction(address, pageW, pageH, 0),
			}}
		}
		return overlays, nil
	}

	sheets := (len(m.Addresses) + 1) / 2
	top, bottom := pairAddresses(m.Addresses, sheets, m.Sorted)
	for i := 0; i < sheets; i++ {
		page := 2*i + 1
		if page >= pageCount {
			break
		}
		var texts []overlay.TextInstruction
		if top[i] != "" {
			texts = append(texts, l.instruction(top[i], pageW, pageH, 0))
		}
		if bottom[i] != "" {
			texts = append(texts, l.instruction(bottom[i], pageW, pageH, pageH/2))
		}
		if len(texts) > 0 {
			overlays[page] = overlay.PageOverlay{Texts: texts}
		}
	}
	return overlays, nil
}

// instruction places one address block. The template y positions are
// measured from the top of the page; the overlay origin is bottom-left,
// so the first baseline sits one font size below the converted anchor.
func (l Layout) instruction(address string, pageW, pageH, yShift float64) overlay.TextInstruction {
	size := l.fontSize()
	x := 0.6*pageW + l.XAdjust
	yFromTop := 0.55 * pageH
	lineHeight := 18.0 / size // 0.25in cells in the single template
	if l.perPage() == 2 {
		yFromTop = 0.3 * pageH
		lineHeight = 14.4 / size
	}
	yFromTop += l.YAdjust + yShift
	return overlay.TextInstruction{
		Text:       address,
		X:          x,
		Y:          pageH - yFromTop - size,
		Font:       l.fontName(),
		Size:       size,
		Color:      model.Black,
		LineHeight: lineHeight,
	}
}

// pairAddresses splits the list into top and bottom halves per sheet.
func pairAddresses(addresses []string, sheets int, sorted bool) (top, bottom []string) {
	padded := append([]string{}, addresses...)
	if len(padded)%2 != 0 {
		padded = append(padded, "")
	}
	top = make([]string, sheets)
	bottom = make([]string, sheets)
	for i := 0; i < sheets; i++ {
		if sorted {
			top[i] = padded[i]
			bottom[i] = padded[i+sheets]
		} else {
			top[i] = padded[2*i]
			bottom[i] = padded[2*i+1]
		}
	}
	return top, bottom
}
