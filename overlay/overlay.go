// Package overlay generates synthetic pages from placement instructions.
// A generated page has the exact dimensions it was asked for and is
// transparent everywhere no instruction painted.
package overlay

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jeanlaroche/PDFMail/coords"
	"github.com/jeanlaroche/PDFMail/fonts"
	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/observability"
)

// ErrRender marks instructions that cannot be rendered: unknown fonts,
// unencodable text, invalid dimensions.
var ErrRender = errors.New("render error")

// Align controls horizontal placement relative to the anchor point.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// TextInstruction places a run of text on the overlay. X and Y anchor
// the first baseline in page coordinates (origin bottom-left). Text may
// contain newlines; subsequent lines advance by LineHeight times the
// font size (1.2 when zero).
type TextInstruction struct {
	Text       string
	X, Y       float64
	Font       string
	Size       float64
	Color      model.Color
	RotateDeg  float64
	Opacity    float64 // 0 or 1 means opaque
	Align      Align
	LineHeight float64
}

// ImageInstruction places an image with its lower-left corner at (X, Y),
// scaled to W by H points.
type ImageInstruction struct {
	Image   *model.Image
	X, Y    float64
	W, H    float64
	Opacity float64
}

// PageOverlay is the full set of instructions for one page.
type PageOverlay struct {
	Texts  []TextInstruction
	Images []ImageInstruction
}

// Empty reports whether the overlay would paint nothing.
func (o PageOverlay) Empty() bool { return len(o.Texts) == 0 && len(o.Images) == 0 }

// Generator renders overlays into synthetic pages.
type Generator struct {
	Fonts  *fonts.Registry
	Logger observability.Logger
}

func NewGenerator(reg *fonts.Registry, logger observability.Logger) *Generator {
	if reg == nil {
		reg = fonts.NewRegistry()
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Generator{Fonts: reg, Logger: logger}
}

// Generate renders the overlay onto a fresh page of exactly width by
// height points.
func (g *Generator) Generate(width, height float64, ov PageOverlay) (*model.Page, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid page size %gx%g", ErrRender, width, height)
	}
	page := &model.Page{
		MediaBox:  model.Rectangle{URX: width, URY: height},
		CropBox:   model.Rectangle{URX: width, URY: height},
		Resources: model.NewResources(),
	}

	st := &resourceState{page: page}
	var ops []model.Operation
	for _, ti := range ov.Texts {
		textOps, err := g.renderText(st, ti)
		if err != nil {
			return nil, err
		}
		ops = append(ops, textOps...)
	}
	for _, ii := range ov.Images {
		imgOps, err := g.renderImage(st, ii)
		if err != nil {
			return nil, err
		}
		ops = append(ops, imgOps...)
	}
	if len(ops) > 0 {
		page.Contents = append(page.Contents, model.ContentStream{Operations: ops})
	}
	return page, nil
}

// resourceState hands out sequential resource names on the overlay page.
type resourceState struct {
	page       *model.Page
	fontNames  map[string]string // BaseFont -> resource name
	gsCount    int
	imageCount int
}

func (st *resourceState) fontName(f *model.Font) string {
	if st.fontNames == nil {
		st.fontNames = make(map[string]string)
	}
	if name, ok := st.fontNames[f.BaseFont]; ok {
		return name
	}
	name := fmt.Sprintf("F%d", len(st.fontNames)+1)
	st.fontNames[f.BaseFont] = name
	st.page.Resources.Fonts[name] = f
	return name
}

func (st *resourceState) alphaName(alpha float64) string {
	st.gsCount++
	name := fmt.Sprintf("GS%d", st.gsCount)
	a := alpha
	st.page.Resources.ExtGStates[name] = model.ExtGState{FillAlpha: &a}
	return name
}

func (st *resourceState) imageName(img *model.Image) string {
	st.imageCount++
	name := fmt.Sprintf("Im%d", st.imageCount)
	st.page.Resources.XObjects[name] = img
	return name
}

func (g *Generator) renderText(st *resourceState, ti TextInstruction) ([]model.Operation, error) {
	if ti.Text == "" {
		return nil, nil
	}
	if ti.Size <= 0 {
		return nil, fmt.Errorf("%w: font size %g", ErrRender, ti.Size)
	}
	font, err := g.Fonts.Resolve(ti.Font)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	fname := st.fontName(font)

	ops := []model.Operation{{Operator: "q"}}
	if translucent(ti.Opacity) {
		gs := st.alphaName(ti.Opacity)
		ops = append(ops, model.Operation{Operator: "gs", Operands: []model.Operand{
			model.NameOperand{Value: gs},
		}})
	}
	ops = append(ops,
		model.Operation{Operator: "BT"},
		model.Operation{Operator: "rg", Operands: []model.Operand{
			model.NumberOperand{Value: ti.Color.R},
			model.NumberOperand{Value: ti.Color.G},
			model.NumberOperand{Value: ti.Color.B},
		}},
		model.Operation{Operator: "Tf", Operands: []model.Operand{
			model.NameOperand{Value: fname},
			model.NumberOperand{Value: ti.Size},
		}},
	)

	rad := ti.RotateDeg * math.Pi / 180
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	rot := coords.Rotate(rad)
	leading := ti.LineHeight
	if leading <= 0 {
		leading = 1.2
	}

	for i, line := range strings.Split(ti.Text, "\n") {
		if line == "" {
			continue
		}
		encoded, err := g.Fonts.Encode(font, line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
		// Line offset in text space, rotated into page space.
		off := coords.Point{X: alignShift(g.Fonts, font, line, ti), Y: -float64(i) * leading * ti.Size}
		p := rot.Transform(off)
		ops = append(ops,
			model.Operation{Operator: "Tm", Operands: []model.Operand{
				model.NumberOperand{Value: cos},
				model.NumberOperand{Value: sin},
				model.NumberOperand{Value: -sin},
				model.NumberOperand{Value: cos},
				model.NumberOperand{Value: ti.X + p.X},
				model.NumberOperand{Value: ti.Y + p.Y},
			}},
			model.Operation{Operator: "Tj", Operands: []model.Operand{
				model.StringOperand{Value: encoded},
			}},
		)
	}
	ops = append(ops, model.Operation{Operator: "ET"}, model.Operation{Operator: "Q"})
	return ops, nil
}

func (g *Generator) renderImage(st *resourceState, ii ImageInstruction) ([]model.Operation, error) {
	if ii.Image == nil || ii.Image.Width <= 0 || ii.Image.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrRender)
	}
	if ii.W <= 0 || ii.H <= 0 {
		return nil, fmt.Errorf("%w: image placement %gx%g", ErrRender, ii.W, ii.H)
	}
	name := st.imageName(ii.Image)
	ops := []model.Operation{{Operator: "q"}}
	if translucent(ii.Opacity) {
		gs := st.alphaName(ii.Opacity)
		ops = append(ops, model.Operation{Operator: "gs", Operands: []model.Operand{
			model.NameOperand{Value: gs},
		}})
	}
	ops = append(ops,
		model.Operation{Operator: "cm", Operands: []model.Operand{
			model.NumberOperand{Value: ii.W},
			model.NumberOperand{Value: 0},
			model.NumberOperand{Value: 0},
			model.NumberOperand{Value: ii.H},
			model.NumberOperand{Value: ii.X},
			model.NumberOperand{Value: ii.Y},
		}},
		model.Operation{Operator: "Do", Operands: []model.Operand{
			model.NameOperand{Value: name},
		}},
		model.Operation{Operator: "Q"},
	)
	return ops, nil
}

func alignShift(reg *fonts.Registry, font *model.Font, line string, ti TextInstruction) float64 {
	switch ti.Align {
	case AlignCenter:
		return -reg.MeasureString(font, line, ti.Size) / 2
	case AlignRight:
		return -reg.MeasureString(font, line, ti.Size)
	default:
		return 0
	}
}

func translucent(opacity float64) bool { return opacity > 0 && opacity < 1 }
