package overlay

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/jeanlaroche/PDFMail/model"
)

func operators(p *model.Page) []string {
	var ops []string
	for _, cs := range p.Contents {
		for _, op := range cs.Operations {
			ops = append(ops, op.Operator)
		}
	}
	return ops
}

func TestGenerateDimensions(t *testing.T) {
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if p.Width() != 612 || p.Height() != 792 {
		t.Fatalf("size %gx%g", p.Width(), p.Height())
	}
	if len(p.Contents) != 0 {
		t.Fatal("empty overlay must paint nothing")
	}
}

func TestGenerateInvalidSize(t *testing.T) {
	g := NewGenerator(nil, nil)
	if _, err := g.Generate(0, 792, PageOverlay{}); !errors.Is(err, ErrRender) {
		t.Fatalf("got %v, want ErrRender", err)
	}
	if _, err := g.Generate(612, -1, PageOverlay{}); !errors.Is(err, ErrRender) {
		t.Fatalf("got %v, want ErrRender", err)
	}
}

func TestGenerateTextOperators(t *testing.T) {
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "DRAFT", X: 100, Y: 200, Font: "Helvetica", Size: 24},
	}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"q", "BT", "rg", "Tf", "Tm", "Tj", "ET", "Q"}
	got := operators(p)
	if len(got) != len(want) {
		t.Fatalf("operators %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("operators %v, want %v", got, want)
		}
	}
	if len(p.Resources.Fonts) != 1 {
		t.Fatalf("got %d font resources, want 1", len(p.Resources.Fonts))
	}
	f, ok := p.Resources.Fonts["F1"]
	if !ok || f.BaseFont != "Helvetica" {
		t.Fatal("font resource F1 missing")
	}
}

func TestGenerateTmAnchor(t *testing.T) {
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "hi", X: 50, Y: 60, Font: "Helvetica", Size: 12},
	}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, op := range p.Contents[0].Operations {
		if op.Operator != "Tm" {
			continue
		}
		tx := op.Operands[4].(model.NumberOperand).Value
		ty := op.Operands[5].(model.NumberOperand).Value
		if tx != 50 || ty != 60 {
			t.Fatalf("anchor (%g, %g), want (50, 60)", tx, ty)
		}
		return
	}
	t.Fatal("no Tm operator")
}

func TestGenerateMultilineText(t *testing.T) {
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "line one\nline two\nline three", X: 10, Y: 700, Font: "Helvetica", Size: 10},
	}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var tms, tjs int
	var yPositions []float64
	for _, op := range p.Contents[0].Operations {
		switch op.Operator {
		case "Tm":
			tms++
			yPositions = append(yPositions, op.Operands[5].(model.NumberOperand).Value)
		case "Tj":
			tjs++
		}
	}
	if tms != 3 || tjs != 3 {
		t.Fatalf("got %d Tm / %d Tj, want 3 each", tms, tjs)
	}
	// Default leading is 1.2 em.
	if yPositions[0] != 700 || yPositions[1] != 688 || yPositions[2] != 676 {
		t.Fatalf("line baselines %v", yPositions)
	}
}

func TestGenerateSkipsBlankLines(t *testing.T) {
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "top\n\nbottom", X: 10, Y: 700, Font: "Helvetica", Size: 10},
	}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var ys []float64
	for _, op := range p.Contents[0].Operations {
		if op.Operator == "Tm" {
			ys = append(ys, op.Operands[5].(model.NumberOperand).Value)
		}
	}
	// Blank line emits no Tj but still advances the baseline.
	if len(ys) != 2 || ys[1] != 676 {
		t.Fatalf("baselines %v, want [700 676]", ys)
	}
}

func TestGenerateUnknownFont(t *testing.T) {
	g := NewGenerator(nil, nil)
	_, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "x", X: 0, Y: 0, Font: "NoSuchFont", Size: 12},
	}})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("got %v, want ErrRender", err)
	}
}

func TestGenerateBadSize(t *testing.T) {
	g := NewGenerator(nil, nil)
	_, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "x", Font: "Helvetica", Size: 0},
	}})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("got %v, want ErrRender", err)
	}
}

func TestGenerateOpacity(t *testing.T) {
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
		{Text: "faint", Font: "Helvetica", Size: 12, Opacity: 0.4},
	}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	found := false
	for _, op := range p.Contents[0].Operations {
		if op.Operator == "gs" {
			found = true
		}
	}
	if !found {
		t.Fatal("no gs operator for translucent text")
	}
	gs, ok := p.Resources.ExtGStates["GS1"]
	if !ok || gs.FillAlpha == nil || *gs.FillAlpha != 0.4 {
		t.Fatal("ExtGState GS1 with fill alpha 0.4 missing")
	}
}

func TestGenerateOpaqueSkipsGS(t *testing.T) {
	g := NewGenerator(nil, nil)
	for _, opacity := range []float64{0, 1} {
		p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
			{Text: "solid", Font: "Helvetica", Size: 12, Opacity: opacity},
		}})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(p.Resources.ExtGStates) != 0 {
			t.Fatalf("opacity %g must not create an ExtGState", opacity)
		}
	}
}

func TestGenerateAlignment(t *testing.T) {
	g := NewGenerator(nil, nil)
	anchorX := func(align Align) float64 {
		p, err := g.Generate(612, 792, PageOverlay{Texts: []TextInstruction{
			{Text: "AB", X: 300, Y: 400, Font: "Helvetica", Size: 10, Align: align},
		}})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for _, op := range p.Contents[0].Operations {
			if op.Operator == "Tm" {
				return op.Operands[4].(model.NumberOperand).Value
			}
		}
		t.Fatal("no Tm operator")
		return 0
	}
	// A and B are both 667/1000 em wide in Helvetica.
	width := (667.0 + 667.0) * 10 / 1000
	if got := anchorX(AlignLeft); got != 300 {
		t.Fatalf("left anchor %g, want 300", got)
	}
	if got := anchorX(AlignCenter); got != 300-width/2 {
		t.Fatalf("center anchor %g, want %g", got, 300-width/2)
	}
	if got := anchorX(AlignRight); got != 300-width {
		t.Fatalf("right anchor %g, want %g", got, 300-width)
	}
}

func TestGenerateImage(t *testing.T) {
	img := &model.Image{Width: 2, Height: 2, ColorSpace: "DeviceRGB", BitsPerComponent: 8, Data: make([]byte, 12)}
	g := NewGenerator(nil, nil)
	p, err := g.Generate(612, 792, PageOverlay{Images: []ImageInstruction{
		{Image: img, X: 100, Y: 150, W: 80, H: 40},
	}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{"q", "cm", "Do", "Q"}
	got := operators(p)
	if len(got) != len(want) {
		t.Fatalf("operators %v, want %v", got, want)
	}
	for _, op := range p.Contents[0].Operations {
		if op.Operator != "cm" {
			continue
		}
		vals := make([]float64, 6)
		for i, o := range op.Operands {
			vals[i] = o.(model.NumberOperand).Value
		}
		if vals[0] != 80 || vals[3] != 40 || vals[4] != 100 || vals[5] != 150 {
			t.Fatalf("cm %v", vals)
		}
	}
	if _, ok := p.Resources.XObjects["Im1"]; !ok {
		t.Fatal("image resource Im1 missing")
	}
}

func TestGenerateBadImage(t *testing.T) {
	g := NewGenerator(nil, nil)
	_, err := g.Generate(612, 792, PageOverlay{Images: []ImageInstruction{
		{Image: nil, W: 10, H: 10},
	}})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("got %v, want ErrRender", err)
	}
	img := &model.Image{Width: 1, Height: 1, Data: []byte{0, 0, 0}}
	_, err = g.Generate(612, 792, PageOverlay{Images: []ImageInstruction{
		{Image: img, W: 0, H: 10},
	}})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("got %v, want ErrRender", err)
	}
}

func TestFromImageOpaque(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})

	img := FromImage(src)
	if img.Width != 2 || img.Height != 1 {
		t.Fatalf("size %dx%d", img.Width, img.Height)
	}
	if img.ColorSpace != "DeviceRGB" || img.BitsPerComponent != 8 {
		t.Fatalf("colorspace %s/%d", img.ColorSpace, img.BitsPerComponent)
	}
	want := []byte{255, 0, 0, 0, 0, 255}
	if len(img.Data) != len(want) {
		t.Fatalf("data %v", img.Data)
	}
	for i := range want {
		if img.Data[i] != want[i] {
			t.Fatalf("data %v, want %v", img.Data, want)
		}
	}
	if img.SMask != nil {
		t.Fatal("fully opaque image must not carry a soft mask")
	}
}

func TestFromImageAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	img := FromImage(src)
	if img.SMask == nil {
		t.Fatal("translucent image must carry a soft mask")
	}
	if img.SMask.ColorSpace != "DeviceGray" || img.SMask.Data[0] != 128 {
		t.Fatalf("smask %s %v", img.SMask.ColorSpace, img.SMask.Data)
	}
}
