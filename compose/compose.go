// Package compose layers an overlay page onto a source page. The source
// content is bracketed in q/Q so leaked graphics state cannot affect the
// overlay, and the overlay streams are appended after it so they paint
// on top. Neither input page is modified.
package compose

import (
	"errors"
	"fmt"

	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/model"
)

// ErrDimensionMismatch is returned when overlay and source dimensions
// differ.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Composite merges overlay onto src and returns the composited page.
func Composite(src, ov *model.Page) (*model.Page, error) {
	if src.Width() != ov.Width() || src.Height() != ov.Height() {
		return nil, fmt.Errorf("%w: source %gx%g, overlay %gx%g",
			ErrDimensionMismatch, src.Width(), src.Height(), ov.Width(), ov.Height())
	}

	out := &model.Page{
		Index:        src.Index,
		MediaBox:     src.MediaBox,
		CropBox:      src.CropBox,
		Rotate:       src.Rotate,
		Ref:          src.Ref,
		Dict:         src.Dict,
		RawResources: src.RawResources,
		Resources:    model.NewResources(),
		Dirty:        true,
	}

	rename := buildRenames(src, ov, out)

	out.Contents = append(out.Contents, model.ContentStream{
		Operations: []model.Operation{{Operator: "q"}},
	})
	out.Contents = append(out.Contents, src.Contents...)
	out.Contents = append(out.Contents, model.ContentStream{
		Operations: []model.Operation{{Operator: "Q"}},
	})
	for _, cs := range ov.Contents {
		out.Contents = append(out.Contents, model.ContentStream{
			Operations: renameOps(cs.Operations, rename),
		})
	}
	return out, nil
}

// buildRenames carries the source page's synthetic resources into the
// output unchanged, then copies overlay resources under names that cannot
// collide with either the raw or the synthetic source names, returning the
// old-to-new mapping. Composited sources keep their earlier overlays bound.
func buildRenames(src, ov, out *model.Page) map[string]string {
	rename := make(map[string]string)
	taken := func(category string) map[string]bool {
		names := make(map[string]bool)
		if src.RawResources != nil {
			if sub, ok := src.RawResources.Get(raw.NameObj{Val: category}); ok {
				if d, ok := sub.(*raw.DictObj); ok {
					for k := range d.KV {
						names[k] = true
					}
				}
			}
		}
		return names
	}

	fontTaken := taken("Font")
	gsTaken := taken("ExtGState")
	xoTaken := taken("XObject")
	if src.Resources != nil {
		for name, f := range src.Resources.Fonts {
			fontTaken[name] = true
			out.Resources.Fonts[name] = f
		}
		for name, gs := range src.Resources.ExtGStates {
			gsTaken[name] = true
			out.Resources.ExtGStates[name] = gs
		}
		for name, img := range src.Resources.XObjects {
			xoTaken[name] = true
			out.Resources.XObjects[name] = img
		}
	}
	if ov.Resources == nil {
		return rename
	}

	for name, f := range ov.Resources.Fonts {
		n := uniqueName("F", name, fontTaken)
		rename[name] = n
		out.Resources.Fonts[n] = f
	}
	for name, gs := range ov.Resources.ExtGStates {
		n := uniqueName("GS", name, gsTaken)
		rename[name] = n
		out.Resources.ExtGStates[n] = gs
	}
	for name, img := range ov.Resources.XObjects {
		n := uniqueName("Im", name, xoTaken)
		rename[name] = n
		out.Resources.XObjects[n] = img
	}
	return rename
}

func uniqueName(prefix, name string, taken map[string]bool) string {
	if !taken[name] {
		taken[name] = true
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%dx", prefix, i)
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
}

// renameOps clones the operation list, rewriting name operands of the
// resource-referencing operators to the renamed resources.
func renameOps(ops []model.Operation, rename map[string]string) []model.Operation {
	out := make([]model.Operation, len(ops))
	for i, op := range ops {
		clone := model.Operation{Operator: op.Operator}
		if len(op.Operands) > 0 {
			clone.Operands = append([]model.Operand(nil), op.Operands...)
		}
		switch op.Operator {
		case "Tf", "gs", "Do":
			if len(clone.Operands) > 0 {
				if n, ok := clone.Operands[0].(model.NameOperand); ok {
					if newName, ok := rename[n.Value]; ok {
						clone.Operands[0] = model.NameOperand{Value: newName}
					}
				}
			}
		}
		out[i] = clone
	}
	return out
}
