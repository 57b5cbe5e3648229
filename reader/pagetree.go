package reader

import (
	"errors"
	"fmt"

	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/model"
)

// inherited carries the page attributes that flow down the page tree
// (PDF 7.7.3.4).
type inherited struct {
	mediaBox  *model.Rectangle
	cropBox   *model.Rectangle
	rotate    *int
	resources *raw.DictObj
}

func walkPageTree(doc *model.Document) error {
	rootObj, ok := doc.Trailer.Get(raw.NameObj{Val: "Root"})
	if !ok {
		return errors.New("trailer has no Root")
	}
	catalog, ok := doc.Resolve(rootObj).(*raw.DictObj)
	if !ok {
		return errors.New("catalog is not a dictionary")
	}
	pagesObj, ok := catalog.Get(raw.NameObj{Val: "Pages"})
	if !ok {
		return errors.New("catalog has no Pages")
	}
	pagesRef, _ := pagesObj.(raw.RefObj)
	pagesDict, ok := doc.Resolve(pagesObj).(*raw.DictObj)
	if !ok {
		return errors.New("page tree root is not a dictionary")
	}
	seen := make(map[raw.ObjectRef]bool)
	if err := walkNode(doc, pagesDict, pagesRef.R, inherited{}, seen); err != nil {
		return err
	}
	if len(doc.Pages) == 0 {
		return errors.New("document has no pages")
	}
	return nil
}

func walkNode(doc *model.Document, node *raw.DictObj, ref raw.ObjectRef, inh inherited, seen map[raw.ObjectRef]bool) error {
	if ref != (raw.ObjectRef{}) {
		if seen[ref] {
			return errors.New("page tree loop")
		}
		seen[ref] = true
	}

	if mb, ok := rectValue(doc, node, "MediaBox"); ok {
		inh.mediaBox = &mb
	}
	if cb, ok := rectValue(doc, node, "CropBox"); ok {
		inh.cropBox = &cb
	}
	if rot, ok := intValue(doc, node, "Rotate"); ok {
		r := normalizeRotation(rot)
		inh.rotate = &r
	}
	if res, ok := node.Get(raw.NameObj{Val: "Resources"}); ok {
		if d, ok := doc.Resolve(res).(*raw.DictObj); ok {
			inh.resources = d
		}
	}

	nodeType := ""
	if t, ok := node.Get(raw.NameObj{Val: "Type"}); ok {
		if n, ok := t.(raw.NameObj); ok {
			nodeType = n.Val
		}
	}

	if nodeType == "Page" {
		return appendPage(doc, node, ref, inh)
	}

	kidsObj, ok := node.Get(raw.NameObj{Val: "Kids"})
	if !ok {
		if nodeType == "Pages" {
			return nil // empty intermediate node
		}
		// Untyped leaf; some producers omit /Type.
		return appendPage(doc, node, ref, inh)
	}
	kids, ok := doc.Resolve(kidsObj).(*raw.ArrayObj)
	if !ok {
		return errors.New("Kids is not an array")
	}
	for _, kid := range kids.Items {
		kidRef, _ := kid.(raw.RefObj)
		kidDict, ok := doc.Resolve(kid).(*raw.DictObj)
		if !ok {
			return errors.New("page tree kid is not a dictionary")
		}
		if err := walkNode(doc, kidDict, kidRef.R, inh, seen); err != nil {
			return err
		}
	}
	return nil
}

func appendPage(doc *model.Document, dict *raw.DictObj, ref raw.ObjectRef, inh inherited) error {
	page := &model.Page{
		Index: len(doc.Pages),
		Ref:   ref,
		Dict:  dict,
	}
	if inh.mediaBox == nil {
		return fmt.Errorf("page %d has no MediaBox", page.Index)
	}
	page.MediaBox = *inh.mediaBox
	if inh.cropBox != nil {
		page.CropBox = *inh.cropBox
	} else {
		page.CropBox = page.MediaBox
	}
	if inh.rotate != nil {
		page.Rotate = *inh.rotate
	}
	page.RawResources = inh.resources

	if err := collectContents(doc, page); err != nil {
		return err
	}
	doc.Pages = append(doc.Pages, page)
	return nil
}

// collectContents resolves the /Contents entry, which may be a single
// stream reference or an array of them.
func collectContents(doc *model.Document, page *model.Page) error {
	contObj, ok := page.Dict.Get(raw.NameObj{Val: "Contents"})
	if !ok {
		return nil // blank page
	}
	appendStream := func(obj raw.Object) error {
		ref, _ := obj.(raw.RefObj)
		stream, ok := doc.Resolve(obj).(*raw.StreamObj)
		if !ok {
			return fmt.Errorf("page %d content is not a stream", page.Index)
		}
		page.Contents = append(page.Contents, model.ContentStream{Ref: ref.R, Raw: stream})
		return nil
	}
	switch v := doc.Resolve(contObj).(type) {
	case *raw.StreamObj:
		return appendStream(contObj)
	case *raw.ArrayObj:
		for _, item := range v.Items {
			if err := appendStream(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("page %d has invalid Contents", page.Index)
	}
}

func rectValue(doc *model.Document, dict *raw.DictObj, key string) (model.Rectangle, bool) {
	obj, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return model.Rectangle{}, false
	}
	arr, ok := doc.Resolve(obj).(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		return model.Rectangle{}, false
	}
	var vals [4]float64
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		num, ok := doc.Resolve(item).(raw.NumberObj)
		if !ok {
			return model.Rectangle{}, false
		}
		vals[i] = num.Float()
	}
	// Normalize so LL is really lower-left.
	r := model.Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r, true
}

func intValue(doc *model.Document, dict *raw.DictObj, key string) (int, bool) {
	obj, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return 0, false
	}
	num, ok := doc.Resolve(obj).(raw.NumberObj)
	if !ok || !num.IsInteger() {
		return 0, false
	}
	return int(num.Int()), true
}

func normalizeRotation(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}
