package model

import "github.com/jeanlaroche/PDFMail/ir/raw"

// Document represents a parsed PDF with its ordered page sequence.
type Document struct {
	Pages   []*Page
	Info    DocumentInfo
	Version string // e.g. "1.7"

	// Objects is the raw object graph the document was parsed from,
	// kept so pass-through pages survive a rewrite untouched.
	Objects map[raw.ObjectRef]raw.Object
	Trailer raw.Dictionary
}

// DocumentInfo models /Info dictionary values.
type DocumentInfo struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
	Keywords []string
}

// PageCount returns the total number of pages.
func (d *Document) PageCount() int { return len(d.Pages) }

// Page returns the page at a zero-based index, or nil when out of range.
func (d *Document) Page(index int) *Page {
	if index < 0 || index >= len(d.Pages) {
		return nil
	}
	return d.Pages[index]
}

// Object resolves an indirect reference against the raw graph.
func (d *Document) Object(ref raw.ObjectRef) (raw.Object, bool) {
	o, ok := d.Objects[ref]
	return o, ok
}

// Resolve follows reference chains until a direct object is reached.
func (d *Document) Resolve(obj raw.Object) raw.Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.R]
		if !ok {
			return raw.NullObj{}
		}
		obj = next
	}
	return raw.NullObj{}
}

// MaxObjectNum returns the highest object number present in the graph.
func (d *Document) MaxObjectNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}
