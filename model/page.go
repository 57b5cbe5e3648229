package model

import "github.com/jeanlaroche/PDFMail/ir/raw"

// Page models a single PDF page.
//
// Pages read from a source document carry Ref, Dict and RawResources and
// reference their content by raw stream. Synthetic overlay pages carry
// Resources and operation-based content only. Composited pages have Dirty
// set and mix both.
type Page struct {
	Index    int
	MediaBox Rectangle
	CropBox  Rectangle
	Rotate   int // degrees: 0/90/180/270

	// Ref and Dict identify the original page object for pass-through.
	Ref  raw.ObjectRef
	Dict *raw.DictObj

	// RawResources is the resolved source resources dictionary.
	RawResources *raw.DictObj

	// Resources holds synthetic resources for overlay content.
	Resources *Resources

	Contents []ContentStream
	Dirty    bool
}

// Width returns the page width in points.
func (p *Page) Width() float64 { return p.MediaBox.Width() }

// Height returns the page height in points.
func (p *Page) Height() float64 { return p.MediaBox.Height() }

// ContentStream is one element of a page's content array. Streams read
// from a source document carry Ref and Raw; synthetic streams carry
// Operations.
type ContentStream struct {
	Ref        raw.ObjectRef
	Raw        *raw.StreamObj
	Operations []Operation
}

// Synthetic reports whether the stream was generated rather than read.
func (cs *ContentStream) Synthetic() bool { return cs.Raw == nil && cs.Ref == (raw.ObjectRef{}) }

// Operation represents a PDF content operator and its operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is a type-safe operand value.
type Operand interface {
	operand()
	Type() string
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand()     {}
func (NumberOperand) Type() string { return "number" }

type NameOperand struct{ Value string }

func (NameOperand) operand()     {}
func (NameOperand) Type() string { return "name" }

type StringOperand struct{ Value []byte }

func (StringOperand) operand()     {}
func (StringOperand) Type() string { return "string" }

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) operand()     {}
func (ArrayOperand) Type() string { return "array" }

// Rectangle represents a PDF rectangle.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Resources holds synthetic per-page resources.
type Resources struct {
	Fonts      map[string]*Font
	ExtGStates map[string]ExtGState
	XObjects   map[string]*Image
}

// NewResources returns an empty resource set.
func NewResources() *Resources {
	return &Resources{
		Fonts:      make(map[string]*Font),
		ExtGStates: make(map[string]ExtGState),
		XObjects:   make(map[string]*Image),
	}
}

// Font represents a font resource.
type Font struct {
	Subtype        string // Type1, TrueType, Type0
	BaseFont       string
	Encoding       string
	Widths         map[int]int // character code -> width in 1/1000 em
	FirstChar      int
	LastChar       int
	DescendantFont *CIDFont
	Descriptor     *FontDescriptor
}

// CIDFont describes a descendant font for Type0 fonts.
type CIDFont struct {
	Subtype         string // CIDFontType2
	BaseFont        string
	Registry        string
	Ordering        string
	Supplement      int
	DW              int
	W               map[int]int // CID -> width
	CIDToGIDMapName string      // typically "Identity"
	Descriptor      *FontDescriptor
}

// FontDescriptor carries metrics and font file embedding details.
type FontDescriptor struct {
	FontName     string
	Flags        int
	ItalicAngle  float64
	Ascent       float64
	Descent      float64
	CapHeight    float64
	StemV        int
	FontBBox     [4]float64
	FontFile     []byte
	FontFileType string // FontFile2 for TrueType
}

// ExtGState captures the graphics state parameters overlays use.
type ExtGState struct {
	FillAlpha   *float64
	StrokeAlpha *float64
	BlendMode   string
}

// Image is a raster image XObject.
type Image struct {
	Width            int
	Height           int
	ColorSpace       string // DeviceRGB or DeviceGray
	BitsPerComponent int
	Data             []byte
	SMask            *Image // alpha channel
}

// Color is an RGB fill color; components are in [0,1].
type Color struct {
	R, G, B float64
}

// Black is the default stamp color.
var Black = Color{}
