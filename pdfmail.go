// Package pdfmail stamps text and images onto the pages of existing
// PDF files. The root package ties the pipeline together: parse the
// source, generate overlay pages, composite them onto their targets
// and serialize the result.
//
// Typical use:
//
//	doc, err := pdfmail.Open(ctx, "letter.pdf")
//	if err != nil { ... }
//	stamped, err := pdfmail.StampText(ctx, doc, map[int][]overlay.TextInstruction{
//		0: {{Text: "DRAFT", X: 200, Y: 400, Font: "Helvetica", Size: 48}},
//	})
//	if err != nil { ... }
//	err = pdfmail.WriteFile(ctx, stamped, "letter-draft.pdf")
package pdfmail

import (
	"context"

	"github.com/jeanlaroche/PDFMail/assemble"
	"github.com/jeanlaroche/PDFMail/fonts"
	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/observability"
	"github.com/jeanlaroche/PDFMail/overlay"
	"github.com/jeanlaroche/PDFMail/reader"
	"github.com/jeanlaroche/PDFMail/writer"
)

// Pipeline carries the configured pieces of the stamping pipeline.
// The zero value is not usable; construct one with New.
type Pipeline struct {
	Fonts  *fonts.Registry
	Logger observability.Logger
	Writer writer.Config

	parser    *reader.Parser
	assembler *assemble.Assembler
}

// Option adjusts a Pipeline at construction.
type Option func(*Pipeline)

// WithFonts supplies a font registry, typically carrying registered
// TrueType fonts.
func WithFonts(reg *fonts.Registry) Option { return func(p *Pipeline) { p.Fonts = reg } }

// WithLogger routes pipeline logging to the given logger.
func WithLogger(l observability.Logger) Option { return func(p *Pipeline) { p.Logger = l } }

// WithWriterConfig sets serialization options for output files.
func WithWriterConfig(cfg writer.Config) Option { return func(p *Pipeline) { p.Writer = cfg } }

// New builds a pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		Logger: observability.NopLogger{},
		Writer: writer.Config{Compression: 6},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Fonts == nil {
		p.Fonts = fonts.NewRegistry()
	}
	p.parser = reader.NewParser(reader.Config{Logger: p.Logger})
	gen := overlay.NewGenerator(p.Fonts, p.Logger)
	p.assembler = assemble.New(gen, p.Logger)
	return p
}

// Open parses the PDF at path.
func (p *Pipeline) Open(ctx context.Context, path string) (*model.Document, error) {
	return p.parser.Open(ctx, path)
}

// Stamp applies the overlays and returns the stamped document. The
// input document is unchanged.
func (p *Pipeline) Stamp(ctx context.Context, doc *model.Document, overlays map[int]overlay.PageOverlay) (*model.Document, error) {
	return p.assembler.Assemble(ctx, doc, overlays)
}

// StampText applies text-only overlays.
func (p *Pipeline) StampText(ctx context.Context, doc *model.Document, texts map[int][]overlay.TextInstruction) (*model.Document, error) {
	return p.assembler.StampText(ctx, doc, texts)
}

// WriteFile serializes doc to path, atomically.
func (p *Pipeline) WriteFile(ctx context.Context, doc *model.Document, path string) error {
	return p.assembler.WriteFile(ctx, doc, path, p.Writer)
}

// StampFile runs the whole pipeline: parse inPath, stamp, write
// outPath. On any failure outPath is left as it was.
func (p *Pipeline) StampFile(ctx context.Context, inPath, outPath string, overlays map[int]overlay.PageOverlay) error {
	doc, err := p.Open(ctx, inPath)
	if err != nil {
		return err
	}
	stamped, err := p.Stamp(ctx, doc, overlays)
	if err != nil {
		return err
	}
	return p.WriteFile(ctx, stamped, outPath)
}

// Package-level convenience entry points on a default pipeline.

// Open parses the PDF at path with default settings.
func Open(ctx context.Context, path string) (*model.Document, error) {
	return New().Open(ctx, path)
}

// StampText stamps text instructions onto doc with default settings.
func StampText(ctx context.Context, doc *model.Document, texts map[int][]overlay.TextInstruction) (*model.Document, error) {
	return New().StampText(ctx, doc, texts)
}

// WriteFile serializes doc to path with default settings.
func WriteFile(ctx context.Context, doc *model.Document, path string) error {
	return New().WriteFile(ctx, doc, path)
}

// StampFile parses inPath, applies overlays and writes outPath.
func StampFile(ctx context.Context, inPath, outPath string, overlays map[int]overlay.PageOverlay) error {
	return New().StampFile(ctx, inPath, outPath, overlays)
}
