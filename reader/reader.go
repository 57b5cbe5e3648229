// Package reader parses existing PDF files into the pipeline's document
// model. It handles classic cross-reference tables, attribute inheritance
// in the page tree and filtered content streams. Encrypted documents and
// cross-reference streams are rejected.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeanlaroche/PDFMail/filters"
	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/observability"
	"github.com/jeanlaroche/PDFMail/xref"
)

// ErrUnreadable marks documents that cannot be parsed: missing files,
// malformed structure, encrypted input, unsupported xref streams.
var ErrUnreadable = errors.New("unreadable document")

// Limits bounds resource usage while parsing untrusted input.
type Limits struct {
	MaxStringLength     int64
	MaxStreamLength     int64
	MaxDecompressedSize int64
}

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxStringLength:     16 << 20,
		MaxStreamLength:     256 << 20,
		MaxDecompressedSize: 512 << 20,
	}
}

type Config struct {
	Limits Limits
	Logger observability.Logger
	Tracer observability.Tracer
}

// Parser reads PDFs into model documents.
type Parser struct {
	cfg Config
}

func NewParser(cfg Config) *Parser {
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	return &Parser{cfg: cfg}
}

// Open parses the PDF at path with default configuration.
func Open(ctx context.Context, path string) (*model.Document, error) {
	return NewParser(Config{}).Open(ctx, path)
}

// Open parses the PDF file at path.
func (p *Parser) Open(ctx context.Context, path string) (*model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()
	doc, err := p.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a complete document from r.
func (p *Parser) Parse(ctx context.Context, r io.ReaderAt) (*model.Document, error) {
	ctx, span := p.cfg.Tracer.StartSpan(ctx, "reader.Parse")
	defer span.Finish()

	version := detectHeaderVersion(r)
	if version == "" {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrUnreadable)
	}

	resolver := xref.NewResolver(xref.ResolverConfig{})
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: resolve xref: %v", ErrUnreadable, err)
	}
	trailer := table.Trailer()
	if trailer == nil {
		return nil, fmt.Errorf("%w: trailer missing", ErrUnreadable)
	}
	if _, ok := trailer.Get(raw.NameObj{Val: "Encrypt"}); ok {
		return nil, fmt.Errorf("%w: document is encrypted", ErrUnreadable)
	}

	loader := newObjectLoader(r, table, p.cfg.Limits)
	objects := make(map[raw.ObjectRef]raw.Object)
	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free head entry
		}
		_, gen, found := table.Lookup(objNum)
		if !found {
			continue
		}
		ref := raw.ObjectRef{Num: objNum, Gen: gen}
		obj, err := loader.Load(ref)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("%w: load object %d: %v", ErrUnreadable, objNum, err)
		}
		objects[ref] = obj
	}

	doc := &model.Document{
		Objects: objects,
		Trailer: trailer,
		Version: version,
	}
	populateInfo(doc)

	if err := walkPageTree(doc); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	p.cfg.Logger.Debug("parsed document",
		observability.Int(observability.MetricPageCount, len(doc.Pages)),
		observability.Int(observability.MetricObjectCount, len(doc.Objects)),
		observability.String("version", version))
	return doc, nil
}

// PageContent returns the decoded content bytes of the page at index,
// concatenating the page's content streams in order.
func (p *Parser) PageContent(ctx context.Context, doc *model.Document, index int) ([]byte, error) {
	page := doc.Page(index)
	if page == nil {
		return nil, fmt.Errorf("page index %d out of range", index)
	}
	pipeline := filters.Default(filters.Limits{MaxDecompressedSize: p.cfg.Limits.MaxDecompressedSize})
	var out []byte
	for _, cs := range page.Contents {
		if cs.Raw == nil {
			continue
		}
		names, params := filters.ExtractFilters(cs.Raw.Dict)
		data := cs.Raw.Data
		if len(names) > 0 {
			decoded, err := pipeline.Decode(ctx, data, names, params)
			if err != nil {
				return nil, fmt.Errorf("decode page %d content: %w", index, err)
			}
			data = decoded
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, data...)
	}
	return out, nil
}

func populateInfo(doc *model.Document) {
	infoObj, ok := doc.Trailer.Get(raw.NameObj{Val: "Info"})
	if !ok {
		return
	}
	dict, ok := doc.Resolve(infoObj).(*raw.DictObj)
	if !ok {
		return
	}
	info := model.DocumentInfo{}
	if v, ok := stringValue(dict, "Title"); ok {
		info.Title = v
	}
	if v, ok := stringValue(dict, "Author"); ok {
		info.Author = v
	}
	if v, ok := stringValue(dict, "Subject"); ok {
		info.Subject = v
	}
	if v, ok := stringValue(dict, "Creator"); ok {
		info.Creator = v
	}
	if v, ok := stringValue(dict, "Producer"); ok {
		info.Producer = v
	}
	if v, ok := stringValue(dict, "Keywords"); ok {
		info.Keywords = strings.Split(v, ",")
	}
	doc.Info = info
}

func stringValue(dict *raw.DictObj, key string) (string, bool) {
	obj, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return "", false
	}
	str, ok := obj.(raw.StringObj)
	if !ok {
		return "", false
	}
	return string(str.Value()), true
}

func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 64)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	line := string(buf[:n])
	for _, sep := range []string{"\r\n", "\n", "\r"} {
		if idx := strings.Index(line, sep); idx >= 0 {
			line = line[:idx]
			break
		}
	}
	if strings.HasPrefix(line, "%PDF-") && len(line) >= 8 {
		return strings.TrimSpace(line[5:])
	}
	return ""
}
