// Package assemble drives the full stamping pipeline: it generates an
// overlay page per requested index, composites it onto the source page
// and produces a new document ready for serialization. The source
// document is never modified.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jeanlaroche/PDFMail/compose"
	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/observability"
	"github.com/jeanlaroche/PDFMail/overlay"
	"github.com/jeanlaroche/PDFMail/writer"
)

// ErrWrite marks output failures: unwritable paths, full disks,
// serialization errors.
var ErrWrite = errors.New("write error")

// Assembler stamps overlays onto documents.
type Assembler struct {
	Generator *overlay.Generator
	Logger    observability.Logger
}

func New(gen *overlay.Generator, logger observability.Logger) *Assembler {
	if gen == nil {
		gen = overlay.NewGenerator(nil, logger)
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Assembler{Generator: gen, Logger: logger}
}

// Assemble returns a new document where every page named in overlays
// carries its stamped content. Pages without an overlay are passed
// through and keep their original objects. Indices outside the document
// are ignored.
func (a *Assembler) Assemble(ctx context.Context, doc *model.Document, overlays map[int]overlay.PageOverlay) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	out := &model.Document{
		Pages:   make([]*model.Page, len(doc.Pages)),
		Info:    doc.Info,
		Version: doc.Version,
		Objects: doc.Objects,
		Trailer: doc.Trailer,
	}
	copy(out.Pages, doc.Pages)

	stamped := 0
	for index, ov := range overlays {
		if index < 0 || index >= len(doc.Pages) {
			a.Logger.Warn("overlay index out of range",
				observability.Int("index", index),
				observability.Int("pages", len(doc.Pages)))
			continue
		}
		if ov.Empty() {
			continue
		}
		src := doc.Pages[index]
		ovPage, err := a.Generator.Generate(src.Width(), src.Height(), ov)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", index, err)
		}
		merged, err := compose.Composite(src, ovPage)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", index, err)
		}
		out.Pages[index] = merged
		stamped++
	}

	a.Logger.Debug("assembled document",
		observability.Int(observability.MetricStampedPages, stamped),
		observability.Int(observability.MetricPageCount, len(out.Pages)),
		observability.Int64(observability.MetricOverlayTime, time.Since(start).Milliseconds()))
	return out, nil
}

// StampText is a convenience wrapper for text-only overlays.
func (a *Assembler) StampText(ctx context.Context, doc *model.Document, texts map[int][]overlay.TextInstruction) (*model.Document, error) {
	overlays := make(map[int]overlay.PageOverlay, len(texts))
	for index, instructions := range texts {
		overlays[index] = overlay.PageOverlay{Texts: instructions}
	}
	return a.Assemble(ctx, doc, overlays)
}

// Write serializes the document to w.
func (a *Assembler) Write(ctx context.Context, doc *model.Document, w io.Writer, cfg writer.Config) error {
	start := time.Now()
	if err := writer.Write(ctx, doc, w, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	a.Logger.Debug("wrote document",
		observability.Int64(observability.MetricWriteTime, time.Since(start).Milliseconds()))
	return nil
}

// WriteFile writes the document to path atomically: the bytes go to a
// temporary file in the same directory and replace the target only on
// success, so a crash never leaves a truncated file behind.
func (a *Assembler) WriteFile(ctx context.Context, doc *model.Document, path string, cfg writer.Config) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pdfmail-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	tmpName := tmp.Name()

	if err := a.Write(ctx, doc, tmp, cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
