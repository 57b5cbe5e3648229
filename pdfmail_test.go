package pdfmail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeanlaroche/PDFMail/overlay"
	"github.com/jeanlaroche/PDFMail/pdftest"
	"github.com/jeanlaroche/PDFMail/reader"
)

func writeFixture(t *testing.T, pages ...pdftest.PageSpec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pdf")
	if err := os.WriteFile(path, pdftest.MinimalPDF(pages...), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestStampFile(t *testing.T) {
	ctx := context.Background()
	in := writeFixture(t,
		pdftest.PageSpec{Width: 612, Height: 792, Content: "BT /F1 12 Tf (body) Tj ET"},
		pdftest.Letter(),
	)
	out := filepath.Join(filepath.Dir(in), "out.pdf")

	overlays := map[int]overlay.PageOverlay{
		0: {Texts: []overlay.TextInstruction{
			{Text: "CONFIDENTIAL", X: 150, Y: 400, Font: "Helvetica", Size: 36, Opacity: 0.5},
		}},
	}
	if err := StampFile(ctx, in, out, overlays); err != nil {
		t.Fatalf("StampFile: %v", err)
	}

	p := reader.NewParser(reader.Config{})
	doc, err := p.Open(ctx, out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("page count %d, want 2", doc.PageCount())
	}
	content, err := p.PageContent(ctx, doc, 0)
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "(CONFIDENTIAL) Tj") {
		t.Fatal("stamp missing from output")
	}
	if !strings.Contains(text, "(body) Tj") {
		t.Fatal("source content missing from output")
	}
	if !strings.Contains(text, " gs\n") {
		t.Fatal("opacity graphics state missing")
	}
}

func TestStampTextLeavesSourceUntouched(t *testing.T) {
	ctx := context.Background()
	in := writeFixture(t, pdftest.Letter())

	doc, err := Open(ctx, in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stamped, err := StampText(ctx, doc, map[int][]overlay.TextInstruction{
		0: {{Text: "COPY", X: 10, Y: 10, Font: "Helvetica", Size: 12}},
	})
	if err != nil {
		t.Fatalf("StampText: %v", err)
	}
	if doc.Page(0).Dirty {
		t.Fatal("input document was modified")
	}
	if !stamped.Page(0).Dirty {
		t.Fatal("output page not stamped")
	}
}

func TestStampFileMissingInput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	err := StampFile(ctx, filepath.Join(dir, "absent.pdf"), filepath.Join(dir, "out.pdf"), nil)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.pdf")); !os.IsNotExist(statErr) {
		t.Fatal("output file created despite failure")
	}
}
