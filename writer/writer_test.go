package writer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/pdftest"
	"github.com/jeanlaroche/PDFMail/reader"
)

func TestEscapeLiteralString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "(plain)"},
		{"a(b)c", `(a\(b\)c)`},
		{`back\slash`, `(back\\slash)`},
		{"line\nbreak", `(line\nbreak)`},
		{"tab\tstop", `(tab\tstop)`},
		{"\x01", `(\001)`},
		{"\x80", `(\200)`},
	}
	for _, c := range cases {
		if got := string(escapeLiteralString([]byte(c.in))); got != c.want {
			t.Fatalf("escape %q = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSerializePrimitiveDictKeysSorted(t *testing.T) {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Zebra"), raw.NumberInt(1))
	d.Set(raw.NameLiteral("Alpha"), raw.NumberInt(2))
	d.Set(raw.NameLiteral("Mid"), raw.Bool(true))
	got := string(serializePrimitive(d))
	want := "<</Alpha 2/Mid true/Zebra 1>>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializePrimitiveHexString(t *testing.T) {
	got := string(serializePrimitive(raw.HexStr([]byte{0xDE, 0xAD, 0xBE, 0xEF})))
	if got != "<DEADBEEF>" {
		t.Fatalf("got %q", got)
	}
}

func TestSerializePrimitiveStream(t *testing.T) {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Length"), raw.NumberInt(5))
	got := string(serializePrimitive(raw.NewStream(d, []byte("hello"))))
	want := "<</Length 5>>stream\nhello\nendstream"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializeContentStream(t *testing.T) {
	ops := []model.Operation{
		{Operator: "q"},
		{Operator: "Tm", Operands: []model.Operand{
			model.NumberOperand{Value: 1}, model.NumberOperand{Value: 0},
			model.NumberOperand{Value: 0}, model.NumberOperand{Value: 1},
			model.NumberOperand{Value: 10.5}, model.NumberOperand{Value: 20},
		}},
		{Operator: "Tj", Operands: []model.Operand{model.StringOperand{Value: []byte("hi")}}},
		{Operator: "Q"},
	}
	got := string(serializeContentStream(ops))
	want := "q\n1 0 0 1 10.5 20 Tm\n(hi) Tj\nQ\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeWidths(t *testing.T) {
	first, last, arr := encodeWidths(map[int]int{65: 600, 66: 610, 68: 620})
	if first != 65 || last != 68 {
		t.Fatalf("range %d-%d, want 65-68", first, last)
	}
	want := []int64{600, 610, 0, 620}
	if len(arr.Items) != len(want) {
		t.Fatalf("got %d widths", len(arr.Items))
	}
	for i, w := range want {
		if got := arr.Items[i].(raw.NumberObj).Int(); got != w {
			t.Fatalf("width[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestEncodeCIDWidths(t *testing.T) {
	// 1-3 share width 500, 10 is alone at 750
	arr := encodeCIDWidths(map[int]int{1: 500, 2: 500, 3: 500, 10: 750})
	want := []int64{1, 3, 500, 10, 10, 750}
	if len(arr.Items) != len(want) {
		t.Fatalf("got %d items, want %d", len(arr.Items), len(want))
	}
	for i, w := range want {
		if got := arr.Items[i].(raw.NumberObj).Int(); got != w {
			t.Fatalf("item[%d] = %d, want %d", i, got, w)
		}
	}
}

func parseFixture(t *testing.T) *model.Document {
	t.Helper()
	data := pdftest.MinimalPDF(
		pdftest.PageSpec{Width: 612, Height: 792, Content: "BT /F1 12 Tf (one) Tj ET"},
		pdftest.PageSpec{Width: 612, Height: 792, Content: "BT /F1 12 Tf (two) Tj ET"},
	)
	doc, err := reader.NewParser(reader.Config{}).Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestWriteStructure(t *testing.T) {
	doc := parseFixture(t)
	var buf bytes.Buffer
	if err := Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "%PDF-1.7\n") {
		t.Fatalf("header %q", out[:16])
	}
	if !strings.HasSuffix(out, "%%EOF\n") {
		t.Fatal("missing EOF marker")
	}
	if !strings.Contains(out, "\ntrailer\n") || !strings.Contains(out, "/ID") {
		t.Fatal("trailer incomplete")
	}
	if strings.Contains(out, "/Prev") || strings.Contains(out, "/Encrypt") {
		t.Fatal("trailer carries stale entries")
	}
}

func TestWriteDeterministic(t *testing.T) {
	cfg := Config{Deterministic: true}
	var a, b bytes.Buffer
	if err := Write(context.Background(), parseFixture(t), &a, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(context.Background(), parseFixture(t), &b, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("deterministic writes differ")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	doc := parseFixture(t)
	var buf bytes.Buffer
	if err := Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	reparsed, err := reader.NewParser(reader.Config{}).Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if reparsed.PageCount() != 2 {
		t.Fatalf("page count %d, want 2", reparsed.PageCount())
	}
	if reparsed.Page(0).Width() != 612 {
		t.Fatalf("page width %g", reparsed.Page(0).Width())
	}
}

// genOneFixture builds a one-page file whose content stream is object
// 4 at generation 1, as left behind by an incremental update.
func genOneFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	content := "BT /F1 12 Tf (gen one) Tj ET\n"
	gens := map[int]int{1: 0, 2: 0, 3: 0, 4: 1}
	offsets := map[int]int{}
	add := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", num, gens[num], body)
	}
	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	add(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
		"/Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> "+
		"/Contents 4 1 R >>")
	add(4, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content))
	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 5\n0000000000 65535 f \n")
	for num := 1; num <= 4; num++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[num], gens[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 5 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func TestWriteKeepsObjectGeneration(t *testing.T) {
	doc, err := reader.NewParser(reader.Config{}).Parse(context.Background(), bytes.NewReader(genOneFixture(t)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(context.Background(), doc, &buf, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "4 1 obj") {
		t.Fatal("object 4 lost its generation")
	}
	if !strings.Contains(out, " 00001 n \n") {
		t.Fatal("xref entry does not carry generation 1")
	}

	p := reader.NewParser(reader.Config{})
	reparsed, err := p.Parse(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	content, err := p.PageContent(context.Background(), reparsed, 0)
	if err != nil {
		t.Fatalf("PageContent: %v", err)
	}
	if !strings.Contains(string(content), "(gen one) Tj") {
		t.Fatal("content lost across rewrite")
	}
}

func TestWriteNoTrailer(t *testing.T) {
	doc := &model.Document{}
	if err := Write(context.Background(), doc, &bytes.Buffer{}, Config{}); err == nil {
		t.Fatal("expected error for missing trailer")
	}
}
