package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jeanlaroche/PDFMail/ir/raw"
)

func buildSingleSection(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := map[int]int{}
	for num := 1; num <= 3; num++ {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /N %d >>\nendobj\n", num, num)
	}
	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for num := 1; num <= 3; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func TestResolveSingleSection(t *testing.T) {
	data := buildSingleSection(t)
	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := table.Objects(); len(got) != 3 {
		t.Fatalf("got %d objects, want 3", len(got))
	}
	off, gen, found := table.Lookup(2)
	if !found || gen != 0 {
		t.Fatalf("object 2 not found")
	}
	if !bytes.HasPrefix(data[off:], []byte("2 0 obj")) {
		t.Fatalf("offset %d does not point at object 2", off)
	}
	trailer := table.Trailer()
	if trailer == nil {
		t.Fatal("trailer missing")
	}
	rootObj, ok := trailer.Get(raw.NameObj{Val: "Root"})
	if !ok {
		t.Fatal("trailer has no Root")
	}
	root, ok := rootObj.(raw.RefObj)
	if !ok || root.Ref().Num != 1 {
		t.Fatalf("Root = %v, want 1 0 R", rootObj)
	}
}

func TestResolvePrevChain(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	obj1Old := buf.Len()
	buf.WriteString("1 0 obj\n<< /Rev 1 >>\nendobj\n")
	oldXref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", obj1Old)
	fmt.Fprintf(&buf, "trailer\n<< /Size 2 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", oldXref)

	obj1New := buf.Len()
	buf.WriteString("1 0 obj\n<< /Rev 2 >>\nendobj\n")
	obj2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Added true >>\nendobj\n")
	newXref := buf.Len()
	fmt.Fprintf(&buf, "xref\n1 2\n%010d 00000 n \n%010d 00000 n \n", obj1New, obj2)
	fmt.Fprintf(&buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", oldXref, newXref)

	data := buf.Bytes()
	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Newest section wins for updated objects.
	off, _, found := table.Lookup(1)
	if !found {
		t.Fatal("object 1 not found")
	}
	if off != int64(obj1New) {
		t.Fatalf("object 1 offset %d, want updated %d", off, obj1New)
	}
	if _, _, found := table.Lookup(2); !found {
		t.Fatal("object 2 from newest section not found")
	}
	// Newest trailer wins.
	if _, ok := table.Trailer().Get(raw.NameObj{Val: "Prev"}); !ok {
		t.Fatal("merged trailer should be the newest one (with Prev)")
	}
}

func TestResolveXRefStreamRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	streamObj := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /XRef /Length 0 >>\nstream\n\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", streamObj)

	_, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(buf.Bytes()))
	if !errors.Is(err, ErrXRefStream) {
		t.Fatalf("got %v, want ErrXRefStream", err)
	}
}

func TestResolveChainLoop(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	fmt.Fprintf(&buf, "trailer\n<< /Size 1 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset, xrefOffset)

	_, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader(buf.Bytes()))
	if err == nil {
		t.Fatal("expected loop error")
	}
}

func TestResolveMissingStartXref(t *testing.T) {
	_, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), bytes.NewReader([]byte("%PDF-1.7\nnothing here")))
	if err == nil {
		t.Fatal("expected error for missing startxref")
	}
}
