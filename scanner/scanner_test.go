package scanner

import (
	"bytes"
	"io"
	"testing"
)

func newTestScanner(input string) Scanner {
	return New(bytes.NewReader([]byte(input)), Config{})
}

func TestScanNames(t *testing.T) {
	s := newTestScanner("/Type /Name#20With#20Spaces /A.B-C")
	want := []string{"Type", "Name With Spaces", "A.B-C"}
	for _, expected := range want {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok.Type != TokenName || tok.Str != expected {
			t.Fatalf("got %q (type %d), want name %q", tok.Str, tok.Type, expected)
		}
	}
}

func TestScanLiteralString(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"(hello)", "hello"},
		{"(nested (parens) kept)", "nested (parens) kept"},
		{`(escaped \( and \))`, "escaped ( and )"},
		{`(tab\there)`, "tab\there"},
		{`(octal \101\102)`, "octal AB"},
		{"(split \\\nline)", "split line"},
	}
	for _, c := range cases {
		tok, err := newTestScanner(c.input).Next()
		if err != nil {
			t.Fatalf("%q: %v", c.input, err)
		}
		if tok.Type != TokenString || string(tok.Bytes) != c.want {
			t.Fatalf("%q: got %q, want %q", c.input, tok.Bytes, c.want)
		}
		if tok.Hex {
			t.Fatalf("%q: literal string flagged as hex", c.input)
		}
	}
}

func TestScanHexString(t *testing.T) {
	tok, err := newTestScanner("<48 65 6C6C 6F>").Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(tok.Bytes) != "Hello" {
		t.Fatalf("got %q, want Hello", tok.Bytes)
	}
	if !tok.Hex {
		t.Fatal("hex string must be flagged as hex")
	}

	// odd nibble count pads with zero
	tok, err = newTestScanner("<48656C6C6F2>").Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(tok.Bytes) != "Hello " {
		t.Fatalf("got %q, want %q", tok.Bytes, "Hello ")
	}
}

func TestScanNumbers(t *testing.T) {
	s := newTestScanner("42 -17 3.14 .5 +2")
	wantInt := []struct {
		isInt bool
		i     int64
		f     float64
	}{
		{true, 42, 0}, {true, -17, 0}, {false, 0, 3.14}, {false, 0, 0.5}, {true, 2, 0},
	}
	for _, w := range wantInt {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok.Type != TokenNumber || tok.IsInt != w.isInt {
			t.Fatalf("got type %d isInt=%v", tok.Type, tok.IsInt)
		}
		if w.isInt && tok.Int != w.i {
			t.Fatalf("got %d, want %d", tok.Int, w.i)
		}
		if !w.isInt && tok.Float != w.f {
			t.Fatalf("got %g, want %g", tok.Float, w.f)
		}
	}
}

func TestScanIndirectRef(t *testing.T) {
	tok, err := newTestScanner("12 0 R").Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenRef || tok.Int != 12 || tok.Gen != 0 {
		t.Fatalf("got type %d %d %d, want ref 12 0", tok.Type, tok.Int, tok.Gen)
	}
}

func TestTwoIntsAreNotARef(t *testing.T) {
	s := newTestScanner("1 2 /Next")
	for _, want := range []int64{1, 2} {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok.Type != TokenNumber || tok.Int != want {
			t.Fatalf("got type %d value %d, want number %d", tok.Type, tok.Int, want)
		}
	}
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenName || tok.Str != "Next" {
		t.Fatalf("got %q, want name Next", tok.Str)
	}
}

func TestObjHeaderIsNotARef(t *testing.T) {
	s := newTestScanner("5 0 obj")
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenNumber || tok.Int != 5 {
		t.Fatalf("got type %d, want number 5", tok.Type)
	}
}

func TestScanDictAndBoolean(t *testing.T) {
	s := newTestScanner("<< /Flag true /Nothing null >>")
	types := []TokenType{TokenDict, TokenName, TokenBoolean, TokenName, TokenNull, TokenKeyword}
	for _, want := range types {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tok.Type != want {
			t.Fatalf("got type %d, want %d", tok.Type, want)
		}
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	s := newTestScanner("% header comment\n/Visible")
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenName || tok.Str != "Visible" {
		t.Fatalf("got %q, want Visible", tok.Str)
	}
}

func TestScanStreamWithLengthHint(t *testing.T) {
	s := newTestScanner("stream\npayload bytes\nendstream /After")
	s.SetNextStreamLength(13)
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenStream || string(tok.Bytes) != "payload bytes" {
		t.Fatalf("got %q", tok.Bytes)
	}
	tok, err = s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenName || tok.Str != "After" {
		t.Fatalf("scanner not positioned after endstream: %q", tok.Str)
	}
}

func TestScanStreamWithoutLength(t *testing.T) {
	s := newTestScanner("stream\nraw data\nendstream")
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenStream || string(tok.Bytes) != "raw data" {
		t.Fatalf("got %q", tok.Bytes)
	}
}

func TestStringLengthLimit(t *testing.T) {
	s := New(bytes.NewReader([]byte("(abcdefgh)")), Config{MaxStringLength: 4})
	if _, err := s.Next(); err == nil {
		t.Fatal("expected length limit error")
	}
}

func TestSeekTo(t *testing.T) {
	s := newTestScanner("/First /Second")
	if err := s.SeekTo(7); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Str != "Second" {
		t.Fatalf("got %q, want Second", tok.Str)
	}
}

func TestEOF(t *testing.T) {
	s := newTestScanner("   ")
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}
