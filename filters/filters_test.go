package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"encoding/ascii85"
	"encoding/hex"
	"testing"

	"github.com/jeanlaroche/PDFMail/ir/raw"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func TestFlateDecodeZlib(t *testing.T) {
	want := []byte("BT /F1 12 Tf (Hello) Tj ET")
	got, err := NewFlateDecoder().Decode(context.Background(), zlibCompress(t, want), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFlateDecodeRawDeflateFallback(t *testing.T) {
	want := []byte("raw deflate payload")
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	w.Write(want)
	w.Close()

	got, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFlateDecodePNGUpPredictor(t *testing.T) {
	// Two rows of four bytes with the Up filter: row 2 stores deltas.
	raw_ := []byte{
		2, 10, 20, 30, 40,
		2, 1, 1, 1, 1,
	}
	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(12))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(4))

	got, err := NewFlateDecoder().Decode(context.Background(), zlibCompress(t, raw_), params)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{10, 20, 30, 40, 11, 21, 31, 41}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTIFFPredictor(t *testing.T) {
	// Horizontal differencing over one row.
	raw_ := []byte{10, 5, 5, 5}
	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(2))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(4))

	got, err := NewFlateDecoder().Decode(context.Background(), zlibCompress(t, raw_), params)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{10, 15, 20, 25}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	in := []byte("48 65 6C 6C 6F>")
	got, err := NewASCIIHexDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "Hello" {
		t.Fatalf("got %q", got)
	}

	// odd digit count pads with zero
	got, err = NewASCIIHexDecoder().Decode(context.Background(), []byte("412>"), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, []byte{0x41, 0x20}) {
		t.Fatalf("got %s", hex.EncodeToString(got))
	}
}

func TestASCII85Decode(t *testing.T) {
	want := []byte("stamped output")
	enc := make([]byte, ascii85.MaxEncodedLen(len(want)))
	n := ascii85.Encode(enc, want)
	in := append(enc[:n], []byte("~>")...)

	got, err := NewASCII85Decoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal "ab", then 'c' repeated 4 times, then EOD
	in := []byte{1, 'a', 'b', 254, 'c', 128}
	got, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "abcccc" {
		t.Fatalf("got %q", got)
	}
}

func TestPipelineChainsFilters(t *testing.T) {
	want := []byte("chained")
	compressed := zlibCompress(t, want)
	hexed := []byte(hex.EncodeToString(compressed) + ">")

	p := Default(Limits{})
	got, err := p.Decode(context.Background(), hexed, []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPipelineSizeLimit(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 1024)
	p := Default(Limits{MaxDecompressedSize: 100})
	_, err := p.Decode(context.Background(), zlibCompress(t, big), []string{"FlateDecode"}, nil)
	if err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	p := Default(Limits{})
	if _, err := p.Decode(context.Background(), nil, []string{"JBIG2Decode"}, nil); err == nil {
		t.Fatal("expected unknown filter error")
	}
}
