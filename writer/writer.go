// Package writer serializes a document back to PDF bytes. Objects
// carried over from the source keep their numbers and bytes; only pages
// marked dirty are rebuilt, together with the objects their overlays
// introduced.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/model"
)

type Config struct {
	// Compression is the flate level for newly created streams.
	// Zero writes them uncompressed.
	Compression int
	// Deterministic derives the file ID from document content instead
	// of random bytes, so identical inputs produce identical files.
	Deterministic bool
}

// Write serializes doc as a complete PDF file.
func Write(ctx context.Context, doc *model.Document, out io.Writer, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Trailer == nil {
		return fmt.Errorf("document has no trailer")
	}

	b := newObjectBuilder(doc, cfg)
	for _, p := range doc.Pages {
		if !p.Dirty {
			continue
		}
		if err := b.patchPage(p); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")

	ordered := make([]raw.ObjectRef, 0, len(b.objects))
	for ref := range b.objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	offsets := make(map[int]int64, len(ordered))
	gens := make(map[int]int, len(ordered))
	for _, ref := range ordered {
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		buf.Write(serializeObject(ref, b.objects[ref]))
	}

	maxObjNum := ordered[len(ordered)-1].Num
	xrefOffset := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", maxObjNum+1))
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObjNum; i++ {
		if off, ok := offsets[i]; ok {
			// kept objects carry their source generation; the xref entry
			// must agree with the object header
			buf.WriteString(fmt.Sprintf("%010d %05d n \n", off, gens[i]))
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := buildTrailer(doc, cfg, maxObjNum+1)
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	buf.WriteString(fmt.Sprintf("\nstartxref\n%d\n%%%%EOF\n", xrefOffset))

	_, err := out.Write(buf.Bytes())
	return err
}

// buildTrailer clones the source trailer, dropping the entries that no
// longer hold for a fully rewritten file.
func buildTrailer(doc *model.Document, cfg Config, size int) *raw.DictObj {
	trailer := raw.Dict()
	for _, key := range doc.Trailer.Keys() {
		switch key.Value() {
		case "Prev", "Size", "ID", "Encrypt", "XRefStm":
			continue
		}
		if v, ok := doc.Trailer.Get(key); ok {
			trailer.Set(key, v)
		}
	}
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	ids := fileID(doc, cfg)
	trailer.Set(raw.NameLiteral("ID"), raw.NewArray(raw.HexStr(ids[0]), raw.HexStr(ids[1])))
	return trailer
}

func serializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%d %d obj\n", ref.Num, ref.Gen))
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes()
}
