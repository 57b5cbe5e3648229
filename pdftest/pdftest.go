// Package pdftest builds small well-formed PDF files for tests. Cross
// reference offsets are computed from the serialized bytes, so fixtures
// stay valid when their content changes.
package pdftest

import (
	"bytes"
	"fmt"
)

// PageSpec describes one fixture page.
type PageSpec struct {
	Width   float64
	Height  float64
	Content string
	Rotate  int
}

// Letter returns a blank US Letter page.
func Letter() PageSpec { return PageSpec{Width: 612, Height: 792} }

// MinimalPDF serializes a single-section classic-xref PDF with the
// given pages. Object numbering: 1 catalog, 2 page tree, then a page
// and content stream pair per page.
func MinimalPDF(pages ...PageSpec) []byte {
	if len(pages) == 0 {
		pages = []PageSpec{Letter()}
	}

	type object struct {
		num  int
		body string
	}
	var objects []object

	kids := ""
	for i := range pages {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		object{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		object{2, fmt.Sprintf("<< /Type /Pages /Count %d /Kids [%s] >>", len(pages), kids)},
	)
	for i, p := range pages {
		pageNum := 3 + 2*i
		contentNum := pageNum + 1
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		objects = append(objects, object{pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> /Contents %d 0 R%s >>",
			p.Width, p.Height, contentNum, rotate)})
		objects = append(objects, object{contentNum, fmt.Sprintf(
			"<< /Length %d >>\nstream\n%s\nendstream", len(p.Content)+1, p.Content+"\n")})
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	offsets := make(map[int]int)
	for _, obj := range objects {
		offsets[obj.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", obj.num, obj.body)
	}

	maxNum := objects[len(objects)-1].num
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", maxNum+1, xrefOffset)
	return buf.Bytes()
}

// EncryptedPDF returns a fixture whose trailer declares an /Encrypt
// dictionary. The encryption parameters are not real; the fixture only
// exists to exercise rejection paths.
func EncryptedPDF() []byte {
	base := MinimalPDF(Letter())
	marker := []byte("trailer\n<< /Size")
	withEncrypt := bytes.Replace(base, marker, []byte("trailer\n<< /Encrypt 9 0 R /Size"), 1)
	return withEncrypt
}
