// Package xref resolves classic PDF cross-reference tables, following
// /Prev chains through incremental updates. Cross-reference streams
// (PDF 1.5 compressed xref) are reported as unsupported.
package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/scanner"
)

// ErrXRefStream marks documents whose cross-reference data lives in a
// compressed xref stream instead of a classic table.
var ErrXRefStream = errors.New("cross-reference streams not supported")

// Table holds object offsets and the merged trailer for a document.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	Objects() []int
	Trailer() raw.Dictionary
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
}

type ResolverConfig struct {
	// MaxChainDepth bounds the /Prev chain; 0 means the default of 32.
	MaxChainDepth int
}

func NewResolver(cfg ResolverConfig) Resolver {
	depth := cfg.MaxChainDepth
	if depth <= 0 {
		depth = 32
	}
	return &tableResolver{maxDepth: depth}
}

type tableResolver struct {
	maxDepth int
}

func (t *tableResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data := readAll(r)

	startxref := bytes.LastIndex(data, []byte("startxref"))
	if startxref < 0 {
		return nil, errors.New("startxref not found")
	}
	rest := data[startxref+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	var offset int64 = -1
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse startxref: %w", err)
		}
		offset = val
		break
	}
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}

	entries := make(map[int]entry)
	var trailer *raw.DictObj
	seen := make(map[int64]bool)
	for depth := 0; ; depth++ {
		if depth >= t.maxDepth {
			return nil, errors.New("xref chain too deep")
		}
		if seen[offset] {
			return nil, errors.New("xref chain loop")
		}
		seen[offset] = true

		section, err := parseSection(data, offset)
		if err != nil {
			return nil, err
		}
		// Earlier sections in the chain are newer; first seen wins.
		for num, e := range section.entries {
			if _, ok := entries[num]; !ok {
				entries[num] = e
			}
		}
		if trailer == nil {
			trailer = section.trailer
		}
		prev, ok := dictInt(section.trailer, "Prev")
		if !ok {
			break
		}
		if prev < 0 || prev >= int64(len(data)) {
			return nil, fmt.Errorf("prev xref offset out of range: %d", prev)
		}
		offset = prev
	}

	return &table{entries: entries, trailer: trailer}, nil
}

type section struct {
	entries map[int]entry
	trailer *raw.DictObj
}

func parseSection(data []byte, offset int64) (*section, error) {
	tableData := data[offset:]
	if !bytes.HasPrefix(bytes.TrimLeft(tableData, " \r\n\t"), []byte("xref")) {
		// An indirect object at the xref offset means a 1.5+ xref stream.
		if looksLikeObjectHeader(tableData) {
			return nil, ErrXRefStream
		}
		return nil, errors.New("xref keyword not found at offset")
	}

	sc := bufio.NewScanner(bytes.NewReader(tableData))
	sc.Scan() // xref keyword
	out := &section{entries: make(map[int]entry)}
	var sawTrailer bool
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			sawTrailer = true
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse xref count: %w", err)
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, errors.New("unexpected end of xref section")
			}
			entryLine := strings.TrimSpace(sc.Text())
			fields := strings.Fields(entryLine)
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry: %q", entryLine)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("parse xref gen: %w", err)
			}
			if len(fields[2]) == 0 || fields[2][0] != 'n' {
				continue // free entry
			}
			out.entries[startObj+i] = entry{offset: off, gen: gen}
		}
	}
	if !sawTrailer {
		return nil, errors.New("trailer not found after xref section")
	}

	trailerIdx := bytes.Index(tableData, []byte("trailer"))
	if trailerIdx < 0 {
		return nil, errors.New("trailer not found after xref section")
	}
	dict, err := parseTrailerDict(tableData[trailerIdx+len("trailer"):])
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	out.trailer = dict
	return out, nil
}

func looksLikeObjectHeader(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \r\n\t")
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i == 0 {
		return false
	}
	rest := bytes.TrimLeft(trimmed[i:], " ")
	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == 0 {
		return false
	}
	return bytes.HasPrefix(bytes.TrimLeft(rest[j:], " "), []byte("obj"))
}

func parseTrailerDict(data []byte) (*raw.DictObj, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenDict {
		return nil, errors.New("expected trailer dictionary")
	}
	obj, err := parseDictBody(s)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func parseDictBody(s scanner.Scanner) (*raw.DictObj, error) {
	d := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, errors.New("expected name in trailer dictionary")
		}
		val, err := parseValue(s)
		if err != nil {
			return nil, err
		}
		d.Set(raw.NameObj{Val: tok.Str}, val)
	}
}

func parseValue(s scanner.Scanner) (raw.Object, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return parseValueTok(s, tok)
}

func parseValueTok(s scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return raw.NumberObj{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenRef:
		return raw.RefObj{R: raw.ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenDict:
		return parseDictBody(s)
	case scanner.TokenArray:
		arr := &raw.ArrayObj{}
		for {
			inner, err := s.Next()
			if err != nil {
				return nil, err
			}
			if inner.Type == scanner.TokenKeyword && inner.Str == "]" {
				return arr, nil
			}
			item, err := parseValueTok(s, inner)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	}
	return nil, errors.New("unexpected token in trailer dictionary")
}

func dictInt(d *raw.DictObj, key string) (int64, bool) {
	if d == nil {
		return 0, false
	}
	if v, ok := d.Get(raw.NameObj{Val: key}); ok {
		if n, ok := v.(raw.NumberObj); ok && n.IsInteger() {
			return n.Int(), true
		}
	}
	return 0, false
}

type entry struct {
	offset int64
	gen    int
}

type table struct {
	entries map[int]entry
	trailer *raw.DictObj
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() raw.Dictionary {
	if t.trailer == nil {
		return nil
	}
	return t.trailer
}

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
		if int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
