package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jeanlaroche/PDFMail"
	"github.com/jeanlaroche/PDFMail/mailing"
	"github.com/jeanlaroche/PDFMail/model"
	"github.com/jeanlaroche/PDFMail/overlay"
)

type options struct {
	pdfPath string
	outFile string

	// stamp mode
	stamp   string
	pages   string
	x, y    float64
	font    string
	size    float64
	rotate  float64
	opacity float64
	align   string

	// mailing mode
	addresses  string
	skip       int
	sortByZip  bool
	perPage    int
	fontAdjust float64
	xAdjust    float64
	yAdjust    float64
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfmail: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfmail: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfmail [flags] <pdf>\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Stamp mode places -stamp text on the selected pages.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Mailing mode (-addresses) stamps CSV address blocks on verso pages.\n\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.stamp, "stamp", "", "Text to stamp on the selected pages")
	flag.StringVar(&opts.pages, "pages", "all", "Pages to stamp: \"all\" or 1-based list like 1,3-5")
	flag.Float64Var(&opts.x, "x", 72, "Stamp x position in points")
	flag.Float64Var(&opts.y, "y", 72, "Stamp y position in points (from the bottom)")
	flag.StringVar(&opts.font, "font", "Helvetica", "Stamp font name")
	flag.Float64Var(&opts.size, "size", 24, "Stamp font size in points")
	flag.Float64Var(&opts.rotate, "rotate", 0, "Stamp rotation in degrees")
	flag.Float64Var(&opts.opacity, "opacity", 1, "Stamp opacity between 0 and 1")
	flag.StringVar(&opts.align, "align", "left", "Stamp alignment: left, center or right")

	flag.StringVar(&opts.addresses, "addresses", "", "CSV address file; selects mailing mode")
	flag.IntVar(&opts.skip, "skip", 1, "Number of header lines to skip in the CSV file")
	flag.BoolVar(&opts.sortByZip, "sort", false, "Sort addresses by ZIP code")
	flag.IntVar(&opts.perPage, "npp", 1, "Address blocks per sheet: 1 or 2")
	flag.Float64Var(&opts.fontAdjust, "font-adjust", 0, "Address font size adjustment in points")
	flag.Float64Var(&opts.xAdjust, "x-adjust", 0, "Address horizontal adjustment in points")
	flag.Float64Var(&opts.yAdjust, "y-adjust", 0, "Address vertical adjustment in points")

	flag.StringVar(&opts.outFile, "o", "output.pdf", "Name of the output file")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	if opts.stamp == "" && opts.addresses == "" {
		return options{}, fmt.Errorf("nothing to do: pass -stamp or -addresses")
	}
	return opts, nil
}

func run(opts options) error {
	ctx := context.Background()
	doc, err := pdfmail.Open(ctx, opts.pdfPath)
	if err != nil {
		return err
	}

	var overlays map[int]overlay.PageOverlay
	if opts.addresses != "" {
		overlays, err = mailingOverlays(opts, doc)
	} else {
		overlays, err = stampOverlays(opts, doc)
	}
	if err != nil {
		return err
	}

	stamped, err := pdfmail.New().Stamp(ctx, doc, overlays)
	if err != nil {
		return err
	}
	return pdfmail.WriteFile(ctx, stamped, opts.outFile)
}

func stampOverlays(opts options, doc *model.Document) (map[int]overlay.PageOverlay, error) {
	pages, err := parsePages(opts.pages, doc.PageCount())
	if err != nil {
		return nil, err
	}
	align, err := parseAlign(opts.align)
	if err != nil {
		return nil, err
	}
	overlays := make(map[int]overlay.PageOverlay, len(pages))
	for _, page := range pages {
		overlays[page] = overlay.PageOverlay{Texts: []overlay.TextInstruction{{
			Text:      opts.stamp,
			X:         opts.x,
			Y:         opts.y,
			Font:      opts.font,
			Size:      opts.size,
			RotateDeg: opts.rotate,
			Opacity:   opts.opacity,
			Align:     align,
		}}}
	}
	return overlays, nil
}

func mailingOverlays(opts options, doc *model.Document) (map[int]overlay.PageOverlay, error) {
	addresses, err := mailing.ReadAddressFile(opts.addresses, mailing.Options{
		HeaderLines: opts.skip,
		SortByZip:   opts.sortByZip,
	})
	if err != nil {
		return nil, err
	}
	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	first := doc.Page(0)
	m := mailing.Mailing{
		Addresses: addresses,
		Sorted:    opts.sortByZip,
		Layout: mailing.Layout{
			PerPage:        opts.perPage,
			XAdjust:        opts.xAdjust,
			YAdjust:        opts.yAdjust,
			FontSizeAdjust: opts.fontAdjust,
		},
	}
	return m.Overlays(doc.PageCount(), first.Width(), first.Height())
}

// parsePages expands "all" or a 1-based list like 1,3-5 into zero-based
// page indices.
func parsePages(spec string, pageCount int) ([]int, error) {
	if spec == "" || spec == "all" {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i
		}
		return pages, nil
	}
	var pages []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(lo)
			if err != nil {
				return nil, fmt.Errorf("bad page range %q", part)
			}
			end, err := strconv.Atoi(hi)
			if err != nil || end < start {
				return nil, fmt.Errorf("bad page range %q", part)
			}
			for n := start; n <= end; n++ {
				pages = append(pages, n-1)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad page number %q", part)
		}
		pages = append(pages, n-1)
	}
	return pages, nil
}

func parseAlign(s string) (overlay.Align, error) {
	switch s {
	case "left", "":
		return overlay.AlignLeft, nil
	case "center":
		return overlay.AlignCenter, nil
	case "right":
		return overlay.AlignRight, nil
	}
	return overlay.AlignLeft, fmt.Errorf("unknown alignment %q", s)
}
