package writer

import (
	"fmt"

	"github.com/jeanlaroche/PDFMail/ir/raw"
	"github.com/jeanlaroche/PDFMail/model"
)

// objectBuilder patches dirty pages into a copy of the source object
// graph. New objects are numbered above the source's highest number so
// pass-through objects keep theirs.
type objectBuilder struct {
	doc     *model.Document
	cfg     Config
	objects map[raw.ObjectRef]raw.Object
	objNum  int

	fontRefs  map[*model.Font]raw.ObjectRef
	imageRefs map[*model.Image]raw.ObjectRef
}

func newObjectBuilder(doc *model.Document, cfg Config) *objectBuilder {
	objects := make(map[raw.ObjectRef]raw.Object, len(doc.Objects))
	for ref, obj := range doc.Objects {
		objects[ref] = obj
	}
	return &objectBuilder{
		doc:       doc,
		cfg:       cfg,
		objects:   objects,
		objNum:    doc.MaxObjectNum() + 1,
		fontRefs:  make(map[*model.Font]raw.ObjectRef),
		imageRefs: make(map[*model.Image]raw.ObjectRef),
	}
}

func (b *objectBuilder) nextRef() raw.ObjectRef {
	ref := raw.ObjectRef{Num: b.objNum, Gen: 0}
	b.objNum++
	return ref
}

// patchPage replaces the page object with a copy whose Contents array
// and Resources dictionary include the overlay material.
func (b *objectBuilder) patchPage(p *model.Page) error {
	if p.Ref == (raw.ObjectRef{}) || p.Dict == nil {
		return fmt.Errorf("page %d has no source object to patch", p.Index)
	}

	pageDict := raw.Dict()
	for k, v := range p.Dict.KV {
		if k == "Contents" || k == "Resources" {
			continue
		}
		pageDict.Set(raw.NameLiteral(k), v)
	}

	contents := raw.NewArray()
	for i := range p.Contents {
		cs := &p.Contents[i]
		switch {
		case cs.Ref != (raw.ObjectRef{}):
			contents.Append(raw.Ref(cs.Ref.Num, cs.Ref.Gen))
		case cs.Raw != nil:
			ref := b.nextRef()
			b.objects[ref] = cs.Raw
			contents.Append(raw.Ref(ref.Num, ref.Gen))
		default:
			ref, err := b.addContentStream(cs.Operations)
			if err != nil {
				return err
			}
			contents.Append(raw.Ref(ref.Num, ref.Gen))
		}
	}
	pageDict.Set(raw.NameLiteral("Contents"), contents)

	resources, err := b.buildResources(p)
	if err != nil {
		return err
	}
	pageDict.Set(raw.NameLiteral("Resources"), resources)

	b.objects[p.Ref] = pageDict
	return nil
}

func (b *objectBuilder) addContentStream(ops []model.Operation) (raw.ObjectRef, error) {
	data := serializeContentStream(ops)
	dict := raw.Dict()
	if b.cfg.Compression != 0 {
		compressed, err := flateEncode(data, b.cfg.Compression)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		data = compressed
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	ref := b.nextRef()
	b.objects[ref] = raw.NewStream(dict, data)
	return ref, nil
}

// buildResources merges the source page resources with the synthetic
// overlay resources. Source entries stay as they were; overlay entries
// were already renamed around them.
func (b *objectBuilder) buildResources(p *model.Page) (*raw.DictObj, error) {
	merged := raw.Dict()
	if p.RawResources != nil {
		for k, v := range p.RawResources.KV {
			merged.Set(raw.NameLiteral(k), v)
		}
	}
	if p.Resources == nil {
		return merged, nil
	}

	sub := func(category string) *raw.DictObj {
		if existing, ok := merged.Get(raw.NameLiteral(category)); ok {
			src := b.doc.Resolve(existing)
			if d, ok := src.(*raw.DictObj); ok {
				clone := raw.Dict()
				for k, v := range d.KV {
					clone.Set(raw.NameLiteral(k), v)
				}
				merged.Set(raw.NameLiteral(category), clone)
				return clone
			}
		}
		d := raw.Dict()
		merged.Set(raw.NameLiteral(category), d)
		return d
	}

	if len(p.Resources.Fonts) > 0 {
		fontDict := sub("Font")
		for name, f := range p.Resources.Fonts {
			ref, err := b.ensureFont(f)
			if err != nil {
				return nil, err
			}
			fontDict.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
	}
	if len(p.Resources.ExtGStates) > 0 {
		gsDict := sub("ExtGState")
		for name, gs := range p.Resources.ExtGStates {
			entry := raw.Dict()
			entry.Set(raw.NameLiteral("Type"), raw.NameLiteral("ExtGState"))
			if gs.FillAlpha != nil {
				entry.Set(raw.NameLiteral("ca"), raw.NumberFloat(*gs.FillAlpha))
			}
			if gs.StrokeAlpha != nil {
				entry.Set(raw.NameLiteral("CA"), raw.NumberFloat(*gs.StrokeAlpha))
			}
			if gs.BlendMode != "" {
				entry.Set(raw.NameLiteral("BM"), raw.NameLiteral(gs.BlendMode))
			}
			gsDict.Set(raw.NameLiteral(name), entry)
		}
	}
	if len(p.Resources.XObjects) > 0 {
		xoDict := sub("XObject")
		for name, img := range p.Resources.XObjects {
			ref, err := b.ensureImage(img)
			if err != nil {
				return nil, err
			}
			xoDict.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
		}
	}
	return merged, nil
}

func (b *objectBuilder) ensureFont(f *model.Font) (raw.ObjectRef, error) {
	if ref, ok := b.fontRefs[f]; ok {
		return ref, nil
	}
	ref := b.nextRef()
	fontDict := raw.Dict()
	fontDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	fontDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(f.Subtype))
	fontDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(f.BaseFont))

	if f.Subtype == "Type0" {
		encoding := f.Encoding
		if encoding == "" {
			encoding = "Identity-H"
		}
		fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral(encoding))
		descRef, err := b.addCIDFont(f.DescendantFont)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		fontDict.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.Ref(descRef.Num, descRef.Gen)))
	} else {
		if f.Encoding != "" {
			fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral(f.Encoding))
		}
		if len(f.Widths) > 0 {
			first, last, widthsArr := encodeWidths(f.Widths)
			fontDict.Set(raw.NameLiteral("FirstChar"), raw.NumberInt(int64(first)))
			fontDict.Set(raw.NameLiteral("LastChar"), raw.NumberInt(int64(last)))
			fontDict.Set(raw.NameLiteral("Widths"), widthsArr)
		}
		if fd := b.addFontDescriptor(f.Descriptor); fd != nil {
			fontDict.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(fd.Num, fd.Gen))
		}
	}
	b.objects[ref] = fontDict
	b.fontRefs[f] = ref
	return ref, nil
}

func (b *objectBuilder) addCIDFont(cid *model.CIDFont) (raw.ObjectRef, error) {
	if cid == nil {
		return raw.ObjectRef{}, fmt.Errorf("composite font has no descendant")
	}
	ref := b.nextRef()
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	subtype := cid.Subtype
	if subtype == "" {
		subtype = "CIDFontType2"
	}
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral(subtype))
	d.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(cid.BaseFont))

	csi := raw.Dict()
	registry := cid.Registry
	if registry == "" {
		registry = "Adobe"
	}
	ordering := cid.Ordering
	if ordering == "" {
		ordering = "Identity"
	}
	csi.Set(raw.NameLiteral("Registry"), raw.Str([]byte(registry)))
	csi.Set(raw.NameLiteral("Ordering"), raw.Str([]byte(ordering)))
	csi.Set(raw.NameLiteral("Supplement"), raw.NumberInt(int64(cid.Supplement)))
	d.Set(raw.NameLiteral("CIDSystemInfo"), csi)

	dw := cid.DW
	if dw == 0 {
		dw = 1000
	}
	d.Set(raw.NameLiteral("DW"), raw.NumberInt(int64(dw)))
	if len(cid.W) > 0 {
		d.Set(raw.NameLiteral("W"), encodeCIDWidths(cid.W))
	}
	if cid.CIDToGIDMapName != "" {
		d.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral(cid.CIDToGIDMapName))
	}
	if fd := b.addFontDescriptor(cid.Descriptor); fd != nil {
		d.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(fd.Num, fd.Gen))
	}
	b.objects[ref] = d
	return ref, nil
}

func (b *objectBuilder) addFontDescriptor(fd *model.FontDescriptor) *raw.ObjectRef {
	if fd == nil {
		return nil
	}
	ref := b.nextRef()
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	name := fd.FontName
	if name == "" {
		name = "CustomFont"
	}
	d.Set(raw.NameLiteral("FontName"), raw.NameLiteral(name))
	flags := fd.Flags
	if flags == 0 {
		flags = 4
	}
	d.Set(raw.NameLiteral("Flags"), raw.NumberInt(int64(flags)))
	d.Set(raw.NameLiteral("ItalicAngle"), raw.NumberFloat(fd.ItalicAngle))
	d.Set(raw.NameLiteral("Ascent"), raw.NumberFloat(fd.Ascent))
	d.Set(raw.NameLiteral("Descent"), raw.NumberFloat(fd.Descent))
	d.Set(raw.NameLiteral("CapHeight"), raw.NumberFloat(fd.CapHeight))
	stem := fd.StemV
	if stem == 0 {
		stem = 80
	}
	d.Set(raw.NameLiteral("StemV"), raw.NumberInt(int64(stem)))
	d.Set(raw.NameLiteral("FontBBox"), raw.NewArray(
		raw.NumberFloat(fd.FontBBox[0]),
		raw.NumberFloat(fd.FontBBox[1]),
		raw.NumberFloat(fd.FontBBox[2]),
		raw.NumberFloat(fd.FontBBox[3]),
	))
	if len(fd.FontFile) > 0 {
		streamDict := raw.Dict()
		streamDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(fd.FontFile))))
		streamDict.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(fd.FontFile))))
		streamRef := b.nextRef()
		b.objects[streamRef] = raw.NewStream(streamDict, fd.FontFile)
		key := fd.FontFileType
		if key == "" {
			key = "FontFile2"
		}
		d.Set(raw.NameLiteral(key), raw.Ref(streamRef.Num, streamRef.Gen))
	}
	b.objects[ref] = d
	return &ref
}

func (b *objectBuilder) ensureImage(img *model.Image) (raw.ObjectRef, error) {
	if ref, ok := b.imageRefs[img]; ok {
		return ref, nil
	}
	ref := b.nextRef()
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	dict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(img.Width)))
	dict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(img.Height)))
	colorSpace := img.ColorSpace
	if colorSpace == "" {
		colorSpace = "DeviceRGB"
	}
	dict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral(colorSpace))
	bits := img.BitsPerComponent
	if bits == 0 {
		bits = 8
	}
	dict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(int64(bits)))

	if img.SMask != nil {
		maskRef, err := b.ensureImage(img.SMask)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		dict.Set(raw.NameLiteral("SMask"), raw.Ref(maskRef.Num, maskRef.Gen))
	}

	data := img.Data
	if b.cfg.Compression != 0 {
		compressed, err := flateEncode(data, b.cfg.Compression)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		data = compressed
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	}
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(data))))
	b.objects[ref] = raw.NewStream(dict, data)
	b.imageRefs[img] = ref
	return ref, nil
}
