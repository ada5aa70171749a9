package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrEmptyOutput is returned by WriteTo when no page was appended.
var ErrEmptyOutput = errors.New("document: output has no pages")

// pdfWriter records placements and replays them through pdfcpu in WriteTo.
type pdfWriter struct {
	lib        *PDFLibrary
	placements []Placement

	encrypt bool
	userPW  string
	ownerPW string
}

// source returns the pdfcpu backed document behind d.
func source(d Document) (*pdfDocument, error) {
	switch v := d.(type) {
	case *pdfDocument:
		return v, nil
	case *imageDocument:
		return v.pdfDocument, nil
	}
	return nil, fmt.Errorf("document: unsupported document type %T", d)
}

func checkRef(ref PageRef) (*pdfDocument, error) {
	if ref.Doc == nil {
		return nil, errors.New("document: page reference without document")
	}
	pd, err := source(ref.Doc)
	if err != nil {
		return nil, err
	}
	if err := pd.checkPage(ref.Index); err != nil {
		return nil, err
	}
	return pd, nil
}

// Append implements Writer.
func (w *pdfWriter) Append(p Placement) error {
	if _, err := checkRef(p.Page); err != nil {
		return err
	}
	if p.Rotate%90 != 0 {
		return fmt.Errorf("document: rotation %d is not a multiple of 90", p.Rotate)
	}
	if p.Under != nil {
		if _, err := checkRef(p.Under.Page); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}
	w.placements = append(w.placements, p)
	return nil
}

// PageCount implements Writer.
func (w *pdfWriter) PageCount() int { return len(w.placements) }

// Encrypt implements Writer.
func (w *pdfWriter) Encrypt(userPassword, ownerPassword string) {
	if ownerPassword == "" {
		ownerPassword = userPassword
	}
	w.encrypt = true
	w.userPW = userPassword
	w.ownerPW = ownerPassword
}

// WriteTo implements Writer. The output is assembled in memory and written
// to dst in a single call.
func (w *pdfWriter) WriteTo(dst io.Writer) (int64, error) {
	if len(w.placements) == 0 {
		return 0, ErrEmptyOutput
	}

	out, err := w.assemble()
	if err != nil {
		return 0, err
	}
	if out, err = w.stamp(out); err != nil {
		return 0, err
	}
	if out, err = w.rotate(out); err != nil {
		return 0, err
	}
	if w.encrypt {
		conf := model.NewAESConfiguration(w.userPW, w.ownerPW, 256)
		conf.ValidationMode = model.ValidationRelaxed
		var buf bytes.Buffer
		if err := api.Encrypt(bytes.NewReader(out), &buf, conf); err != nil {
			return 0, fmt.Errorf("failed to encrypt output: %w", err)
		}
		out = buf.Bytes()
	}

	n, err := dst.Write(out)
	return int64(n), err
}

// run is a maximal sequence of consecutive placements from one source.
type run struct {
	doc   *pdfDocument
	pages []string
}

// assemble copies the placed pages, in order and including repeats, into a
// fresh document.
func (w *pdfWriter) assemble() ([]byte, error) {
	var runs []*run
	for _, p := range w.placements {
		pd, _ := source(p.Page.Doc)
		if len(runs) == 0 || runs[len(runs)-1].doc != pd {
			runs = append(runs, &run{doc: pd})
		}
		last := runs[len(runs)-1]
		last.pages = append(last.pages, strconv.Itoa(p.Page.Index+1))
	}

	parts := make([][]byte, 0, len(runs))
	for _, r := range runs {
		var buf bytes.Buffer
		if err := api.Collect(bytes.NewReader(r.doc.content()), &buf, r.pages, configuration("")); err != nil {
			return nil, fmt.Errorf("failed to copy pages of %s: %w", r.doc.Name(), err)
		}
		parts = append(parts, buf.Bytes())
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	readers := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, configuration("")); err != nil {
		return nil, fmt.Errorf("failed to concatenate pages: %w", err)
	}
	w.lib.logger.Debug("Assembled output document.", "runs", len(runs), "pages", len(w.placements))
	return buf.Bytes(), nil
}

type stampKey struct {
	doc    *pdfDocument
	index  int
	tx, ty float64
}

// stamp draws every Under page behind its target, one watermark pass per
// distinct stamp and offset.
func (w *pdfWriter) stamp(in []byte) ([]byte, error) {
	groups := make(map[stampKey][]string)
	var order []stampKey
	for i, p := range w.placements {
		if p.Under == nil {
			continue
		}
		pd, _ := source(p.Under.Page.Doc)
		key := stampKey{doc: pd, index: p.Under.Page.Index, tx: p.Under.TX, ty: p.Under.TY}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], strconv.Itoa(i+1))
	}

	for _, key := range order {
		path, err := key.doc.plainPath()
		if err != nil {
			return nil, err
		}
		desc := fmt.Sprintf("pos:bl, off:%.2f %.2f, scalefactor:1 abs, rot:0, op:1", key.tx, key.ty)
		wm, err := api.PDFWatermark(fmt.Sprintf("%s:%d", path, key.index+1), desc, false, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare overlay from %s: %w", key.doc.Name(), err)
		}
		var buf bytes.Buffer
		if err := api.AddWatermarks(bytes.NewReader(in), &buf, groups[key], wm, configuration("")); err != nil {
			return nil, fmt.Errorf("failed to apply overlay from %s: %w", key.doc.Name(), err)
		}
		in = buf.Bytes()
	}
	return in, nil
}

// rotate applies the additional rotations, one pass per distinct angle.
func (w *pdfWriter) rotate(in []byte) ([]byte, error) {
	groups := make(map[int][]string)
	for i, p := range w.placements {
		angle := ((p.Rotate % 360) + 360) % 360
		if angle == 0 {
			continue
		}
		groups[angle] = append(groups[angle], strconv.Itoa(i+1))
	}
	angles := make([]int, 0, len(groups))
	for a := range groups {
		angles = append(angles, a)
	}
	sort.Ints(angles)

	for _, angle := range angles {
		var buf bytes.Buffer
		if err := api.Rotate(bytes.NewReader(in), &buf, angle, groups[angle], configuration("")); err != nil {
			return nil, fmt.Errorf("failed to rotate pages by %d degrees: %w", angle, err)
		}
		in = buf.Bytes()
	}
	return in, nil
}
