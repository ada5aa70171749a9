package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pdftoolkit/internal/document"
	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/pagespec"
)

// Overlay draws page overlayPage (1-indexed) of overlay, centered, underneath
// each page of input selected by spec. overlay may be a PDF or a raster image.
func (p *Pipeline) Overlay(ctx context.Context, input, overlay, output string, overlayPage int, spec string) error {
	if overlay == "" {
		return failure.New(failure.InvalidArgument, "Overlay operation requires an overlay source.")
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	base, err := p.openUnlocked(input)
	if err != nil {
		return err
	}
	defer base.Close()

	stamp, err := p.openOverlay(overlay)
	if err != nil {
		return err
	}
	defer stamp.Close()

	if base.PageCount() == 0 {
		return failure.Newf(failure.FileProcessing, "Main PDF '%s' has no pages.", filepath.Base(input))
	}
	if stamp.PageCount() == 0 {
		return failure.Newf(failure.FileProcessing, "Overlay '%s' has no pages.", filepath.Base(overlay))
	}
	idx := overlayPage - 1
	if idx < 0 || idx >= stamp.PageCount() {
		return failure.Newf(failure.FileProcessing, "Overlay page %d out of range (1–%d).", overlayPage, stamp.PageCount())
	}

	set, err := pagespec.Parse(spec, base.PageCount())
	if err != nil {
		return err
	}
	sb, err := stamp.PageBox(idx)
	if err != nil {
		return failure.Internal(err, "Unexpected error measuring overlay page %d", overlayPage)
	}

	w := p.lib.NewWriter()
	for i := 0; i < base.PageCount(); i++ {
		pl := document.Placement{Page: document.PageRef{Doc: base, Index: i}}
		if set.Contains(i) {
			mb, err := base.PageBox(i)
			if err != nil {
				return failure.Internal(err, "Unexpected error measuring page %d of '%s'", i+1, filepath.Base(input))
			}
			pl.Under = &document.Stamp{
				Page: document.PageRef{Doc: stamp, Index: idx},
				TX:   (mb.Width - sb.Width) / 2,
				TY:   (mb.Height - sb.Height) / 2,
			}
		}
		if err := p.place(w, pl); err != nil {
			return err
		}
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Overlaid pages.", "input", input, "overlay", overlay, "overlayPage", overlayPage,
		"output", output, "pages", set.String())
	return nil
}

// openOverlay opens the overlay source, converting raster images first.
func (p *Pipeline) openOverlay(path string) (document.Document, error) {
	if !document.IsImage(path) {
		doc, err := p.open(path, "")
		if err != nil {
			if fe, ok := failure.As(err); ok && fe.Reason == failure.ReasonNotFound {
				return nil, failure.NotFound("Overlay file not found: %s", path)
			}
			return nil, err
		}
		if doc.Locked() {
			doc.Close()
			return nil, failure.Newf(failure.DecryptionFailed,
				"Overlay PDF '%s' is password protected. Please decrypt it first.", filepath.Base(path))
		}
		return doc, nil
	}

	doc, err := p.lib.OpenImage(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failure.NotFound("Overlay file not found: %s", path)
		}
		return nil, failure.Unreadable(err, "Error converting overlay image '%s'", filepath.Base(path))
	}
	return doc, nil
}
