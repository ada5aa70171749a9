package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/pdftoolkit/internal/document"
	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/pagespec"
)

// Merge concatenates every page of inputs, in argument order.
func (p *Pipeline) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return failure.New(failure.InvalidArgument, "Merge operation requires at least two input files.")
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	logCtx := p.logger.With("operation", "merge", "output", output)

	w := p.lib.NewWriter()
	for _, in := range inputs {
		doc, err := p.open(in, "")
		if err != nil {
			return err
		}
		defer doc.Close()

		name := filepath.Base(in)
		if doc.Locked() {
			return failure.Newf(failure.DecryptionFailed,
				"Input PDF '%s' is password protected and cannot be merged without decryption.", name)
		}
		if doc.PageCount() == 0 {
			return failure.Newf(failure.FileProcessing, "Input PDF '%s' has no pages or is unreadable.", name)
		}
		if err := p.copyAll(w, doc); err != nil {
			return err
		}
		logCtx.Debug("Queued input for merge.", "input", in, "pageCount", doc.PageCount())
	}
	if w.PageCount() == 0 {
		return failure.New(failure.FileProcessing,
			"No pages were added to the merge output, possibly due to empty or problematic input PDFs.")
	}

	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	logCtx.Info("Merged documents.", "inputs", len(inputs), "pageCount", w.PageCount())
	return nil
}

// ValidAngle reports whether angle is an accepted rotation.
func ValidAngle(angle int) bool {
	switch angle {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// Rotate adds angle degrees of clockwise rotation to the pages selected by
// spec. An empty spec selects every page.
func (p *Pipeline) Rotate(ctx context.Context, input, output string, angle int, spec string) error {
	if !ValidAngle(angle) {
		return failure.Newf(failure.InvalidArgument, "Rotation angle must be one of 0, 90, 180 or 270, got %d.", angle)
	}
	doc, set, err := p.openSelected(ctx, input, spec, "Cannot process pages for an empty PDF: '%s'.")
	if err != nil {
		return err
	}
	defer doc.Close()

	w := p.lib.NewWriter()
	for i := 0; i < doc.PageCount(); i++ {
		pl := document.Placement{Page: document.PageRef{Doc: doc, Index: i}}
		if set.Contains(i) {
			pl.Rotate = angle
		}
		if err := p.place(w, pl); err != nil {
			return err
		}
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Rotated pages.", "input", input, "output", output, "angle", angle, "pages", set.String())
	return nil
}

// DeletePages copies every page not selected by spec.
func (p *Pipeline) DeletePages(ctx context.Context, input, output, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return failure.New(failure.InvalidArgument, "Delete pages operation requires a page specification.")
	}
	doc, set, err := p.openSelected(ctx, input, spec, "Cannot delete pages from an empty PDF: '%s'.")
	if err != nil {
		return err
	}
	defer doc.Close()

	if set.Len() == doc.PageCount() {
		return failure.Newf(failure.InvalidArgument,
			"Deleting all pages specified. Resulting PDF would be empty. Operation aborted for '%s'.", filepath.Base(input))
	}

	w := p.lib.NewWriter()
	for _, i := range set.Complement(doc.PageCount()) {
		if err := p.place(w, document.Placement{Page: document.PageRef{Doc: doc, Index: i}}); err != nil {
			return err
		}
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Deleted pages.", "input", input, "output", output, "deleted", set.String(), "remaining", w.PageCount())
	return nil
}

// ExtractPages copies the pages selected by spec in ascending order.
func (p *Pipeline) ExtractPages(ctx context.Context, input, output, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return failure.New(failure.InvalidArgument, "Extract pages operation requires a page specification.")
	}
	doc, set, err := p.openSelected(ctx, input, spec, "Cannot extract pages from an empty PDF: '%s'.")
	if err != nil {
		return err
	}
	defer doc.Close()

	if set.Len() == 0 {
		return failure.Newf(failure.PageRange,
			"Page specification for extraction resulted in no pages selected for '%s'.", filepath.Base(input))
	}

	w := p.lib.NewWriter()
	for _, i := range set {
		if err := p.place(w, document.Placement{Page: document.PageRef{Doc: doc, Index: i}}); err != nil {
			return err
		}
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Extracted pages.", "input", input, "output", output, "pages", set.String())
	return nil
}

// ReversePages copies every page in reverse order.
func (p *Pipeline) ReversePages(ctx context.Context, input, output string) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	doc, err := p.openUnlocked(input)
	if err != nil {
		return err
	}
	defer doc.Close()

	if doc.PageCount() == 0 {
		return failure.Newf(failure.FileProcessing, "Main PDF '%s' for reverse has no pages.", filepath.Base(input))
	}

	w := p.lib.NewWriter()
	for i := doc.PageCount() - 1; i >= 0; i-- {
		if err := p.place(w, document.Placement{Page: document.PageRef{Doc: doc, Index: i}}); err != nil {
			return err
		}
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Reversed pages.", "input", input, "output", output, "pageCount", w.PageCount())
	return nil
}

// DuplicatePages copies every page once and follows each page selected by
// spec with count extra copies of it.
func (p *Pipeline) DuplicatePages(ctx context.Context, input, output, spec string, count int) error {
	if strings.TrimSpace(spec) == "" {
		return failure.New(failure.InvalidArgument, "Duplicate pages operation requires a page specification.")
	}
	if count < 0 {
		return failure.New(failure.InvalidArgument, "Duplicate count must be a non-negative integer.")
	}
	doc, set, err := p.openSelected(ctx, input, spec, "Main PDF '%s' for duplicate has no pages.")
	if err != nil {
		return err
	}
	defer doc.Close()

	w := p.lib.NewWriter()
	for i := 0; i < doc.PageCount(); i++ {
		copies := 1
		if set.Contains(i) {
			copies += count
		}
		for c := 0; c < copies; c++ {
			if err := p.place(w, document.Placement{Page: document.PageRef{Doc: doc, Index: i}}); err != nil {
				return err
			}
		}
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Duplicated pages.", "input", input, "output", output, "pages", set.String(), "count", count)
	return nil
}

// openSelected opens an unlocked, non-empty input and parses spec against it.
// emptyMsg receives the input's base name.
func (p *Pipeline) openSelected(ctx context.Context, input, spec, emptyMsg string) (document.Document, pagespec.Set, error) {
	if err := cancelled(ctx); err != nil {
		return nil, nil, err
	}
	doc, err := p.openUnlocked(input)
	if err != nil {
		return nil, nil, err
	}
	if doc.PageCount() == 0 {
		doc.Close()
		return nil, nil, failure.Newf(failure.FileProcessing, emptyMsg, filepath.Base(input))
	}
	set, err := pagespec.Parse(spec, doc.PageCount())
	if err != nil {
		doc.Close()
		return nil, nil, err
	}
	return doc, set, nil
}
