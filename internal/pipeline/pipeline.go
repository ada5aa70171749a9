// Package pipeline implements the page operations of pdftoolkit. Every
// operation opens its inputs, validates them, places output pages one by one on
// a document.Writer and writes the result to the output path in one step.
// Every error returned is a *failure.Error.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pdftoolkit/internal/document"
	"github.com/Lllllllleong/pdftoolkit/internal/failure"
)

// Pipeline runs operations against a document.Library.
type Pipeline struct {
	lib    document.Library
	logger *slog.Logger
}

// New returns a Pipeline. A nil logger uses slog.Default().
func New(lib document.Library, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{lib: lib, logger: logger}
}

// open reads path and classifies library failures.
func (p *Pipeline) open(path, password string) (document.Document, error) {
	doc, err := p.lib.Open(path, password)
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, failure.NotFound("Input PDF not found: %s", path)
	case errors.Is(err, document.ErrWrongPassword):
		return nil, &failure.Error{
			Kind:    failure.DecryptionFailed,
			Message: fmt.Sprintf("Incorrect password provided for PDF '%s'.", filepath.Base(path)),
			Err:     err,
		}
	}
	return nil, failure.Unreadable(err, "Error reading PDF '%s'", filepath.Base(path))
}

// openUnlocked opens path without a password and rejects encrypted input.
func (p *Pipeline) openUnlocked(path string) (document.Document, error) {
	doc, err := p.open(path, "")
	if err != nil {
		return nil, err
	}
	if doc.Locked() {
		doc.Close()
		return nil, failure.Newf(failure.DecryptionFailed,
			"Input PDF '%s' is password protected. Please decrypt it first.", filepath.Base(path))
	}
	return doc, nil
}

func (p *Pipeline) place(w document.Writer, pl document.Placement) error {
	if err := w.Append(pl); err != nil {
		return failure.Internal(err, "Unexpected error copying page %d of '%s'", pl.Page.Index+1, pl.Page.Doc.Name())
	}
	return nil
}

// copyAll places every page of doc in order.
func (p *Pipeline) copyAll(w document.Writer, doc document.Document) error {
	for i := 0; i < doc.PageCount(); i++ {
		if err := p.place(w, document.Placement{Page: document.PageRef{Doc: doc, Index: i}}); err != nil {
			return err
		}
	}
	return nil
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return failure.Wrap(failure.Unexpected, err, "Operation cancelled")
	}
	return nil
}

// save serializes w in memory and then writes it to output atomically.
func (p *Pipeline) save(ctx context.Context, w document.Writer, output string) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		if errors.Is(err, document.ErrEmptyOutput) {
			return failure.Newf(failure.FileProcessing, "No pages to write to '%s'.", filepath.Base(output))
		}
		return failure.Internal(err, "Unexpected error building output '%s'", filepath.Base(output))
	}
	return writeAtomically(output, buf.Bytes())
}

// writeAtomically writes data to a temporary sibling of path and renames it
// into place, so path never holds a partial file.
func writeAtomically(path string, data []byte) error {
	fail := func(err error) error {
		return failure.Wrap(failure.IO, err, fmt.Sprintf("Error writing output %s", path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fail(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fail(err)
	}
	return nil
}
