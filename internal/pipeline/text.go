package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/pagespec"
)

const (
	// EmptyDocumentText is written for a document without pages.
	EmptyDocumentText = "[PDF is empty - No text extracted]"
	// NoTextExtracted is written when every selected page is blank.
	NoTextExtracted = "[No text extracted from selected pages or PDF is image-based/password protected without password]"
)

// ExtractText writes the text of the pages selected by spec to output as UTF-8,
// each page under a "--- Page N ---" header. A page that fails to extract
// contributes an inline error marker instead of failing the operation.
func (p *Pipeline) ExtractText(ctx context.Context, input, output, spec string) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	doc, err := p.open(input, "")
	if err != nil {
		return err
	}
	defer doc.Close()

	if doc.Locked() {
		return failure.Newf(failure.DecryptionFailed,
			"PDF '%s' for text extraction is password protected.", filepath.Base(input))
	}
	if doc.PageCount() == 0 {
		return writeAtomically(output, []byte(EmptyDocumentText))
	}

	set, err := pagespec.Parse(spec, doc.PageCount())
	if err != nil {
		return err
	}

	var b strings.Builder
	failed := 0
	for _, i := range set {
		if err := cancelled(ctx); err != nil {
			return err
		}
		text, err := doc.PageText(i)
		if err != nil {
			failed++
			p.logger.Warn("Failed to extract page text.", "input", input, "page", i+1, "error", err)
			fmt.Fprintf(&b, "--- Page %d ---\n[Error extracting text from this page: %v]\n\n", i+1, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n\n", i+1, text)
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		content = NoTextExtracted
	}
	if err := writeAtomically(output, []byte(content)); err != nil {
		return err
	}
	p.logger.Info("Extracted text.", "input", input, "output", output, "pages", set.String(), "failedPages", failed)
	return nil
}
