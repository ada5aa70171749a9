package document

import (
	"fmt"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"
)

// PageText returns the raw text of the page at index using tabula. The reader
// is opened on first use and kept until Close.
func (d *pdfDocument) PageText(index int) (string, error) {
	if err := d.checkPage(index); err != nil {
		return "", err
	}
	if d.text == nil {
		path, err := d.plainPath()
		if err != nil {
			return "", err
		}
		r, err := reader.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open %s for text extraction: %w", d.Name(), err)
		}
		d.text = r
	}

	text, warnings, err := tabula.FromReader(d.text).Pages(index + 1).Text()
	if err != nil {
		return "", err
	}
	if len(warnings) > 0 {
		d.lib.logger.Debug("Text extraction warnings.", "document", d.Name(), "page", index+1, "warnings", tabula.FormatWarnings(warnings))
	}
	return text, nil
}
