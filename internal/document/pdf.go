package document

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/tsawler/tabula/reader"
)

// Config holds settings for PDFLibrary.
type Config struct {
	// TempDir receives converted overlays and decrypted copies needed by the
	// text extractor. Empty means os.TempDir().
	TempDir string
	Logger  *slog.Logger
}

// PDFLibrary implements Library on top of pdfcpu.
type PDFLibrary struct {
	tempDir string
	logger  *slog.Logger
}

// NewPDFLibrary returns a PDFLibrary.
func NewPDFLibrary(cfg Config) *PDFLibrary {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFLibrary{tempDir: cfg.TempDir, logger: logger}
}

// configuration returns a relaxed pdfcpu configuration carrying password as
// both user and owner password.
func configuration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password
	return conf
}

// isPasswordError reports whether err is pdfcpu refusing to read an encrypted
// file. The text match covers callers that flatten the sentinel with %v.
func isPasswordError(err error) bool {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return true
	}
	return strings.Contains(err.Error(), pdfcpu.ErrWrongPassword.Error())
}

// Open implements Library.
func (l *PDFLibrary) Open(path, password string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := &pdfDocument{
		lib:  l,
		path: path,
		raw:  raw,
		size: int64(len(raw)),
	}

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(raw), configuration(""))
	switch {
	case err != nil && !isPasswordError(err):
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	case err != nil:
		doc.encrypted = true
		if password == "" {
			doc.locked = true
			l.logger.Debug("Opened encrypted document without password.", "path", path)
			return doc, nil
		}
		return l.unlock(doc, password)
	}

	doc.encrypted = ctx.Encrypt != nil
	if doc.encrypted && password != "" {
		return l.unlock(doc, password)
	}
	doc.pageCount = ctx.PageCount
	return doc, nil
}

// unlock replaces the document's bytes with a decrypted copy.
func (l *PDFLibrary) unlock(doc *pdfDocument, password string) (Document, error) {
	var buf bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(doc.raw), &buf, configuration(password)); err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%s: %w", doc.Name(), ErrWrongPassword)
		}
		return nil, fmt.Errorf("failed to decrypt %s: %w", doc.Name(), err)
	}
	doc.raw = buf.Bytes()
	doc.decrypted = true

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc.raw), configuration(""))
	if err != nil {
		return nil, fmt.Errorf("failed to parse decrypted %s: %w", doc.Name(), err)
	}
	doc.pageCount = ctx.PageCount
	l.logger.Debug("Unlocked encrypted document.", "path", doc.path, "pageCount", doc.pageCount)
	return doc, nil
}

// NewWriter implements Library.
func (l *PDFLibrary) NewWriter() Writer {
	return &pdfWriter{lib: l}
}

type pdfDocument struct {
	lib  *PDFLibrary
	path string
	raw  []byte
	size int64

	pageCount int
	encrypted bool
	locked    bool
	decrypted bool

	dims   []types.Dim
	text   *reader.Reader
	spool  string
	owned  []string
	closed bool
}

func (d *pdfDocument) Name() string { return filepath.Base(d.path) }
func (d *pdfDocument) PageCount() int { return d.pageCount }
func (d *pdfDocument) Encrypted() bool { return d.encrypted }
func (d *pdfDocument) Locked() bool { return d.locked }
func (d *pdfDocument) Size() int64 { return d.size }
func (d *pdfDocument) content() []byte { return d.raw }
func (d *pdfDocument) own(path string) { d.owned = append(d.owned, path) }
func (d *pdfDocument) valid(i int) bool { return i >= 0 && i < d.pageCount }

func (d *pdfDocument) checkPage(index int) error {
	if d.locked {
		return fmt.Errorf("%s: %w", d.Name(), ErrLocked)
	}
	if !d.valid(index) {
		return fmt.Errorf("%s: page index %d out of range (0-%d)", d.Name(), index, d.pageCount-1)
	}
	return nil
}

// PageBox implements Document.
func (d *pdfDocument) PageBox(index int) (Box, error) {
	if err := d.checkPage(index); err != nil {
		return Box{}, err
	}
	if d.dims == nil {
		dims, err := api.PageDims(bytes.NewReader(d.raw), configuration(""))
		if err != nil {
			return Box{}, fmt.Errorf("failed to read page dimensions of %s: %w", d.Name(), err)
		}
		d.dims = dims
	}
	if index >= len(d.dims) {
		return Box{}, fmt.Errorf("%s: no dimensions for page %d", d.Name(), index+1)
	}
	return Box{Width: d.dims[index].Width, Height: d.dims[index].Height}, nil
}

// plainPath returns a file holding the unencrypted bytes of the document,
// spooling a decrypted copy to disk on first use.
func (d *pdfDocument) plainPath() (string, error) {
	if !d.decrypted {
		return d.path, nil
	}
	if d.spool != "" {
		return d.spool, nil
	}
	f, err := os.CreateTemp(d.lib.tempDir, "pdftool-plain-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	d.own(f.Name())
	if _, err := f.Write(d.raw); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to spool %s: %w", d.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to spool %s: %w", d.Name(), err)
	}
	d.spool = f.Name()
	return d.spool, nil
}

// Close releases the text reader and removes temporary files owned by the document.
func (d *pdfDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var firstErr error
	if d.text != nil {
		firstErr = d.text.Close()
		d.text = nil
	}
	for _, p := range d.owned {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	d.owned = nil
	return firstErr
}
