package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lllllllleong/pdftoolkit/internal/document"
)

// fakePage is one page of a fakeFile. ID names the page's origin so tests can
// follow pages through operations.
type fakePage struct {
	ID      string     `json:"id"`
	Width   float64    `json:"w"`
	Height  float64    `json:"h"`
	Rotate  int        `json:"rot,omitempty"`
	Text    string     `json:"text,omitempty"`
	TextErr string     `json:"textErr,omitempty"`
	Under   *fakeStamp `json:"under,omitempty"`
}

type fakeStamp struct {
	ID string  `json:"id"`
	TX float64 `json:"tx"`
	TY float64 `json:"ty"`
}

// fakeFile is the on-disk form of a document handled by fakeLibrary.
type fakeFile struct {
	Pages     []fakePage `json:"pages"`
	Encrypted bool       `json:"encrypted,omitempty"`
	Password  string     `json:"password,omitempty"`
	Owner     string     `json:"owner,omitempty"`
	Garbage   bool       `json:"garbage,omitempty"`
}

type fakeLibrary struct {
	opened      int
	closed      int
	imageOpened int
}

func (l *fakeLibrary) read(path string) (fakeFile, int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fakeFile{}, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var f fakeFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fakeFile{}, 0, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if f.Garbage {
		return fakeFile{}, 0, errors.New("xref table not found")
	}
	return f, int64(len(raw)), nil
}

func (l *fakeLibrary) Open(path, password string) (document.Document, error) {
	f, size, err := l.read(path)
	if err != nil {
		return nil, err
	}
	doc := &fakeDoc{lib: l, name: filepath.Base(path), size: size, encrypted: f.Encrypted}
	switch {
	case !f.Encrypted:
		doc.pages = f.Pages
	case password == "":
		doc.locked = true
	case password != f.Password && password != f.Owner:
		return nil, fmt.Errorf("%s: %w", doc.name, document.ErrWrongPassword)
	default:
		doc.pages = f.Pages
	}
	l.opened++
	return doc, nil
}

func (l *fakeLibrary) OpenImage(path string) (document.Document, error) {
	doc, err := l.Open(path, "")
	if err != nil {
		return nil, err
	}
	l.imageOpened++
	return doc, nil
}

func (l *fakeLibrary) NewWriter() document.Writer { return &fakeWriter{} }

type fakeDoc struct {
	lib       *fakeLibrary
	name      string
	size      int64
	pages     []fakePage
	encrypted bool
	locked    bool
	closed    bool
}

func (d *fakeDoc) Name() string { return d.name }
func (d *fakeDoc) PageCount() int { return len(d.pages) }
func (d *fakeDoc) Encrypted() bool { return d.encrypted }
func (d *fakeDoc) Locked() bool { return d.locked }
func (d *fakeDoc) Size() int64 { return d.size }

func (d *fakeDoc) page(i int) (fakePage, error) {
	if d.locked {
		return fakePage{}, document.ErrLocked
	}
	if i < 0 || i >= len(d.pages) {
		return fakePage{}, fmt.Errorf("page index %d out of range", i)
	}
	return d.pages[i], nil
}

func (d *fakeDoc) PageBox(i int) (document.Box, error) {
	pg, err := d.page(i)
	if err != nil {
		return document.Box{}, err
	}
	return document.Box{Width: pg.Width, Height: pg.Height}, nil
}

func (d *fakeDoc) PageText(i int) (string, error) {
	pg, err := d.page(i)
	if err != nil {
		return "", err
	}
	if pg.TextErr != "" {
		return "", errors.New(pg.TextErr)
	}
	return pg.Text, nil
}

func (d *fakeDoc) Close() error {
	if !d.closed {
		d.closed = true
		d.lib.closed++
	}
	return nil
}

type fakeWriter struct {
	file fakeFile
}

func (w *fakeWriter) Append(p document.Placement) error {
	doc, ok := p.Page.Doc.(*fakeDoc)
	if !ok {
		return fmt.Errorf("unexpected document %T", p.Page.Doc)
	}
	pg, err := doc.page(p.Page.Index)
	if err != nil {
		return err
	}
	pg.Rotate = (pg.Rotate + p.Rotate) % 360
	if p.Under != nil {
		sd := p.Under.Page.Doc.(*fakeDoc)
		sp, err := sd.page(p.Under.Page.Index)
		if err != nil {
			return err
		}
		pg.Under = &fakeStamp{ID: sp.ID, TX: p.Under.TX, TY: p.Under.TY}
	}
	w.file.Pages = append(w.file.Pages, pg)
	return nil
}

func (w *fakeWriter) PageCount() int { return len(w.file.Pages) }

func (w *fakeWriter) Encrypt(user, owner string) {
	if owner == "" {
		owner = user
	}
	w.file.Encrypted = true
	w.file.Password = user
	w.file.Owner = owner
}

func (w *fakeWriter) WriteTo(dst io.Writer) (int64, error) {
	if len(w.file.Pages) == 0 {
		return 0, document.ErrEmptyOutput
	}
	raw, err := json.Marshal(w.file)
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(raw)
	return int64(n), err
}

// writeFake stores f at dir/name and returns the path.
func writeFake(t *testing.T, dir, name string, f fakeFile) string {
	t.Helper()
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// pagesOf builds n pages with IDs prefix1..prefixN sized w x h.
func pagesOf(prefix string, n int, w, h float64) []fakePage {
	pages := make([]fakePage, n)
	for i := range pages {
		pages[i] = fakePage{ID: fmt.Sprintf("%s%d", prefix, i+1), Width: w, Height: h}
	}
	return pages
}

func readFake(t *testing.T, path string) fakeFile {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	var f fakeFile
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	return f
}

func ids(f fakeFile) []string {
	out := make([]string, len(f.Pages))
	for i, p := range f.Pages {
		out[i] = p.ID
	}
	return out
}
