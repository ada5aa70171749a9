package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// nativeImages are imported by pdfcpu as they are; anything else is decoded
// and re-encoded as PNG first.
var nativeImages = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// OpenImage implements Library. The image becomes the only page of a new PDF
// whose page size equals the image size.
func (l *PDFLibrary) OpenImage(path string) (Document, error) {
	src, err := l.imageSource(path)
	if err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(l.tempDir, "pdftool-overlay-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := out.Name()
	cleanup := func() { os.Remove(tmp) }

	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImages(nil, out, []io.Reader{src}, imp, configuration("")); err != nil {
		out.Close()
		cleanup()
		return nil, fmt.Errorf("failed to convert image %s: %w", filepath.Base(path), err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write converted image %s: %w", filepath.Base(path), err)
	}

	doc, err := l.Open(tmp, "")
	if err != nil {
		cleanup()
		return nil, err
	}
	pd := doc.(*pdfDocument)
	pd.own(tmp)
	pd.path = tmp
	l.logger.Debug("Converted image to single-page document.", "image", path, "pageCount", pd.pageCount)
	return &imageDocument{pdfDocument: pd, name: filepath.Base(path)}, nil
}

func (l *PDFLibrary) imageSource(path string) (io.Reader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if nativeImages[strings.ToLower(filepath.Ext(path))] {
		return bytes.NewReader(raw), nil
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to re-encode %s image %s: %w", format, filepath.Base(path), err)
	}
	return &buf, nil
}

// imageDocument reports the image's own name rather than the temp file's.
type imageDocument struct {
	*pdfDocument
	name string
}

func (d *imageDocument) Name() string { return d.name }
