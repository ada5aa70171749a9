// Package document is the boundary between the operation pipeline and the PDF
// codec. The pipeline only sees the Library, Document and Writer interfaces;
// PDFLibrary realizes them with pdfcpu, tabula and golang.org/x/image.
package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrWrongPassword is returned by Library.Open when a password was supplied
	// and the document rejected it.
	ErrWrongPassword = errors.New("document: incorrect password")
	// ErrLocked is returned when pages of an encrypted, not yet unlocked document
	// are accessed.
	ErrLocked = errors.New("document: password protected")
)

// Box is the size of a page boundary box in points.
type Box struct {
	Width  float64
	Height float64
}

// Document is a read-only handle on an opened paginated file.
type Document interface {
	// Name is the base name of the source, used in user facing messages.
	Name() string
	// PageCount is 0 for locked documents.
	PageCount() int
	// Encrypted reports whether the source file carries encryption.
	Encrypted() bool
	// Locked reports an encrypted document that was opened without a password
	// and whose pages are therefore unavailable.
	Locked() bool
	// Size is the byte size of the source file.
	Size() int64
	// PageBox is the displayed size of a page: a /Rotate of 90 or 270 swaps
	// width and height. Overlay stamps are positioned in the same frame.
	PageBox(index int) (Box, error)
	PageText(index int) (string, error)
	Close() error
}

// PageRef addresses a page through its source document.
type PageRef struct {
	Doc   Document
	Index int
}

// Stamp is a page composited underneath an output page, its lower-left corner
// translated by (TX, TY) points.
type Stamp struct {
	Page PageRef
	TX   float64
	TY   float64
}

// Placement is one page of an output document.
type Placement struct {
	Page PageRef
	// Rotate is an additional clockwise rotation in degrees, a multiple of 90.
	Rotate int
	// Under, when set, is drawn first; Page is drawn on top of it.
	Under *Stamp
}

// Writer accumulates output pages and serializes them once.
type Writer interface {
	Append(p Placement) error
	PageCount() int
	// Encrypt password protects the output. An empty owner password defaults to
	// the user password.
	Encrypt(userPassword, ownerPassword string)
	WriteTo(w io.Writer) (int64, error)
}

// Library opens documents and creates writers.
type Library interface {
	// Open reads the document at path. An encrypted document opened with an
	// empty password is returned locked instead of failing.
	Open(path, password string) (Document, error)
	// OpenImage converts a raster image into a one-page document sized to it.
	OpenImage(path string) (Document, error)
	NewWriter() Writer
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether path names a raster image by its extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}
