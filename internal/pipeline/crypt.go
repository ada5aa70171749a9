package pipeline

import (
	"context"
	"path/filepath"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
)

// corruptAfterUnlockSize is the source size above which a document that
// unlocks to zero pages is reported as corrupted.
const corruptAfterUnlockSize = 1024

// Encrypt copies every page and password protects the output. An empty owner
// password defaults to the user password.
func (p *Pipeline) Encrypt(ctx context.Context, input, output, userPassword, ownerPassword string) error {
	if userPassword == "" {
		return failure.New(failure.InvalidArgument, "Encrypt operation requires a user password.")
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	doc, err := p.open(input, "")
	if err != nil {
		return err
	}
	defer doc.Close()

	name := filepath.Base(input)
	if doc.Encrypted() {
		return failure.Newf(failure.FileProcessing,
			"Input PDF '%s' is already encrypted. Decrypt it first if you want to re-encrypt with different settings.", name)
	}
	if doc.PageCount() == 0 {
		return failure.Newf(failure.FileProcessing, "Cannot encrypt an empty PDF: '%s'.", name)
	}

	w := p.lib.NewWriter()
	if err := p.copyAll(w, doc); err != nil {
		return err
	}
	w.Encrypt(userPassword, ownerPassword)
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Encrypted document.", "input", input, "output", output, "pageCount", w.PageCount(),
		"ownerPasswordSet", ownerPassword != "")
	return nil
}

// Decrypt writes an unprotected copy of input. Input that is not encrypted
// passes through unchanged.
func (p *Pipeline) Decrypt(ctx context.Context, input, output, password string) error {
	if password == "" {
		return failure.New(failure.InvalidArgument, "Decrypt operation requires a password.")
	}
	if err := cancelled(ctx); err != nil {
		return err
	}
	doc, err := p.open(input, password)
	if err != nil {
		return err
	}
	defer doc.Close()

	name := filepath.Base(input)
	if doc.Locked() {
		return failure.Newf(failure.DecryptionFailed,
			"Password was not accepted for decryption of PDF '%s'.", name)
	}
	if !doc.Encrypted() && doc.PageCount() == 0 && doc.Size() > 0 {
		return failure.Newf(failure.FileProcessing,
			"Input PDF '%s' is not encrypted but appears empty or unreadable.", name)
	}
	if doc.PageCount() == 0 && doc.Size() > corruptAfterUnlockSize {
		return failure.Newf(failure.FileProcessing,
			"PDF '%s' became empty after password attempt, possibly corrupted.", name)
	}

	w := p.lib.NewWriter()
	if err := p.copyAll(w, doc); err != nil {
		return err
	}
	if err := p.save(ctx, w, output); err != nil {
		return err
	}
	p.logger.Info("Decrypted document.", "input", input, "output", output, "wasEncrypted", doc.Encrypted(),
		"pageCount", w.PageCount())
	return nil
}
