package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(PageRange, "Invalid page number: '9' for PDF with 3 pages (1-indexed).")
	want := "PAGE_RANGE_ERROR::Invalid page number: '9' for PDF with 3 pages (1-indexed)."
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IO, cause, "Error writing output PDF")

	if !errors.Is(err, cause) {
		t.Fatal("wrapped error does not unwrap to its cause")
	}
	if got, want := err.Message, "Error writing output PDF: disk full"; got != want {
		t.Errorf("Message = %q, want %q", got, want)
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	inner := New(DecryptionFailed, "wrong password")
	outer := fmt.Errorf("decrypt: %w", inner)

	if got := KindOf(outer); got != DecryptionFailed {
		t.Errorf("KindOf() = %v, want %v", got, DecryptionFailed)
	}
	if !Is(outer, DecryptionFailed) {
		t.Error("Is() = false, want true")
	}
	if KindOf(errors.New("plain")) != Unclassified {
		t.Error("plain error should be Unclassified")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"not found", NotFound("Input file not found: %s", "a.pdf"), 4},
		{"decryption", New(DecryptionFailed, "bad password"), 7},
		{"unreadable", Unreadable(errors.New("xref"), "Error reading PDF '%s'", "a.pdf"), 5},
		{"page range", New(PageRange, "bad"), 8},
		{"io", New(IO, "write"), 3},
		{"internal", Internal(errors.New("boom"), "Unexpected error"), 6},
		{"unexpected", New(Unexpected, "no output"), 6},
		{"invalid argument", New(InvalidArgument, "missing --angle"), 2},
		{"file processing", New(FileProcessing, "empty PDF"), 2},
		{"unclassified", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLine(t *testing.T) {
	if got, want := Line(New(InvalidArgument, "x")), "INVALID_ARGUMENT::x"; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
	if got, want := Line(errors.New("boom")), "UNEXPECTED_ERROR::An unexpected error occurred: boom"; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}
