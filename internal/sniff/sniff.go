// Package sniff classifies uploads by their leading bytes. Client supplied
// names and Content-Type headers are never consulted.
package sniff

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"gallery/internal/logging"
)

// HeaderSize is how many leading bytes are inspected. Signatures of every
// accepted type fit well within it.
const HeaderSize = 261

// ErrRejected is wrapped by every classification failure: unknown signature
// and disallowed type alike.
var ErrRejected = errors.New("invalid file type")

// allowedExtensions is the fixed allow-list, keyed by lower-case extension.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// Kind is the detected type of a stream.
type Kind struct {
	MIME string
	// Extension is canonical, lower case and has no leading dot.
	Extension string
}

// Detect reads up to HeaderSize bytes from rs, seeks back to where rs was
// positioned before the call and classifies the header. ok is false when no
// signature is recognized.
func Detect(rs io.ReadSeeker) (kind Kind, ok bool, err error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return Kind{}, false, err
	}
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(rs, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Kind{}, false, err
	}
	// Rewind so the caller can still save the whole stream.
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return Kind{}, false, err
	}

	return classify(header[:n])
}

func classify(header []byte) (Kind, bool, error) {
	if len(header) == 0 {
		return Kind{}, false, nil
	}
	mt := mimetype.Detect(header)
	ext := strings.ToLower(strings.TrimPrefix(mt.Extension(), "."))
	if ext == "" {
		return Kind{}, false, nil
	}
	mime, _, _ := strings.Cut(mt.String(), ";")
	return Kind{MIME: mime, Extension: ext}, true, nil
}

// Image returns the detected kind of rs if it is one of the accepted image
// types. The stream position is restored in every case.
func Image(rs io.ReadSeeker) (Kind, error) {
	kind, ok, err := Detect(rs)
	if err != nil {
		return Kind{}, err
	}
	if !ok {
		logging.Debug().Msg("sniff: cannot guess file type")
		return Kind{}, fmt.Errorf("%w: unrecognized signature", ErrRejected)
	}

	logging.Debug().Str("mime", kind.MIME).Str("extension", kind.Extension).Msg("sniff: guessed file type")

	if !Allowed(kind.Extension) {
		logging.Warn().Str("extension", kind.Extension).Msg("sniff: type not in allow-list")
		return Kind{}, fmt.Errorf("%w: type %q not allowed", ErrRejected, kind.Extension)
	}
	return kind, nil
}

// Allowed reports whether ext (with or without a leading dot, any case) is on
// the image allow-list.
func Allowed(ext string) bool {
	return allowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}
