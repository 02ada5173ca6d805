package utils

import (
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mogaika/xsg_export/config"
)

var unsafeNameChars = strings.NewReplacer(
	`"`, "_",
	"<", "_",
	">", "_",
	"&", "_",
	"\n", "_",
	"\r", "_",
	"\t", "_",
)

// SafeName makes an object name usable as an attribute value.
func SafeName(name string) string {
	return unsafeNameChars.Replace(norm.NFC.String(name))
}

// FileName makes an object name usable as a path element.
func FileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(SafeName(name))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// EncodingWriter wraps w with the configured output charmap. Runes the
// charmap lacks become its replacement byte. Close flushes the encoder
// and leaves w open.
func EncodingWriter(w io.Writer) io.WriteCloser {
	if cm := config.GetEncoding(); cm != nil {
		return transform.NewWriter(w, encoding.ReplaceUnsupported(cm.NewEncoder()))
	}
	return nopCloser{w}
}
