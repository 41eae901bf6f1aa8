package analysis

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse content classification driving extraction.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindText  Kind = "text"
	// KindOther is attempted as plain text downstream, best effort.
	KindOther Kind = "other"
)

// ContentTypeOctetStream is the fallback tag for unrecognized extensions.
const ContentTypeOctetStream = "application/octet-stream"

var extensionTypes = map[string]struct {
	kind        Kind
	contentType string
}{
	".pdf":  {KindPDF, "application/pdf"},
	".jpg":  {KindImage, "image/jpeg"},
	".jpeg": {KindImage, "image/jpeg"},
	".png":  {KindImage, "image/png"},
	".dcm":  {KindOther, "application/dicom"},
	".txt":  {KindText, "text/plain"},
}

// Classify maps a filename to its kind and canonical content-type tag using
// the extension alone. Pure function; unrecognized extensions fall through to
// KindOther with a generic octet-stream tag and are still accepted.
func Classify(filename string) (Kind, string) {
	ext := strings.ToLower(filepath.Ext(filename))
	if entry, ok := extensionTypes[ext]; ok {
		return entry.kind, entry.contentType
	}
	return KindOther, ContentTypeOctetStream
}

// Label returns the human-readable kind label used in content delimiters.
func (k Kind) Label() string {
	switch k {
	case KindPDF:
		return "PDF"
	case KindImage:
		return "Image"
	default:
		// KindOther reaches the prompt only after a successful text read.
		return "Text"
	}
}
