package analysis

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	domain "github.com/bryanwahyu/medreport-ai/internal/domain/analysis"
)

// PDFFailurePlaceholder is emitted as a file's content when text extraction
// fails; the request still proceeds with whatever else was readable.
const PDFFailurePlaceholder = "Could not extract text from PDF"

// Extraction is the aggregate output of processing one submission's files.
// Files keeps the original upload order; CombinedText is the delimited
// per-file text buffer appended to the prompt.
type Extraction struct {
	Files        []domain.ProcessedFile
	CombinedText string
}

// ImageCount returns how many files were processed as image attachments.
func (e Extraction) ImageCount() int {
	n := 0
	for _, f := range e.Files {
		if f.Kind == domain.KindImage {
			n++
		}
	}
	return n
}

// Extractor turns uploaded files into prompt-ready content, best effort.
// One unreadable file never fails the batch; the goal is to maximize usable
// signal for the model, not to enforce strict validation.
type Extractor struct {
	log *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

// ExtractAll processes every file independently, preserving upload order in
// both the processed list and the combined text buffer.
func (e *Extractor) ExtractAll(files []domain.UploadedFile) Extraction {
	var out Extraction
	var buf strings.Builder

	for _, uf := range files {
		switch uf.Kind {
		case domain.KindImage:
			data, err := os.ReadFile(uf.StoragePath)
			if err != nil {
				e.log.Warn("skipping unreadable image", "file", uf.OriginalName, "error", err)
				continue
			}
			out.Files = append(out.Files, domain.ProcessedFile{
				Name:        uf.OriginalName,
				ContentType: uf.ContentType,
				Kind:        domain.KindImage,
				Data:        base64.StdEncoding.EncodeToString(data),
			})

		case domain.KindPDF:
			text, err := extractPDFText(uf.StoragePath)
			if err != nil {
				e.log.Warn("pdf text extraction failed", "file", uf.OriginalName, "error", err)
				text = PDFFailurePlaceholder
			}
			pf := domain.ProcessedFile{
				Name:        uf.OriginalName,
				ContentType: uf.ContentType,
				Kind:        domain.KindPDF,
				Text:        text,
			}
			out.Files = append(out.Files, pf)
			writeContentBlock(&buf, pf)

		default:
			// Everything else is attempted as UTF-8 text. Binary content
			// is dropped silently but still counts as uploaded.
			data, err := os.ReadFile(uf.StoragePath)
			if err != nil {
				e.log.Debug("skipping unreadable file", "file", uf.OriginalName, "error", err)
				continue
			}
			if !isTextual(data) {
				e.log.Debug("skipping non-text content",
					"file", uf.OriginalName, "detected", mimetype.Detect(data).String())
				continue
			}
			pf := domain.ProcessedFile{
				Name:        uf.OriginalName,
				ContentType: uf.ContentType,
				Kind:        uf.Kind,
				Text:        string(data),
			}
			out.Files = append(out.Files, pf)
			writeContentBlock(&buf, pf)
		}
	}

	out.CombinedText = buf.String()
	return out
}

// isTextual reports whether raw bytes can be fed to the model as text. Valid
// UTF-8 is the rule; the MIME hierarchy walk rejects binary payloads (control
// bytes survive utf8.Valid) while keeping structured text such as JSON, whose
// detected type descends from text/plain.
func isTextual(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

func writeContentBlock(buf *strings.Builder, pf domain.ProcessedFile) {
	fmt.Fprintf(buf, "\n=== %s Content from %s ===\n%s\n", pf.Kind.Label(), pf.Name, pf.Text)
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}
