package analysis

import (
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/medreport-ai/internal/domain/analysis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeUpload(t *testing.T, dir, name string, content []byte) domain.UploadedFile {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	kind, contentType := domain.Classify(name)
	return domain.UploadedFile{
		OriginalName: name,
		SizeBytes:    int64(len(content)),
		StoragePath:  path,
		Kind:         kind,
		ContentType:  contentType,
	}
}

func TestExtractAllImage(t *testing.T) {
	dir := t.TempDir()
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x01, 0x02}
	files := []domain.UploadedFile{writeUpload(t, dir, "scan.png", raw)}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	require.Len(t, out.Files, 1)
	assert.Equal(t, domain.KindImage, out.Files[0].Kind)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), out.Files[0].Data)
	assert.Empty(t, out.Files[0].Text)
	assert.Equal(t, 1, out.ImageCount())
	// images never appear in the text buffer
	assert.Empty(t, out.CombinedText)
}

func TestExtractAllUnreadableImageIsSkipped(t *testing.T) {
	files := []domain.UploadedFile{{
		OriginalName: "gone.png",
		StoragePath:  filepath.Join(t.TempDir(), "does-not-exist.png"),
		Kind:         domain.KindImage,
		ContentType:  "image/png",
	}}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	assert.Empty(t, out.Files)
	assert.Zero(t, out.ImageCount())
}

func TestExtractAllBrokenPDFEmitsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	files := []domain.UploadedFile{writeUpload(t, dir, "report.pdf", []byte("not a real pdf"))}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	require.Len(t, out.Files, 1)
	assert.Equal(t, domain.KindPDF, out.Files[0].Kind)
	assert.Equal(t, PDFFailurePlaceholder, out.Files[0].Text)
	assert.Contains(t, out.CombinedText, "=== PDF Content from report.pdf ===")
	assert.Contains(t, out.CombinedText, PDFFailurePlaceholder)
}

func TestExtractAllPlainText(t *testing.T) {
	dir := t.TempDir()
	files := []domain.UploadedFile{writeUpload(t, dir, "notes.txt", []byte("patient reports chest pain"))}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	require.Len(t, out.Files, 1)
	assert.Equal(t, "patient reports chest pain", out.Files[0].Text)
	assert.Contains(t, out.CombinedText, "=== Text Content from notes.txt ===")
	assert.Contains(t, out.CombinedText, "patient reports chest pain")
}

func TestExtractAllStructuredTextIsReadAsText(t *testing.T) {
	dir := t.TempDir()
	payload := `{"hemoglobin": 13.2, "notes": "patient reports chest pain"}`
	files := []domain.UploadedFile{writeUpload(t, dir, "labs.json", []byte(payload))}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	require.Len(t, out.Files, 1)
	assert.Equal(t, payload, out.Files[0].Text)
	assert.Contains(t, out.CombinedText, "labs.json")
	assert.Contains(t, out.CombinedText, `"hemoglobin": 13.2`)
}

func TestExtractAllBinaryUnknownIsDroppedSilently(t *testing.T) {
	dir := t.TempDir()
	files := []domain.UploadedFile{
		// invalid UTF-8
		writeUpload(t, dir, "imaging.dcm", []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00, 0x10}),
		// valid UTF-8 but pure control bytes
		writeUpload(t, dir, "raw.bin", []byte{0x00, 0x01, 0x02, 0x03}),
	}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	assert.Empty(t, out.Files)
	assert.Empty(t, out.CombinedText)
}

func TestExtractAllPreservesUploadOrder(t *testing.T) {
	dir := t.TempDir()
	files := []domain.UploadedFile{
		writeUpload(t, dir, "first.txt", []byte("first file")),
		writeUpload(t, dir, "broken.pdf", []byte("bad pdf")),
		writeUpload(t, dir, "second.txt", []byte("second file")),
	}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	require.Len(t, out.Files, 3)
	assert.Equal(t, "first.txt", out.Files[0].Name)
	assert.Equal(t, "broken.pdf", out.Files[1].Name)
	assert.Equal(t, "second.txt", out.Files[2].Name)

	firstIdx := strings.Index(out.CombinedText, "first.txt")
	pdfIdx := strings.Index(out.CombinedText, "broken.pdf")
	secondIdx := strings.Index(out.CombinedText, "second.txt")
	assert.True(t, firstIdx < pdfIdx && pdfIdx < secondIdx)
}

func TestExtractAllOneBadFileNeverAbortsBatch(t *testing.T) {
	dir := t.TempDir()
	files := []domain.UploadedFile{
		{OriginalName: "gone.png", StoragePath: filepath.Join(dir, "missing.png"), Kind: domain.KindImage, ContentType: "image/png"},
		writeUpload(t, dir, "notes.txt", []byte("still usable")),
	}

	out := NewExtractor(discardLogger()).ExtractAll(files)

	require.Len(t, out.Files, 1)
	assert.Equal(t, "notes.txt", out.Files[0].Name)
}
