package reader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/strugglingman/rag-chatbot/internal/domain"
)

// textMax caps extracted text per non-paginated document.
const textMax = 400000

// Page is extracted text with its page number. Page 0 means the source has
// no pagination.
type Page struct {
	Number int
	Text   string
}

// Reader extracts plain text from uploaded documents.
type Reader struct{}

// New creates a document reader.
func New() *Reader {
	return &Reader{}
}

// Read extracts text from the file at path. PDF sources yield one Page per
// document page (empty pages skipped); all other supported formats yield a
// single Page numbered 0.
func (r *Reader) Read(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".pdf":
		return readPDF(path)
	case ".csv":
		return readCSV(path)
	case ".json":
		return readJSON(path)
	case ".txt", ".md":
		return readPlain(path)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFile, ext)
	}
}

func readPDF(path string) ([]Page, error) {
	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

func readCSV(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var lines []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		lines = append(lines, strings.Join(row, ","))
	}

	return singlePage(strings.Join(lines, "\n")), nil
}

func readJSON(path string) ([]Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	// Pretty-print valid JSON so chunk boundaries fall on structure, keep
	// the raw bytes when the file does not parse.
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return singlePage(string(raw)), nil
	}
	return singlePage(buf.String()), nil
}

func readPlain(path string) ([]Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return singlePage(string(raw)), nil
}

func singlePage(text string) []Page {
	if len(text) > textMax {
		text = text[:textMax]
	}
	if text == "" {
		return nil
	}
	return []Page{{Number: 0, Text: text}}
}
