package assetsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"recorder-scraper/lib/scrapers/recorder"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const ResultsFile = "search_results.csv"

var ResultsHeader = []string{
	"Item#",
	"Document ID#",
	"Recording Date",
	"Document Type",
	"Document Name",
	"Name Type",
	"Document",
}

// FilesystemSink writes records to <dir>/search_results.csv and every page to
// <dir>/<id>/<id>_page_<n>.<ext>. It is safe for concurrent use.
type FilesystemSink struct {
	dir string

	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
}

// NewFilesystemSink starts a fresh results file under dir.
func NewFilesystemSink(dir string) (*FilesystemSink, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, ResultsFile))
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	err = w.Write(ResultsHeader)
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FilesystemSink{dir: dir, file: f, csv: w}, nil
}

func (s *FilesystemSink) PutRecord(ctx context.Context, record recorder.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.csv.Write([]string{
		record.Item,
		record.DocumentID,
		record.RecordedText,
		record.DocumentType,
		record.DocumentName,
		record.NameType,
		record.ViewerLink,
	})
	if err != nil {
		return err
	}
	s.csv.Flush()
	return s.csv.Error()
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/tiff":      ".tif",
	"image/bmp":       ".bmp",
	"application/pdf": ".pdf",
}

// Extension maps a content type onto a file extension, ".bin" when unknown.
func Extension(contentType string) string {
	ext, ok := extensions[contentType]
	if ok {
		return ext
	}
	known, err := mime.ExtensionsByType(contentType)
	if err == nil && len(known) > 0 {
		return known[0]
	}
	return ".bin"
}

// SafeName turns a portal document id into a single path component. Path
// separators, characters Windows rejects, control characters and '%' itself
// are written as %XX, so two different ids never share a directory. A name
// made only of dots is escaped whole.
func SafeName(documentID string) string {
	id := strings.TrimSpace(documentID)
	if id == "" {
		return "_"
	}

	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(`/\:*?"<>|%`, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	name := b.String()
	if strings.Trim(name, ".") == "" {
		name = strings.ReplaceAll(name, ".", "%2E")
	}
	return name
}

// PagePath is where PutPage writes a page.
func (s *FilesystemSink) PagePath(page recorder.PageAsset) string {
	name := SafeName(page.DocumentID)
	return filepath.Join(
		s.dir, name,
		fmt.Sprintf("%s_page_%d%s", name, page.Page, Extension(page.ContentType)),
	)
}

func (s *FilesystemSink) PutPage(ctx context.Context, page recorder.PageAsset) error {
	_, span := tracer.Start(ctx, "filesystem:PutPage")
	defer span.End()

	path := s.PagePath(page)
	span.SetAttributes(attribute.String("path", path))

	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create document directory")
		return err
	}
	err = os.WriteFile(path, page.Content, 0644)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write page")
		return err
	}
	return nil
}

func (s *FilesystemSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csv.Flush()
	err := s.csv.Error()
	closeErr := s.file.Close()
	if err != nil {
		return err
	}
	return closeErr
}
