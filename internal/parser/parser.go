package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"research-assistant/internal/config"
	"research-assistant/internal/models"
)

// ErrUnsupportedFormat is returned for any extension the loader has no parser for.
var ErrUnsupportedFormat = errors.New("unsupported file format")

const (
	defaultPageNumber = 1
	uploadIDLength    = 16
)

type Loader struct {
	officeFormats bool
}

func NewLoader(cfg *config.Config) *Loader {
	l := &Loader{}
	if cfg != nil {
		l.officeFormats = cfg.RAG.OfficeFormats
	}
	return l
}

// Supported reports whether the loader can parse files with the extension of name.
func (l *Loader) Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt":
		return true
	case ".docx", ".xlsx", ".xlsm":
		return l.officeFormats
	}
	return false
}

// LoadUpload stages an uploaded file to a temp path and parses it into document records.
func (l *Loader) LoadUpload(name string, r io.Reader) (*models.Upload, error) {
	if !l.Supported(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", name, err)
	}

	path, err := Stage(name, data)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	docs, err := l.parse(path, filepath.Base(name))
	if err != nil {
		return nil, err
	}

	upload := &models.Upload{
		ID:        UploadID(data),
		Name:      filepath.Base(name),
		Size:      len(data),
		Documents: docs,
	}
	log.Debug().Str("file", upload.Name).Str("upload_id", upload.ID).Int("documents", len(docs)).Msg("Loaded upload")
	return upload, nil
}

// LoadFile parses a file that already lives on disk.
func (l *Loader) LoadFile(path string) (*models.Upload, error) {
	if !l.Supported(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	docs, err := l.parse(path, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return &models.Upload{
		ID:        UploadID(data),
		Name:      filepath.Base(path),
		Size:      len(data),
		Documents: docs,
	}, nil
}

// Stage writes data to a uniquely named temp file that keeps the original extension.
func Stage(name string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return f.Name(), nil
}

// UploadID is the identity of an upload: a prefix of the SHA-256 of its bytes.
func UploadID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:uploadIDLength]
}

func (l *Loader) parse(path, source string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return parsePDF(path, source)
	case ".txt":
		return parseText(path, source)
	case ".docx":
		return parseDOCX(path, source)
	case ".xlsx":
		return parseXLSX(path, source)
	case ".xlsm":
		return parseWorkbook(path, source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// parsePDF yields one record per page. Null pages are skipped; each record keeps its own page number.
func parsePDF(path, source string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", source, err)
	}

	var docs []models.Document
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d of %s: %w", i, source, err)
		}
		docs = append(docs, models.Document{
			Content:    pageText,
			Source:     source,
			PageNumber: i,
		})
	}
	return docs, nil
}

func parseText(path, source string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Document{{
		Content:    string(data),
		Source:     source,
		PageNumber: defaultPageNumber, // TXT has no pages
	}}, nil
}
