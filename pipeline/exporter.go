// Package pipeline is the export sink: it provisions the run's output
// layout, writes each category's records to a tabular file, and drops
// duplicate source URLs within a category's export.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-book-catalog/config"
	"github.com/aluiziolira/go-book-catalog/models"
	"github.com/aluiziolira/go-book-catalog/parser"
)

// OutputWriter defines the interface for one category's output file(s).
type OutputWriter interface {
	Write(books []*models.Book) error
	Close() error
	Validate() error
}

// Exporter writes per-category tables and provisions the image folders.
type Exporter struct {
	cfg *config.Config
}

// NewExporter builds an exporter configured from cfg.
func NewExporter(cfg *config.Config) *Exporter {
	return &Exporter{cfg: cfg}
}

// Provision resets the run's output layout: the images folder loses its
// prior top-level entries, the export folder is created but never cleared
// (tables are overwritten per category by name).
func (e *Exporter) Provision() error {
	entries, err := os.ReadDir(e.cfg.ImagesDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read images dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(e.cfg.ImagesDir, entry.Name())); err != nil {
			return fmt.Errorf("clear images dir: %w", err)
		}
	}

	if err := EnsureDir(e.cfg.ImagesDir); err != nil {
		return err
	}
	return EnsureDir(e.cfg.CSVDir)
}

// ProvisionCategory ensures the category's image folder exists and returns
// its path.
func (e *Exporter) ProvisionCategory(cat models.Category) (string, error) {
	dir := filepath.Join(e.cfg.ImagesDir, parser.SanitizeName(cat.Name))
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// ExportCategory writes one category's records in input order, overwriting
// any prior table of the same name. Invalid records are dropped, and so are
// duplicate source URLs within the category; an item listed under several
// categories stays in each of their tables.
func (e *Exporter) ExportCategory(cat models.Category, records []*models.Book) error {
	seen, err := lru.New[string, struct{}](e.cfg.DedupeMaxSize)
	if err != nil {
		return fmt.Errorf("create dedupe cache: %w", err)
	}

	writer, err := e.newWriter(cat)
	if err != nil {
		return fmt.Errorf("open writer for %s: %w", cat.Name, err)
	}

	rows := make([]*models.Book, 0, len(records))
	for _, book := range records {
		if err := parser.ValidateBook(book); err != nil {
			slog.Warn("dropping invalid record",
				slog.String("category", cat.Name),
				slog.Any("error", err),
			)
			continue
		}
		if found, _ := seen.ContainsOrAdd(book.URL, struct{}{}); found {
			slog.Debug("dropping duplicate record",
				slog.String("category", cat.Name),
				slog.String("url", book.URL),
			)
			continue
		}
		rows = append(rows, book)
	}

	if err := writer.Write(rows); err != nil {
		writer.Close()
		return fmt.Errorf("export %s: %w", cat.Name, err)
	}
	if err := writer.Validate(); err != nil {
		writer.Close()
		return fmt.Errorf("validate export for %s: %w", cat.Name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close export for %s: %w", cat.Name, err)
	}
	return nil
}

// TablePath returns the CSV table path for a category.
func (e *Exporter) TablePath(cat models.Category) string {
	return filepath.Join(e.cfg.CSVDir, parser.SanitizeName(cat.Name)+".csv")
}

func (e *Exporter) newWriter(cat models.Category) (OutputWriter, error) {
	stem := filepath.Join(e.cfg.CSVDir, parser.SanitizeName(cat.Name))
	switch e.cfg.OutputFormat {
	case "json":
		return NewJSONWriter(stem + ".jsonl")
	case "dual":
		return NewDualWriter(stem+".csv", stem+".jsonl")
	default:
		return NewCSVWriter(stem + ".csv")
	}
}
