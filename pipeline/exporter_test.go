package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-book-catalog/config"
	"github.com/aluiziolira/go-book-catalog/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CSVDir = filepath.Join(dir, "csv")
	cfg.ImagesDir = filepath.Join(dir, "images")
	return cfg
}

func TestProvisionClearsImages(t *testing.T) {
	cfg := testConfig(t)

	stale := filepath.Join(cfg.ImagesDir, "Old_Category")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("seed stale image dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stale, "old.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed stale image: %v", err)
	}
	keep := filepath.Join(cfg.CSVDir, "travel.csv")
	if err := os.MkdirAll(cfg.CSVDir, 0o755); err != nil {
		t.Fatalf("seed csv dir: %v", err)
	}
	if err := os.WriteFile(keep, []byte("old export"), 0o644); err != nil {
		t.Fatalf("seed csv file: %v", err)
	}

	exporter := NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		t.Fatalf("provision: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale image dir survived provisioning")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("csv file should survive provisioning: %v", err)
	}
	if _, err := os.Stat(cfg.ImagesDir); err != nil {
		t.Errorf("images dir missing after provisioning: %v", err)
	}
}

func TestProvisionCategorySanitizesName(t *testing.T) {
	cfg := testConfig(t)
	exporter := NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		t.Fatalf("provision: %v", err)
	}

	dir, err := exporter.ProvisionCategory(models.Category{Name: "Science Fiction"})
	if err != nil {
		t.Fatalf("provision category: %v", err)
	}
	want := filepath.Join(cfg.ImagesDir, "Science_Fiction")
	if dir != want {
		t.Fatalf("category dir = %q, want %q", dir, want)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("category dir not created: %v", err)
	}
}

func TestExportCategoryDropsInvalidAndDuplicate(t *testing.T) {
	cfg := testConfig(t)
	exporter := NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		t.Fatalf("provision: %v", err)
	}

	cat := models.Category{Name: "Travel"}
	invalid := sampleBook("2")
	invalid.Title = ""
	records := []*models.Book{
		sampleBook("1"),
		invalid,
		sampleBook("1"), // duplicate source URL
		sampleBook("3"),
	}
	if err := exporter.ExportCategory(cat, records); err != nil {
		t.Fatalf("export category: %v", err)
	}

	data, err := os.ReadFile(exporter.TablePath(cat))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 3 { // header + 2 surviving records
		t.Fatalf("table lines=%d, want 3", lines)
	}
}

func TestExportCategoryDualFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputFormat = "dual"
	exporter := NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		t.Fatalf("provision: %v", err)
	}

	cat := models.Category{Name: "Travel"}
	if err := exporter.ExportCategory(cat, []*models.Book{sampleBook("1")}); err != nil {
		t.Fatalf("export category: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.CSVDir, "Travel.csv")); err != nil {
		t.Errorf("csv table missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.CSVDir, "Travel.jsonl")); err != nil {
		t.Errorf("jsonl table missing: %v", err)
	}
}

func TestExportCategoryValidRecords(t *testing.T) {
	cfg := testConfig(t)
	exporter := NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		t.Fatalf("provision: %v", err)
	}

	cat := models.Category{Name: "Travel"}
	if err := exporter.ExportCategory(cat, []*models.Book{sampleBook("1")}); err != nil {
		t.Fatalf("exporting valid records should succeed: %v", err)
	}

	data, err := os.ReadFile(exporter.TablePath(cat))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("exported table is empty")
	}
}

func TestExportCategoryDedupeScopedPerCategory(t *testing.T) {
	cfg := testConfig(t)
	exporter := NewExporter(cfg)
	if err := exporter.Provision(); err != nil {
		t.Fatalf("provision: %v", err)
	}

	// the same item listed under two categories stays in both tables
	shared := sampleBook("1")
	for _, name := range []string{"Travel", "Mystery"} {
		cat := models.Category{Name: name}
		if err := exporter.ExportCategory(cat, []*models.Book{shared}); err != nil {
			t.Fatalf("export %s: %v", name, err)
		}
		data, err := os.ReadFile(exporter.TablePath(cat))
		if err != nil {
			t.Fatalf("read %s table: %v", name, err)
		}
		lines := 0
		for _, b := range data {
			if b == '\n' {
				lines++
			}
		}
		if lines != 2 { // header + the shared record
			t.Fatalf("%s table lines=%d, want 2", name, lines)
		}
	}
}
