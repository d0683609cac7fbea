package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-book-catalog/models"
)

func sampleBook(n string) *models.Book {
	return &models.Book{
		URL:          "http://example.test/catalogue/book-" + n + "/index.html",
		UPC:          "upc-" + n,
		Title:        "Book " + n,
		PriceInclTax: "£10.00",
		PriceExclTax: "£10.00",
		Availability: "In stock (5 available)",
		Description:  "A description.",
		Category:     "Travel",
		RatingText:   "Three",
		ImageURL:     "example.test/media/cache/book-" + n + ".jpg",
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travel.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.Book{sampleBook("1")}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "URL" || records[0][3] != "Price (incl. tax)" || records[0][9] != "Image URL" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[0] != "http://example.test/catalogue/book-1/index.html" {
		t.Errorf("url column = %q", row[0])
	}
	if row[3] != "£10.00" {
		t.Errorf("incl-tax column = %q", row[3])
	}
	if row[8] != "Three" {
		t.Errorf("rating column = %q", row[8])
	}
}

func TestCSVWriterIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travel.csv")
	books := []*models.Book{sampleBook("1"), sampleBook("2"), sampleBook("3")}

	writeOnce := func() []byte {
		writer, err := NewCSVWriter(path)
		if err != nil {
			t.Fatalf("create csv writer: %v", err)
		}
		if err := writer.Write(books); err != nil {
			t.Fatalf("write csv: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("close csv: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read csv: %v", err)
		}
		return data
	}

	first := writeOnce()
	second := writeOnce()
	if !bytes.Equal(first, second) {
		t.Fatalf("re-exporting identical records should produce a byte-identical file")
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "travel.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write([]*models.Book{sampleBook("1")}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.Book
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.UPC != "upc-1" {
			t.Fatalf("decoded UPC = %q", decoded.UPC)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "travel.csv")
	jsonPath := filepath.Join(dir, "travel.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]*models.Book{sampleBook("1")}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
