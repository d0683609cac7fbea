package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tableHeader = "URL,UPC,Title,Price (incl. tax),Price (excl. tax),Availability,Description,Category,Review Rating,Image URL\n"

func writeTable(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	content := tableHeader + strings.Join(rows, "\n")
	if len(rows) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
}

func tableRow(title, price, rating string) string {
	return strings.Join([]string{
		"http://example.test/catalogue/" + title + "/index.html",
		"upc-" + title,
		title,
		price,
		price,
		"In stock (3 available)",
		"desc",
		"Travel",
		rating,
		"example.test/media/" + title + ".jpg",
	}, ",")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "Travel.csv",
		tableRow("a", "£10.00", "Two"),
		tableRow("b", "£20.00", "Four"),
	)
	writeTable(t, dir, "Mystery.csv",
		tableRow("c", "£5.00", "Five"),
		tableRow("d", "not-a-price", "One"),
	)

	summaries, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries=%d, want 2", len(summaries))
	}

	mystery, travel := summaries[0], summaries[1]
	if mystery.Name != "Mystery" || travel.Name != "Travel" {
		t.Fatalf("summaries not sorted by name: %q, %q", summaries[0].Name, summaries[1].Name)
	}

	if travel.Count != 2 {
		t.Errorf("Travel count=%d, want 2", travel.Count)
	}
	if math.Abs(travel.AveragePrice-15.0) > 1e-9 {
		t.Errorf("Travel avg price=%f, want 15.00", travel.AveragePrice)
	}
	if math.Abs(travel.AverageRating-3.0) > 1e-9 {
		t.Errorf("Travel avg rating=%f, want 3.0", travel.AverageRating)
	}

	if mystery.Count != 1 {
		t.Errorf("Mystery count=%d, want 1", mystery.Count)
	}
	if math.Abs(mystery.AveragePrice-5.0) > 1e-9 {
		t.Errorf("Mystery avg price=%f, want 5.00", mystery.AveragePrice)
	}
	if mystery.Skipped != 1 {
		t.Errorf("Mystery skipped=%d, want 1", mystery.Skipped)
	}
}

func TestLoadEmptyTable(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "Poetry.csv")

	summaries, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries=%d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.Count != 0 || s.AveragePrice != 0 || s.AverageRating != 0 {
		t.Errorf("empty table summary = %+v, want zeroes", s)
	}
}

func TestLoadZeroByteTable(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "Travel.csv", tableRow("a", "£10.00", "Two"))
	if err := os.WriteFile(filepath.Join(dir, "Poetry.csv"), nil, 0o644); err != nil {
		t.Fatalf("write empty table: %v", err)
	}

	summaries, err := Load(dir)
	if err != nil {
		t.Fatalf("load with zero-byte table: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries=%d, want 2", len(summaries))
	}
	poetry := summaries[0]
	if poetry.Name != "Poetry" || poetry.Count != 0 || poetry.Skipped != 0 {
		t.Errorf("zero-byte table summary = %+v, want empty Poetry", poetry)
	}
}

func TestLoadIgnoresNonCSV(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "Travel.csv", tableRow("a", "£10.00", "Two"))
	if err := os.WriteFile(filepath.Join(dir, "Travel.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write jsonl: %v", err)
	}

	summaries, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries=%d, want 1", len(summaries))
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"£45.17", 45.17, false},
		{"Â£45.17", 45.17, false},
		{" £0.00 ", 0, false},
		{"free", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := ParsePrice(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParsePrice(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q): %v", tc.in, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParsePrice(%q) = %f, want %f", tc.in, got, tc.want)
		}
	}
}
