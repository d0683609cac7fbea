// Package report aggregates exported category tables into per-category
// summaries and renders them as a markdown report.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-book-catalog/models"
	"github.com/aluiziolira/go-book-catalog/parser"
)

// Column positions inside an exported category table.
const (
	colPriceIncl = 3
	colRating    = 8

	minColumns = 10
)

// Load reads every category table in csvDir and computes its summary.
// Summaries come back sorted by category name.
func Load(csvDir string) ([]models.CategorySummary, error) {
	entries, err := os.ReadDir(csvDir)
	if err != nil {
		return nil, fmt.Errorf("read export dir: %w", err)
	}

	var summaries []models.CategorySummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		summary, err := loadTable(filepath.Join(csvDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

func loadTable(path string) (models.CategorySummary, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	summary := models.CategorySummary{Name: name}

	f, err := os.Open(path)
	if err != nil {
		return summary, fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return summary, fmt.Errorf("read table %s: %w", path, err)
	}
	// A zero-byte table from an interrupted run summarizes as empty.
	if len(rows) == 0 {
		return summary, nil
	}

	var (
		priceSum  float64
		ratingSum int
		rated     int
	)
	for _, row := range rows[1:] {
		if len(row) < minColumns {
			summary.Skipped++
			continue
		}

		ratingSum += parser.RatingToNumeric(row[colRating])
		rated++

		price, err := ParsePrice(row[colPriceIncl])
		if err != nil {
			summary.Skipped++
			continue
		}
		priceSum += price
		summary.Count++
	}

	if summary.Count > 0 {
		summary.AveragePrice = priceSum / float64(summary.Count)
	}
	if rated > 0 {
		summary.AverageRating = float64(ratingSum) / float64(rated)
	}
	return summary, nil
}

// ParsePrice converts a price cell like "£45.17" to its numeric value. The
// currency sign and the encoding artifact occasionally glued to it are
// stripped first.
func ParsePrice(s string) (float64, error) {
	cleaned := strings.TrimSpace(parser.NormalizePrice(s))
	cleaned = strings.TrimPrefix(cleaned, "£")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return value, nil
}
