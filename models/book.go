// Package models defines data structures shared across the crawler.
package models

import "time"

// Book is one scraped catalog item. It is built once by the extractor and is
// not mutated afterwards; the export sink and the image download consume it
// independently.
type Book struct {
	URL          string `csv:"url" json:"url"`
	UPC          string `csv:"upc" json:"upc"`
	Title        string `csv:"title" json:"title"`
	PriceInclTax string `csv:"price_incl_tax" json:"price_incl_tax"`
	PriceExclTax string `csv:"price_excl_tax" json:"price_excl_tax"`
	Availability string `csv:"availability" json:"availability"`
	Description  string `csv:"description" json:"description"`
	Category     string `csv:"category" json:"category"`
	RatingText   string `csv:"rating" json:"rating"`
	ImageURL     string `csv:"image_url" json:"image_url"`

	// CrawledCategory is the category under which the item was found. The
	// breadcrumb on the detail page usually agrees with it, but the markup
	// does not guarantee that, so both are kept.
	CrawledCategory string `csv:"-" json:"crawled_category,omitempty"`
}

// Category describes one catalog category discovered in the site navigation.
type Category struct {
	Name       string
	ListingURL string
}

// CategorySummary is the aggregated view of one exported category table.
type CategorySummary struct {
	Name          string
	Count         int
	AveragePrice  float64
	AverageRating float64
	Skipped       int
}

// CategoryResult records the outcome of crawling one category.
type CategoryResult struct {
	Name    string
	Records int
	Skipped int
	Images  int
	Failed  bool
}

// CrawlResult holds the overall bookkeeping of one catalog run.
type CrawlResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Categories   []CategoryResult
	RequestCount int
	ErrorCount   int
	RetryCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// TotalRecords sums the exported records across all categories.
func (r *CrawlResult) TotalRecords() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Records
	}
	return total
}

// TotalImages sums the downloaded cover images across all categories.
func (r *CrawlResult) TotalImages() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Images
	}
	return total
}

// FailedCategories counts categories that were aborted.
func (r *CrawlResult) FailedCategories() int {
	failed := 0
	for _, c := range r.Categories {
		if c.Failed {
			failed++
		}
	}
	return failed
}
