// Package parser extracts structured records and navigation links from the
// catalog's markup. It is pure: callers fetch and parse documents, the
// functions here only query them.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-book-catalog/models"
)

var (
	digitRun   = regexp.MustCompile(`\d+`)
	unsafeName = regexp.MustCompile(`[^\w \-]`)
)

// Extractor reads detail-page fields through a structural schema.
type Extractor struct {
	schema    Schema
	imageHost string
}

// NewExtractor builds an extractor for the default schema. imageHost is the
// bare host prepended to rewritten cover-image paths.
func NewExtractor(imageHost string) *Extractor {
	return &Extractor{schema: DefaultSchema(), imageHost: imageHost}
}

// Extract builds a Book from one detail-page document. Every structural
// location the schema names must be present; the description text may be
// empty but its paragraph may not be absent.
func (x *Extractor) Extract(doc *goquery.Selection, pageURL string) (*models.Book, error) {
	s := x.schema

	cells := doc.Find(s.ProductCells)
	if cells.Length() < s.MinCells {
		return nil, ErrMalformedPage{Part: "product table"}
	}
	heading := doc.Find(s.Title).First()
	if heading.Length() == 0 {
		return nil, ErrMalformedPage{Part: "title heading"}
	}
	description := doc.Find(s.Description).First()
	if description.Length() == 0 {
		return nil, ErrMalformedPage{Part: "description paragraph"}
	}
	crumbs := doc.Find(s.Breadcrumb)
	if crumbs.Length() <= s.BreadcrumbItem {
		return nil, ErrMalformedPage{Part: "breadcrumb"}
	}
	rating := doc.Find(s.Rating).First()
	ratingWord := ratingToken(rating)
	if ratingWord == "" {
		return nil, ErrMalformedPage{Part: "star rating"}
	}
	src, ok := doc.Find(s.Image).First().Attr("src")
	if !ok {
		return nil, ErrMalformedPage{Part: "cover image"}
	}

	availability := strings.TrimSpace(cells.Eq(s.CellAvailability).Text())
	if _, err := AvailableCount(availability); err != nil {
		return nil, err
	}

	return &models.Book{
		URL:          pageURL,
		UPC:          strings.TrimSpace(cells.Eq(s.CellUPC).Text()),
		Title:        strings.TrimSpace(heading.Text()),
		PriceInclTax: NormalizePrice(cells.Eq(s.CellPriceIncl).Text()),
		PriceExclTax: NormalizePrice(cells.Eq(s.CellPriceExcl).Text()),
		Availability: availability,
		Description:  strings.TrimSpace(description.Text()),
		Category:     strings.TrimSpace(crumbs.Eq(s.BreadcrumbItem).Text()),
		RatingText:   ratingWord,
		ImageURL:     x.imageHost + strings.TrimPrefix(src, s.ImagePrefix),
	}, nil
}

// ratingToken returns the second class token of the star-rating marker,
// which encodes the word-form rating.
func ratingToken(rating *goquery.Selection) string {
	class, ok := rating.Attr("class")
	if !ok {
		return ""
	}
	parts := strings.Fields(class)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// CategoryLinks enumerates nav-list categories in document order, skipping
// the leading non-category entries.
func (x *Extractor) CategoryLinks(doc *goquery.Selection, base *url.URL) []models.Category {
	var categories []models.Category
	doc.Find(x.schema.NavAnchors).Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		categories = append(categories, models.Category{
			Name:       strings.TrimSpace(anchor.Text()),
			ListingURL: base.ResolveReference(ref).String(),
		})
	})
	if len(categories) <= x.schema.NavSkip {
		return nil
	}
	return categories[x.schema.NavSkip:]
}

// ItemLinks returns the detail-page URLs of one listing page in document
// order. root must end with a slash.
func (x *Extractor) ItemLinks(doc *goquery.Selection, root string) []string {
	var links []string
	doc.Find(x.schema.ItemAnchors).Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		links = append(links, x.detailURL(root, href))
	})
	return links
}

// detailURL strips the relative-traversal prefix from a listing href and
// rebuilds it under the catalogue root.
func (x *Extractor) detailURL(root, href string) string {
	for strings.HasPrefix(href, "../") {
		href = strings.TrimPrefix(href, "../")
	}
	href = strings.TrimPrefix(href, x.schema.CataloguePath)
	return root + x.schema.CataloguePath + href
}

// NextPageURL resolves the "next page" control of a listing against the
// current listing URL. Reports false when the listing is the last page.
func (x *Extractor) NextPageURL(doc *goquery.Selection, current *url.URL) (string, bool) {
	href, ok := doc.Find(x.schema.NextPage).First().Attr("href")
	if !ok || href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return current.ResolveReference(ref).String(), true
}

// AvailableCount returns the first run of digits embedded in the
// availability text, e.g. 19 for "In stock (19 available)".
func AvailableCount(text string) (int, error) {
	match := digitRun.FindString(text)
	if match == "" {
		return 0, ErrMalformedAvailability{Text: text}
	}
	return strconv.Atoi(match)
}

// NormalizePrice strips the mis-encoded currency artifact the site emits
// while keeping the currency symbol itself.
func NormalizePrice(price string) string {
	return strings.TrimSpace(strings.ReplaceAll(price, "Â", ""))
}

// SanitizeName maps free text to a filesystem-safe name: characters outside
// word, space, and hyphen are removed, then spaces become underscores.
func SanitizeName(name string) string {
	cleaned := unsafeName.ReplaceAllString(name, "")
	cleaned = strings.TrimSpace(cleaned)
	return strings.ReplaceAll(cleaned, " ", "_")
}

// RatingToNumeric converts the word-form rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "Zero":
		return 0
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// ValidateBook ensures the extractor captured the required fields before a
// record reaches the export sink.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.URL) == "" {
		return fmt.Errorf("book missing url")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.PriceInclTax) == "" {
		return fmt.Errorf("book missing price for %s", b.Title)
	}
	if strings.TrimSpace(b.RatingText) == "" {
		return fmt.Errorf("book missing rating for %s", b.Title)
	}
	return nil
}
