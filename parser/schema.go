package parser

// Schema maps the logical fields of the catalog's pages to structural
// locations in the markup. The site relies on fixed cell positions rather
// than named fields, so a markup change is absorbed by editing this table
// instead of chasing indices through the extractor.
type Schema struct {
	// Site navigation.
	NavAnchors string
	NavSkip    int // leading nav entries that are not categories

	// Category listing pages.
	ItemAnchors   string
	NextPage      string
	CataloguePath string // path segment prepended to detail hrefs

	// Detail pages.
	ProductCells     string
	CellUPC          int
	CellPriceExcl    int
	CellPriceIncl    int
	CellAvailability int
	MinCells         int
	Title            string
	Description      string
	Breadcrumb       string
	BreadcrumbItem   int
	Rating           string
	Image            string
	ImagePrefix      string // relative-traversal prefix stripped from the img src
}

// DefaultSchema describes the books.toscrape.com markup.
func DefaultSchema() Schema {
	return Schema{
		NavAnchors:    "ul.nav-list li a",
		NavSkip:       2,
		ItemAnchors:   "article > div a",
		NextPage:      "li.next a",
		CataloguePath: "catalogue/",

		ProductCells:     "td",
		CellUPC:          0,
		CellPriceExcl:    2,
		CellPriceIncl:    3,
		CellAvailability: 5,
		MinCells:         6,
		Title:            "h1",
		Description:      "article > p",
		Breadcrumb:       "ul.breadcrumb li",
		BreadcrumbItem:   2,
		Rating:           "p.star-rating",
		Image:            "img",
		ImagePrefix:      "../..",
	}
}
