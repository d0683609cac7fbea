package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/aluiziolira/go-book-catalog/models"
)

// WriteMarkdown renders the category summaries as a markdown report with a
// totals table and a record-distribution pie chart.
func WriteMarkdown(w io.Writer, summaries []models.CategorySummary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Book Catalog Report")
	md.PlainText("")

	writeTotals(md, summaries)
	writeCategories(md, summaries)
	writePieChart(md, summaries)

	return md.Build()
}

func writeTotals(md *markdown.Markdown, summaries []models.CategorySummary) {
	records, skipped := 0, 0
	for _, s := range summaries {
		records += s.Count
		skipped += s.Skipped
	}

	md.H2("Totals")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Categories", strconv.Itoa(len(summaries))},
			{"Records", strconv.Itoa(records)},
			{"Skipped Rows", strconv.Itoa(skipped)},
		},
	})
	md.PlainText("")
}

func writeCategories(md *markdown.Markdown, summaries []models.CategorySummary) {
	md.H2("Categories")
	md.PlainText("")

	if len(summaries) == 0 {
		md.PlainText("No category tables found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			s.Name,
			strconv.Itoa(s.Count),
			fmt.Sprintf("£%.2f", s.AveragePrice),
			fmt.Sprintf("%.1f", s.AverageRating),
			strconv.Itoa(s.Skipped),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Records", "Avg Price (incl. tax)", "Avg Rating", "Skipped"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writePieChart(md *markdown.Markdown, summaries []models.CategorySummary) {
	total := 0
	for _, s := range summaries {
		total += s.Count
	}
	if total == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records per Category"),
		piechart.WithShowData(true),
	)
	for _, s := range summaries {
		if s.Count > 0 {
			chart.LabelAndIntValue(s.Name, uint64(s.Count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}
