package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

// renderTable writes one line per row with a price column per retailer.
// Non-baseline prices carry their delta, e.g. "$255.99 (+23.5%)".
func renderTable(out io.Writer, rows []domain.ComparisonRow, retailers []domain.RetailerConfig) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	header := []string{"PRODUCT", "UPC"}
	for _, rc := range retailers {
		name := strings.ToUpper(rc.Name)
		if rc.Baseline {
			name += " (BASE)"
		}
		header = append(header, name)
	}
	header = append(header, "SOURCE", "UPDATED")
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, row := range rows {
		line := []string{row.ProductName, row.Identifier}
		for _, cell := range row.Cells {
			line = append(line, formatCell(cell))
		}
		line = append(line, string(row.Source), row.LastUpdated.UTC().Format(time.RFC3339))
		_, _ = fmt.Fprintln(w, strings.Join(line, "\t"))
	}

	return w.Flush()
}

func formatCell(cell domain.RetailerCell) string {
	if cell.Price == nil {
		return "-"
	}
	price := "$" + decimal.NewFromFloat(*cell.Price).StringFixed(2)
	if cell.Delta == nil {
		return price
	}

	delta := decimal.NewFromFloat(cell.Delta.Rounded).StringFixed(1)
	if cell.Delta.Rounded >= 0 {
		delta = "+" + delta
	}
	return fmt.Sprintf("%s (%s%%)", price, delta)
}
