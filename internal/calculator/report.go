package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Counterparty is one line of a balance report.
type Counterparty struct {
	UserID string
	Amount decimal.Decimal
}

// BalanceReport is a viewer's position in one currency.
type BalanceReport struct {
	ViewerID string
	Currency string

	// Debts are what the viewer owes others.
	Debts []Counterparty
	// Credits are what others owe the viewer.
	Credits []Counterparty

	TotalOwedByViewer decimal.Decimal
	TotalOwedToViewer decimal.Decimal
	NetBalance        decimal.Decimal // Positive = others owe the viewer
}

// BuildReport partitions the edges of one currency into the viewer's debts and
// credits.
func BuildReport(viewerID, currency string, edges []DebtEdge) BalanceReport {
	r := BalanceReport{
		ViewerID:          viewerID,
		Currency:          currency,
		Debts:             []Counterparty{},
		Credits:           []Counterparty{},
		TotalOwedByViewer: decimal.Zero,
		TotalOwedToViewer: decimal.Zero,
	}
	for _, e := range edges {
		if e.Currency != currency {
			continue
		}
		switch viewerID {
		case e.From:
			r.Debts = append(r.Debts, Counterparty{UserID: e.To, Amount: e.Amount})
			r.TotalOwedByViewer = r.TotalOwedByViewer.Add(e.Amount)
		case e.To:
			r.Credits = append(r.Credits, Counterparty{UserID: e.From, Amount: e.Amount})
			r.TotalOwedToViewer = r.TotalOwedToViewer.Add(e.Amount)
		}
	}
	r.NetBalance = r.TotalOwedToViewer.Sub(r.TotalOwedByViewer)
	return r
}

// BuildReports returns one report per currency the viewer has a balance in.
// A viewer with no balance gets a single zero report in defaultCurrency.
func BuildReports(viewerID string, edges []DebtEdge, defaultCurrency string) []BalanceReport {
	seen := make(map[string]bool)
	var currencies []string
	for _, e := range edges {
		if e.From != viewerID && e.To != viewerID {
			continue
		}
		if !seen[e.Currency] {
			seen[e.Currency] = true
			currencies = append(currencies, e.Currency)
		}
	}
	if len(currencies) == 0 {
		currencies = []string{defaultCurrency}
	}
	sort.Strings(currencies)

	reports := make([]BalanceReport, len(currencies))
	for i, c := range currencies {
		reports[i] = BuildReport(viewerID, c, edges)
	}
	return reports
}
