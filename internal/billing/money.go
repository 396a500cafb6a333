package billing

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount with the configured symbol and two decimals.
func (c *Client) FormatCurrency(amount decimal.Decimal) string {
	return formatMoney(c.Config.Currency, amount)
}

func formatMoney(symbol string, amount decimal.Decimal) string {
	return symbol + amount.StringFixed(2)
}

// parseNumber parses user input the way a number field would, rejecting blanks.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotNumeric
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotNumeric
	}
	return d, nil
}

// sumAmounts adds nullable amounts, treating missing ones as zero.
func sumAmounts(amounts []decimal.NullDecimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		if a.Valid {
			total = total.Add(a.Decimal)
		}
	}
	return total
}

// fitWidth cuts s to w terminal cells, marking the cut with "...", and pads it
// to exactly w cells.
func fitWidth(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "..."), w)
}
