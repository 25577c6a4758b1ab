package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber renders n with K/M/B suffixes and the given number of decimals.
func FormatNumber(n float64, decimals int) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.*fB", decimals, n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.*fM", decimals, n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.*fK", decimals, n/1e3)
	}
	return fmt.Sprintf("%.*f", decimals, n)
}

// FormatUSD is FormatNumber with a dollar sign and two decimals.
func FormatUSD(n float64) string {
	return "$" + FormatNumber(n, 2)
}

// FormatPercentage renders a signed percentage, e.g. "+12.50%".
func FormatPercentage(v float64, decimals int) string {
	sign := ""
	if v >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.*f%%", sign, decimals, v)
}

// FormatAddress shortens an address to its first 6 and last 4 characters.
func FormatAddress(address string) string {
	const head, tail = 6, 4
	if len(address) <= head+tail {
		return address
	}
	return address[:head] + "..." + address[len(address)-tail:]
}

// FormatPriceUSD renders an upstream price string without float rounding.
// Sub-cent prices keep 4 significant digits after the leading zeros.
func FormatPriceUSD(raw string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "$" + raw
	}
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "$" + d.StringFixed(4)
	}
	if d.IsZero() {
		return "$0"
	}
	exp := 0
	for v := d.Abs(); v.LessThan(decimal.NewFromInt(1)); v = v.Shift(1) {
		exp++
	}
	return "$" + d.Round(int32(exp+3)).String()
}

var markdownReplacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// EscapeMarkdown escapes the characters Telegram MarkdownV2 reserves.
func EscapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}
