package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultWidth is the separator width of every report
const DefaultWidth = 80

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a title framed by separators, preceded by a blank line
func PrintHeader(title string, width int) {
	fmt.Println()
	PrintSeparator("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

func PrintFooter(message string, width int) {
	fmt.Println()
	PrintSeparator("=", width)
	fmt.Println(message)
	PrintSeparator("=", width)
	fmt.Println()
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the box-drawing prefix closing a block
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines inside a block
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "└─ "
	}
	return "├─ "
}

// FormatPoints renders a points amount with two decimals and a unit, e.g. "1,250.50 pts"
func FormatPoints(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	b.WriteString(" pts")
	return b.String()
}
