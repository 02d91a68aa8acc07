// Package roman converts between integers and roman numerals for the
// tools CLI, used when renaming front-matter content documents.
package roman

import (
	"fmt"
	"strings"
)

// Conversion bounds for standard-form numerals.
const (
	Min = 1
	Max = 3999
)

var numerals = []struct {
	value  int
	symbol string
}{
	{1000, "M"},
	{900, "CM"},
	{500, "D"},
	{400, "CD"},
	{100, "C"},
	{90, "XC"},
	{50, "L"},
	{40, "XL"},
	{10, "X"},
	{9, "IX"},
	{5, "V"},
	{4, "IV"},
	{1, "I"},
}

var values = map[byte]int{
	'I': 1,
	'V': 5,
	'X': 10,
	'L': 50,
	'C': 100,
	'D': 500,
	'M': 1000,
}

// Format renders n as an uppercase roman numeral in standard form.
func Format(n int) (string, error) {
	if n < Min || n > Max {
		return "", fmt.Errorf("value %d out of range [%d, %d]", n, Min, Max)
	}

	var b strings.Builder
	for _, numeral := range numerals {
		for n >= numeral.value {
			b.WriteString(numeral.symbol)
			n -= numeral.value
		}
	}
	return b.String(), nil
}

// Parse converts a roman numeral to its integer value. Only canonical
// standard-form numerals are accepted; "IIII" is rejected.
func Parse(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty numeral")
	}

	upper := strings.ToUpper(s)
	total := 0
	for i := 0; i < len(upper); i++ {
		value, ok := values[upper[i]]
		if !ok {
			return 0, fmt.Errorf("invalid character %q in numeral %q", upper[i], s)
		}
		if i+1 < len(upper) && values[upper[i+1]] > value {
			total -= value
		} else {
			total += value
		}
	}

	// Re-format to reject non-canonical spellings.
	canonical, err := Format(total)
	if err != nil {
		return 0, fmt.Errorf("numeral %q out of range", s)
	}
	if canonical != upper {
		return 0, fmt.Errorf("non-canonical numeral %q (expected %q)", s, canonical)
	}

	return total, nil
}
