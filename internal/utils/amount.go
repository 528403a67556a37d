package utils

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var rxKeepAmount = regexp.MustCompile(`[^\d.,\-]`)

// ParseAmount парсит цену/себестоимость из ячейки прайса и округляет до целых единиц валюты.
// Понимает "1.234,56", "1,234.56", "150.000", "$ 150.000", "12,5", "(1 234)" и NBSP.
// ok=false, если числа в ячейке нет.
func ParseAmount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = rxKeepAmount.ReplaceAllString(s, "")
	if strings.HasPrefix(s, "-") {
		neg = true
	}
	s = strings.ReplaceAll(s, "-", "")
	if s == "" {
		return 0, false
	}
	s = normalizeSeparators(s)
	if s == "" || s == "." {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(0).IntPart(), true
}

// normalizeSeparators приводит число к виду "1234.56".
func normalizeSeparators(s string) string {
	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// десятичный: тот, что встречается последним
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 0:
		return singleSeparator(s, ",")
	case dots > 0:
		return singleSeparator(s, ".")
	default:
		return s
	}
}

// один вид разделителя: если он повторяется или после него ровно 3 цифры, это тысячи, иначе десятичный
func singleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	i := strings.Index(s, sep)
	if len(s)-i-1 == 3 && i > 0 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}
