package service

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// EditSimilarity: нормированная схожесть Левенштейна в [0..1].
func EditSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(max(la, lb))
}

type Overlap struct {
	Count int
	Ratio float64
}

// TokenOverlap: сколько токенов a (с повторами) встречается в b; Ratio = Count/len(a).
func TokenOverlap(a, b []string) Overlap {
	if len(a) == 0 {
		return Overlap{}
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range a {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return Overlap{Count: n, Ratio: float64(n) / float64(len(a))}
}
