package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// после Normalize в строке остаются только A-Z, 0-9 и одиночные пробелы
var nonAlnum = regexp.MustCompile(`[^A-Z0-9 ]+`)

// Normalize: NFD + удаление диакритики, верхний регистр, всё кроме [A-Z0-9 ] → пробел.
// Пустой ввод даёт пустую строку.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// transform.Chain хранит состояние, поэтому собираем на каждый вызов
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToUpper(out)
	out = nonAlnum.ReplaceAllString(out, " ")
	return collapseSpaces(out)
}

type compiledRule struct {
	rx   *regexp.Regexp
	repl string
}

// Normalizer канонизирует названия товаров по словарю.
// Порядок стадий фиксирован: синонимы → ES/PT термины → двери → аксессуары.
type Normalizer struct {
	synonyms []compiledRule
	crossLng []compiledRule
	doors    *regexp.Regexp
	noise    *regexp.Regexp
}

func NewNormalizer(d Dictionary) (*Normalizer, error) {
	syn, err := compileRules(d.Synonyms)
	if err != nil {
		return nil, fmt.Errorf("synonyms: %w", err)
	}
	cross, err := compileRules(d.CrossLanguage)
	if err != nil {
		return nil, fmt.Errorf("cross-language: %w", err)
	}
	n := &Normalizer{synonyms: syn, crossLng: cross}
	if len(d.DoorWords) > 0 {
		// "6 PUERTAS", "6P", "2 PORTAS"
		n.doors = regexp.MustCompile(`\b\d+\s*(?:` + alternation(d.DoorWords) + `)\b`)
	}
	if len(d.Accessories) > 0 {
		n.noise = regexp.MustCompile(`\b(?:` + alternation(d.Accessories) + `)\b`)
	}
	return n, nil
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		alt := alternation(r.Words)
		if alt == "" {
			continue
		}
		rx, err := regexp.Compile(`\b(?:` + alt + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("rule %v: %w", r.Words, err)
		}
		out = append(out, compiledRule{rx: rx, repl: Normalize(r.Replace)})
	}
	return out, nil
}

func alternation(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		// фраза "MESA DE LUZ" матчится при любом числе пробелов
		if w = Normalize(w); w != "" {
			parts = append(parts, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
		}
	}
	// длинные фразы первыми: "CRIADOS MUDOS" раньше "CRIADOS"
	sort.SliceStable(parts, func(i, j int) bool { return len(parts[i]) > len(parts[j]) })
	return strings.Join(parts, "|")
}

// Canonicalize = Normalize + словарные замены целых слов.
func (n *Normalizer) Canonicalize(s string) string {
	out := Normalize(s)
	if out == "" {
		return ""
	}

	// 1) синонимы: материалы, множественное число
	out = applyRules(out, n.synonyms)

	// 2) ES↔PT: изголовье, шкаф, тумба, комод; "с зеркалом" вырезается
	out = applyRules(out, n.crossLng)

	// 3) количество дверей: "3 PUERTAS" и "3P" сводятся к одному маркеру и удаляются
	out = n.foldDoors(out)

	// 4) ножки, LED и прочий шум
	if n.noise != nil {
		out = collapseSpaces(n.noise.ReplaceAllString(out, " "))
	}
	return out
}

func applyRules(s string, rules []compiledRule) string {
	for _, r := range rules {
		if s == "" {
			return s
		}
		s = collapseSpaces(r.rx.ReplaceAllString(s, " "+r.repl+" "))
	}
	return s
}

// маркер дверей ("3P") для сравнения имён только шум, вырезаем целиком
func (n *Normalizer) foldDoors(s string) string {
	if n.doors == nil {
		return s
	}
	return collapseSpaces(n.doors.ReplaceAllString(s, " "))
}

// Схлопывание пробелов
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
