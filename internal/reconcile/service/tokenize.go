package service

import "strings"

type Tokenizer struct {
	norm *Normalizer
	stop map[string]struct{}
}

func NewTokenizer(n *Normalizer, d Dictionary) *Tokenizer {
	stop := make(map[string]struct{}, len(d.Stopwords))
	for _, w := range d.Stopwords {
		if w = Normalize(w); w != "" {
			stop[w] = struct{}{}
		}
	}
	return &Tokenizer{norm: n, stop: stop}
}

// Tokenize канонизирует текст и режет на токены в исходном порядке.
func (t *Tokenizer) Tokenize(text string) []string {
	return t.split(t.norm.Canonicalize(text))
}

// split работает по уже канонизированной строке.
func (t *Tokenizer) split(canon string) []string {
	fields := strings.Fields(canon)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := t.stop[f]; ok {
			continue
		}
		numeric := isNumeric(f)
		// размеры ("80", "150") короткие, но значимые
		if len(f) < 2 && !numeric {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

// наивное множественное: хвостовая S у слов длиннее 3 символов
func stem(tok string) string {
	if len(tok) > 3 && strings.HasSuffix(tok, "S") {
		return tok[:len(tok)-1]
	}
	return tok
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func hasNumeric(tokens []string) bool {
	for _, t := range tokens {
		if isNumeric(t) {
			return true
		}
	}
	return false
}
