package service

import (
	"sort"
	"strings"

	"catalog-recon/internal/reconcile/model"
	"catalog-recon/internal/utils"
)

// Engine: чистая сверка прайса с каталогом: без I/O, без мутаций каталога.
type Engine struct {
	norm    *Normalizer
	matcher *Matcher
}

func NewEngine(d Dictionary, p model.Policy) (*Engine, error) {
	n, err := NewNormalizer(d)
	if err != nil {
		return nil, err
	}
	return &Engine{norm: n, matcher: NewMatcher(n, NewTokenizer(n, d), p)}, nil
}

func (e *Engine) Matcher() *Matcher { return e.matcher }

func (e *Engine) Normalizer() *Normalizer { return e.norm }

// Reconcile: колонки → записи → матчинг → staged (по товару) и unmatched (по убыванию суммы).
func (e *Engine) Reconcile(headers []string, rows []map[string]string, products []model.Product, mode model.Mode, opt model.Options) model.Result {
	res := model.Result{
		Staged:    []model.MatchResult{},
		Unmatched: []model.SheetEntry{},
		Warnings:  []string{},
	}
	if len(products) == 0 {
		res.Warnings = append(res.Warnings, "catalog is empty; every row will be unmatched")
	}

	cat := e.matcher.Prepare(products)
	brands := cat.Brands()

	l, warns := e.resolveLayout(headers, brands, mode)
	res.Warnings = append(res.Warnings, warns...)
	if l.name == "" || l.value == "" {
		return res
	}

	entries := e.buildEntries(rows, l, brands)

	// один результат на товар: более поздний с не меньшим скором вытесняет прежний
	best := make(map[int64]model.MatchResult)
	order := make([]int64, 0)
	for _, entry := range entries {
		matched := e.matcher.Match(entry, cat, mode, opt)
		if len(matched) == 0 {
			res.Unmatched = append(res.Unmatched, entry)
			continue
		}
		for _, r := range matched {
			prev, ok := best[r.ProductID]
			if !ok {
				order = append(order, r.ProductID)
			}
			if !ok || r.Score >= prev.Score {
				best[r.ProductID] = r
			}
		}
	}
	for _, id := range order {
		res.Staged = append(res.Staged, best[id])
	}

	// дорогие несопоставленные строки первыми
	sort.SliceStable(res.Unmatched, func(i, j int) bool {
		return res.Unmatched[i].Value > res.Unmatched[j].Value
	})
	return res
}

// buildEntries отбрасывает строки без имени и с нулевой/нечитаемой суммой.
func (e *Engine) buildEntries(rows []map[string]string, l layout, brands map[string]struct{}) []model.SheetEntry {
	out := make([]model.SheetEntry, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row[l.name])
		if name == "" {
			continue
		}
		v, ok := utils.ParseAmount(row[l.value])
		if !ok || v <= 0 {
			continue
		}
		out = append(out, model.SheetEntry{
			Brand: e.rowBrand(l, row, brands),
			Name:  name,
			Value: v,
		})
	}
	return out
}
