package service

import (
	"sort"
	"strings"

	"catalog-recon/internal/reconcile/model"
)

// Веса скоринга нечеткого прохода
const (
	exactScore       = 1000.0 // точное совпадение всегда выше любого fuzzy
	wholeWordBonus   = 40.0   // одно имя целиком входит в другое как слова
	substringBonus   = 20.0   // одно имя входит в другое как подстрока
	overlapWeight    = 30.0
	similarityWeight = 20.0
	numericBonus     = 10.0 // общий числовой токен (размер)
	tokenCountBonus  = 0.5  // за каждый токен записи прайса
	lengthBonus      = 0.05 // за символ имени кандидата
	maxLengthBonus   = 3.0
	fallbackWeight   = 10.0
)

// Matcher сопоставляет одну запись прайса с товарами каталога.
// Чистый и синхронный: ошибок не возвращает, "нет совпадения" это обычный исход.
type Matcher struct {
	norm      *Normalizer
	tok       *Tokenizer
	def       model.Thresholds
	overrides map[string]model.Thresholds
	fallback  float64
}

func NewMatcher(n *Normalizer, t *Tokenizer, p model.Policy) *Matcher {
	ov := make(map[string]model.Thresholds, len(p.BrandOverrides))
	for brand, th := range p.BrandOverrides {
		if key := n.Canonicalize(brand); key != "" {
			ov[key] = th
		}
	}
	return &Matcher{norm: n, tok: t, def: p.Default, overrides: ov, fallback: p.FallbackMinSimilarity}
}

type catalogItem struct {
	p        model.Product
	brandKey string
	canon    string
	slug     string
	tokens   []string
}

// Catalog: предрасчитанные канонические имена и токены снимка каталога.
type Catalog struct {
	items   []*catalogItem
	byBrand map[string][]*catalogItem
}

func (c *Catalog) Len() int { return len(c.items) }

// Brands: канонические ключи брендов каталога.
func (c *Catalog) Brands() map[string]struct{} {
	out := make(map[string]struct{}, len(c.byBrand))
	for k := range c.byBrand {
		out[k] = struct{}{}
	}
	return out
}

func (m *Matcher) Prepare(products []model.Product) *Catalog {
	c := &Catalog{
		items:   make([]*catalogItem, 0, len(products)),
		byBrand: make(map[string][]*catalogItem),
	}
	for _, p := range products {
		canon := m.norm.Canonicalize(p.Name)
		it := &catalogItem{
			p:        p,
			brandKey: m.norm.Canonicalize(p.Brand),
			canon:    canon,
			slug:     slugOf(canon),
			tokens:   m.tok.split(canon),
		}
		c.items = append(c.items, it)
		if it.brandKey != "" {
			c.byBrand[it.brandKey] = append(c.byBrand[it.brandKey], it)
		}
	}
	return c
}

// бренд сужает кандидатов, но никогда не фильтрует до нуля
func (c *Catalog) candidates(brandKey string) []*catalogItem {
	if brandKey != "" {
		if list := c.byBrand[brandKey]; len(list) > 0 {
			return list
		}
	}
	return c.items
}

type query struct {
	entry    model.SheetEntry
	brandKey string
	canon    string
	slug     string
	tokens   []string
}

func (m *Matcher) prepareQuery(e model.SheetEntry) query {
	canon := m.norm.Canonicalize(e.Name)
	return query{
		entry:    e,
		brandKey: m.norm.Canonicalize(e.Brand),
		canon:    canon,
		slug:     slugOf(canon),
		tokens:   m.tok.split(canon),
	}
}

type scored struct {
	it    *catalogItem
	score float64
}

// Match: точное имя → скоринг → ослабленный проход. Пустой результат = unmatched.
func (m *Matcher) Match(e model.SheetEntry, cat *Catalog, mode model.Mode, opt model.Options) []model.MatchResult {
	if cat == nil || len(cat.items) == 0 {
		return nil
	}
	q := m.prepareQuery(e)
	cands := cat.candidates(q.brandKey)

	// (1) точное совпадение канонического имени
	if exact := m.exactPass(q, cands, opt); len(exact) > 0 {
		return m.results(q, exact, mode, model.MethodExact)
	}

	// (2) скоринг
	if fuzzy := m.fuzzyPass(q, cands, opt); len(fuzzy) > 0 {
		return m.results(q, fuzzy, mode, model.MethodFuzzy)
	}

	// (3) ослабленный проход
	if fb, ok := m.fallbackPass(q, cands); ok {
		return m.results(q, []scored{fb}, mode, model.MethodFallback)
	}
	return nil
}

func (m *Matcher) exactPass(q query, cands []*catalogItem, opt model.Options) []scored {
	if q.canon == "" {
		return nil
	}
	var hits []scored
	for _, it := range cands {
		if it.canon == q.canon {
			hits = append(hits, scored{it: it, score: exactScore})
		}
	}
	if len(hits) <= 1 || opt.ApplyAllVariants {
		return hits
	}
	// один вариант: бренд совпадает буквально, иначе первый найденный
	want := strings.TrimSpace(q.entry.Brand)
	for _, h := range hits {
		if want != "" && strings.TrimSpace(h.it.p.Brand) == want {
			return []scored{h}
		}
	}
	return hits[:1]
}

func (m *Matcher) fuzzyPass(q query, cands []*catalogItem, opt model.Options) []scored {
	var eligible []scored
	for _, it := range cands {
		ov := TokenOverlap(q.tokens, it.tokens)
		sim := EditSimilarity(q.canon, it.canon)
		th := m.thresholds(q.brandKey, it.brandKey)
		if ov.Count < th.MinOverlapCount {
			continue
		}
		if ov.Ratio < th.MinOverlapRatio && sim < th.MinSimilarity {
			continue
		}
		eligible = append(eligible, scored{it: it, score: score(q, it, ov, sim)})
	}
	if len(eligible) == 0 {
		return nil
	}
	// по убыванию скора; при равенстве порядок каталога
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].score > eligible[j].score })
	if !opt.ApplyAllVariants {
		return eligible[:1]
	}
	return dedupe(eligible)
}

// fallbackPass: подправила по очереди, первый подходящий кандидат выигрывает.
func (m *Matcher) fallbackPass(q query, cands []*catalogItem) (scored, bool) {
	if q.canon == "" {
		return scored{}, false
	}
	hit := func(it *catalogItem) (scored, bool) {
		return scored{it: it, score: fallbackWeight * EditSimilarity(q.canon, it.canon)}, true
	}

	// без значимых токенов (a) и (b) ловят любой огрызок вроде "DE"
	if len(q.tokens) == 0 {
		return m.looseRecheck(q, cands)
	}

	// (a) вхождение канонических имён в любую сторону
	for _, it := range cands {
		if it.canon != "" && (strings.Contains(it.canon, q.canon) || strings.Contains(q.canon, it.canon)) {
			return hit(it)
		}
	}
	// (b) имена без пробелов: равенство или вхождение
	for _, it := range cands {
		if it.slug == "" {
			continue
		}
		if it.slug == q.slug || strings.Contains(it.slug, q.slug) || strings.Contains(q.slug, it.slug) {
			return hit(it)
		}
	}
	return m.looseRecheck(q, cands)
}

// (c) хотя бы один общий токен и высокая схожесть
func (m *Matcher) looseRecheck(q query, cands []*catalogItem) (scored, bool) {
	for _, it := range cands {
		if TokenOverlap(q.tokens, it.tokens).Count >= 1 && EditSimilarity(q.canon, it.canon) >= m.fallback {
			return scored{it: it, score: fallbackWeight * EditSimilarity(q.canon, it.canon)}, true
		}
	}
	return scored{}, false
}

// пороги: исключение по бренду записи, без него по бренду кандидата
func (m *Matcher) thresholds(entryBrand, candBrand string) model.Thresholds {
	if entryBrand != "" {
		if th, ok := m.overrides[entryBrand]; ok {
			return th
		}
		return m.def
	}
	if th, ok := m.overrides[candBrand]; ok {
		return th
	}
	return m.def
}

func score(q query, it *catalogItem, ov Overlap, sim float64) float64 {
	s := 0.0
	if containsWords(it.canon, q.canon) || containsWords(q.canon, it.canon) {
		s += wholeWordBonus
	}
	if q.canon != "" && it.canon != "" &&
		(strings.Contains(it.canon, q.canon) || strings.Contains(q.canon, it.canon)) {
		s += substringBonus
	}
	s += overlapWeight * ov.Ratio
	s += similarityWeight * sim
	if sharesNumeric(q.tokens, it.tokens) {
		s += numericBonus
	}
	s += tokenCountBonus * float64(len(q.tokens))
	s += min(lengthBonus*float64(len(it.canon)), maxLengthBonus)
	return s
}

// containsWords: needle входит в hay целыми словами
func containsWords(hay, needle string) bool {
	if hay == "" || needle == "" {
		return false
	}
	return strings.Contains(" "+hay+" ", " "+needle+" ")
}

func sharesNumeric(a, b []string) bool {
	if !hasNumeric(a) || !hasNumeric(b) {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		if isNumeric(t) {
			set[t] = struct{}{}
		}
	}
	for _, t := range a {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func slugOf(canon string) string {
	return strings.ReplaceAll(canon, " ", "")
}

func dedupe(in []scored) []scored {
	seen := make(map[int64]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s.it.p.ID]; ok {
			continue
		}
		seen[s.it.p.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (m *Matcher) results(q query, hits []scored, mode model.Mode, method string) []model.MatchResult {
	hits = dedupe(hits)
	out := make([]model.MatchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.MatchResult{
			ProductID:     h.it.p.ID,
			ProductName:   h.it.p.Name,
			Brand:         h.it.p.Brand,
			CurrentValue:  mode.ValueOf(h.it.p),
			ProposedValue: q.entry.Value,
			Selected:      true,
			SheetName:     q.entry.Name,
			Method:        method,
			Score:         h.score,
		})
	}
	return out
}

// Suggestion: кандидат для ручной привязки.
type Suggestion struct {
	Product model.Product `json:"product"`
	Score   float64       `json:"score"`
}

// Rank упорядочивает весь каталог по скору без порогов допуска (ручной поиск).
func (m *Matcher) Rank(text, brand string, cat *Catalog, limit int) []Suggestion {
	q := m.prepareQuery(model.SheetEntry{Name: text, Brand: brand})
	if q.canon == "" || cat == nil {
		return []Suggestion{}
	}
	var all []scored
	for _, it := range cat.candidates(q.brandKey) {
		ov := TokenOverlap(q.tokens, it.tokens)
		sim := EditSimilarity(q.canon, it.canon)
		s := score(q, it, ov, sim)
		if it.canon == q.canon {
			s = exactScore
		}
		if ov.Count == 0 && s < exactScore && !strings.Contains(it.slug, q.slug) {
			continue
		}
		all = append(all, scored{it: it, score: s})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]Suggestion, 0, len(all))
	for _, s := range all {
		out = append(out, Suggestion{Product: s.it.p, Score: s.score})
	}
	return out
}
