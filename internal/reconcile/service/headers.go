package service

import (
	"strings"

	"catalog-recon/internal/reconcile/model"
)

// Кандидаты заголовков в порядке приоритета.
var (
	nameHeaders  = []string{"articulo", "producto", "descripcion", "modelo", "nombre", "produto", "descricao", "item", "product", "name"}
	priceHeaders = []string{"web", "unitario", "precio", "price", "valor", "monto", "preco"}
	costHeaders  = []string{"costo", "cost", "compra", "valor compra", "costo unitario", "custo"}
	brandHeaders = []string{"marca", "brand", "fabricante"}
)

func valueHeaders(mode model.Mode) []string {
	if mode == model.ModeCost {
		return costHeaders
	}
	return priceHeaders
}

// layout: какие колонки прайса за что отвечают.
type layout struct {
	name       string
	value      string
	brand      string // пусто, если колонку бренда не нашли
	brandIsKey bool   // заголовок сам является брендом каталога
	brandKey   string
}

// resolveColumn ищет колонку без учёта регистра и диакритики:
// сначала точное совпадение с любым кандидатом, потом вхождение кандидата целыми словами.
func resolveColumn(headers, candidates []string, skip map[string]bool) string {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = Normalize(h)
	}
	for _, c := range candidates {
		nc := Normalize(c)
		for i, h := range headers {
			if !skip[h] && norm[i] != "" && norm[i] == nc {
				return h
			}
		}
	}
	for _, c := range candidates {
		nc := Normalize(c)
		for i, h := range headers {
			if !skip[h] && containsWords(norm[i], nc) {
				return h
			}
		}
	}
	return ""
}

// resolveBrandColumn: заголовок, совпадающий с брендом каталога, либо "marca"/"brand".
func (e *Engine) resolveBrandColumn(headers []string, brands map[string]struct{}, skip map[string]bool) (string, string) {
	for _, h := range headers {
		if skip[h] {
			continue
		}
		if key := e.norm.Canonicalize(h); key != "" {
			if _, ok := brands[key]; ok {
				return h, key
			}
		}
	}
	return resolveColumn(headers, brandHeaders, skip), ""
}

func (e *Engine) resolveLayout(headers []string, brands map[string]struct{}, mode model.Mode) (layout, []string) {
	var warns []string
	l := layout{}
	l.name = resolveColumn(headers, nameHeaders, nil)
	if l.name == "" {
		return l, append(warns, "no product name column found (expected one of: "+strings.Join(nameHeaders, ", ")+")")
	}
	skip := map[string]bool{l.name: true}
	l.value = resolveColumn(headers, valueHeaders(mode), skip)
	if l.value == "" {
		return l, append(warns, "no "+string(mode)+" column found (expected one of: "+strings.Join(valueHeaders(mode), ", ")+")")
	}
	skip[l.value] = true
	l.brand, l.brandKey = e.resolveBrandColumn(headers, brands, skip)
	l.brandIsKey = l.brandKey != ""
	if l.brand == "" {
		warns = append(warns, "no brand column detected; matching against the whole catalog")
	}
	return l, warns
}

// rowBrand: ячейка, если это известный бренд; иначе бренд из заголовка; иначе сырая ячейка.
func (e *Engine) rowBrand(l layout, row map[string]string, brands map[string]struct{}) string {
	if l.brand == "" {
		return ""
	}
	cell := strings.TrimSpace(row[l.brand])
	if cell != "" {
		if _, ok := brands[e.norm.Canonicalize(cell)]; ok {
			return cell
		}
	}
	if l.brandIsKey {
		return strings.TrimSpace(l.brand)
	}
	return cell
}
