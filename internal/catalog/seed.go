package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"catalog-recon/internal/fileio"
	"catalog-recon/internal/reconcile/model"
	"catalog-recon/internal/utils"
)

// колонки файла-затравки; первая найденная выигрывает
var seedColumns = map[string][]string{
	"id":    {"id", "codigo", "código"},
	"name":  {"name", "nombre", "nome", "producto", "produto"},
	"brand": {"brand", "marca"},
	"price": {"price", "precio", "preco", "preço"},
	"cost":  {"cost", "costo", "custo"},
	"stock": {"stock", "estoque"},
}

// LoadSeed читает каталог из CSV/XLS/XLSX для MemoryStore.
// Строки без id или имени пропускаются; пустые суммы читаются как ноль.
func LoadSeed(path string) ([]model.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	tbl, err := fileio.ReadAny(f, path, 1)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return productsFromTable(tbl)
}

func productsFromTable(tbl fileio.Table) ([]model.Product, error) {
	col := make(map[string]string, len(seedColumns))
	for field, names := range seedColumns {
		col[field] = findColumn(tbl.Headers, names)
	}
	if col["id"] == "" || col["name"] == "" {
		return nil, fmt.Errorf("seed needs id and name columns, got %v", tbl.Headers)
	}

	out := make([]model.Product, 0, len(tbl.Rows))
	seen := make(map[int64]bool, len(tbl.Rows))
	for _, row := range tbl.Rows {
		id, err := strconv.ParseInt(strings.TrimSpace(row[col["id"]]), 10, 64)
		name := strings.TrimSpace(row[col["name"]])
		if err != nil || id <= 0 || name == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, model.Product{
			ID:    id,
			Name:  name,
			Brand: strings.TrimSpace(row[col["brand"]]),
			Price: amount(row[col["price"]]),
			Cost:  amount(row[col["cost"]]),
			Stock: amount(row[col["stock"]]),
		})
	}
	return out, nil
}

func findColumn(headers, names []string) string {
	for _, n := range names {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), n) {
				return h
			}
		}
	}
	return ""
}

func amount(s string) int64 {
	v, ok := utils.ParseAmount(s)
	if !ok || v < 0 {
		return 0
	}
	return v
}
