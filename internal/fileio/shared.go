package fileio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Table: распарсенная таблица: заголовки в исходном порядке и строки header→ячейка.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// ReadAny выбирает парсер по расширению. headerRow, номер строки заголовков (1-based).
func ReadAny(r io.Reader, filename string, headerRow int) (Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx":
		return readXLSX(r, headerRow)
	case ".xls":
		return readXLS(r, headerRow)
	case ".csv", ".txt":
		return readCSV(r, headerRow)
	default:
		return Table{}, fmt.Errorf("unsupported file: %s", filename)
	}
}

// pickHeader: берёт строку заголовков и подставляет Column N для пустых;
// повторяющиеся заголовки получают суффикс, чтобы не затирать друг друга в map.
func pickHeader(rows [][]string, headerRow int) []string {
	h := rows[headerRow-1]
	out := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, v := range h {
		v = normalizeCell(v)
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		if n := seen[v]; n > 0 {
			seen[v] = n + 1
			v = fmt.Sprintf("%s (%d)", v, n+1)
		} else {
			seen[v] = 1
		}
		out[i] = v
	}
	return out
}

// rowsToMaps: конвертирует AoA в []map по заголовкам, пропуская полностью пустые строки.
func rowsToMaps(rows [][]string, headers []string, headerRow int) []map[string]string {
	start := headerRow // первая строка после заголовков
	out := []map[string]string{}
	for r := start; r < len(rows); r++ {
		rec := rows[r]
		m := make(map[string]string, len(headers))
		empty := true
		for c := 0; c < len(headers); c++ {
			var v string
			if c < len(rec) {
				v = normalizeCell(rec[c])
			}
			if v != "" {
				empty = false
			}
			m[headers[c]] = v
		}
		if !empty {
			out = append(out, m)
		}
	}
	return out
}

func toTable(rows [][]string, headerRow int) Table {
	if len(rows) == 0 {
		return Table{}
	}
	if headerRow < 1 || headerRow > len(rows) {
		headerRow = 1
	}
	h := pickHeader(rows, headerRow)
	return Table{Headers: h, Rows: rowsToMaps(rows, h, headerRow)}
}

// normalizeCell: NBSP/узкие пробелы → обычные, обрезка краёв.
func normalizeCell(s string) string {
	s = strings.NewReplacer("\u00A0", " ", "\u202F", " ", "\u2009", " ", "\uFEFF", "").Replace(s)
	return strings.TrimSpace(s)
}
