package fileio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	xls "github.com/extrame/xls"
)

// xlsScanCols: сколько колонок просматриваем: Row.LastCol() у выгрузок из касс врёт.
const xlsScanCols = 256

// старые .xls из кассовых систем: cp1252 или utf-8
var xlsCharsets = []string{"utf-8", "windows-1252", "iso-8859-1"}

func openXLS(b []byte) (*xls.WorkBook, error) {
	var lastErr error
	for _, cs := range xlsCharsets {
		wb, err := xls.OpenReader(bytes.NewReader(b), cs)
		if err == nil && wb != nil {
			return wb, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("workbook is empty")
	}
	return nil, fmt.Errorf("open xls: %w", lastErr)
}

// xlsRows читает строки листа, обрезая хвостовые пустые ячейки.
func xlsRows(sheet *xls.WorkSheet) [][]string {
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, 8)
		last := -1
		for j := 0; j < xlsScanCols; j++ {
			v := normalizeCell(row.Col(j))
			cells = append(cells, v)
			if v != "" {
				last = j
			}
		}
		rows = append(rows, cells[:last+1])
	}
	return rows
}

// readXLS берёт первый непустой лист книги.
func readXLS(r io.Reader, headerRow int) (Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	wb, err := openXLS(b)
	if err != nil {
		return Table{}, err
	}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil || (sheet.MaxRow == 0 && sheet.Row(0) == nil) {
			continue
		}
		return toTable(xlsRows(sheet), headerRow), nil
	}
	return Table{}, nil
}
