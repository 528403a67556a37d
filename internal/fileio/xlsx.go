package fileio

import (
	"io"

	excelize "github.com/xuri/excelize/v2"
)

// readXLSX берёт первый лист, в котором есть хоть одна строка.
func readXLSX(r io.Reader, headerRow int) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return Table{}, err
		}
		if len(rows) > 0 {
			return toTable(rows, headerRow), nil
		}
	}
	return Table{}, nil
}
