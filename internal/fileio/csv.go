package fileio

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// readCSV: CSV с заголовком в строке headerRow (с 1), кодировка определяется и переводится в UTF-8.
// Выгрузки из латиноамериканских таблиц приходят в UTF-8 или Windows-1252/ISO-8859-1;
// разделитель (',' или ';') берётся по первой строке.
func readCSV(r io.Reader, headerRow int) (Table, error) {
	br := bufio.NewReader(r)

	// Peek a bit to detect encoding
	peek, _ := br.Peek(2048)

	var dec io.Reader = br
	if !validUTF8Prefix(peek) {
		// не UTF-8: chardet различает latin-1 и cp1252, остальное читаем как cp1252
		cs := "windows-1252"
		if det, err := chardet.NewTextDetector().DetectBest(peek); err == nil && det != nil {
			cs = strings.ToLower(det.Charset)
		}
		switch cs {
		case "iso-8859-1":
			dec = transform.NewReader(br, charmap.ISO8859_1.NewDecoder())
		default:
			dec = transform.NewReader(br, charmap.Windows1252.NewDecoder())
		}
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = sniffDelimiter(peek)

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, err
		}
		rows = append(rows, rec)
	}
	return toTable(rows, headerRow), nil
}

// validUTF8Prefix допускает обрезанную на границе Peek последнюю руну.
func validUTF8Prefix(b []byte) bool {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return true
		}
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}

// sniffDelimiter: в первой строке ';' чаще ',': значит Excel с локалью es/pt.
func sniffDelimiter(peek []byte) rune {
	line := string(peek)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
