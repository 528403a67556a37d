package fileio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidURL: ссылка не похожа ни на Google Sheets, ни на файл таблицы.
var ErrInvalidURL = errors.New("unsupported sheet url")

const maxSheetBytes = 32 << 20

var (
	rxSheetID = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	rxGid     = regexp.MustCompile(`[#&?]gid=(\d+)`)
)

// ExportURL превращает ссылку "поделиться" в ссылку на CSV-выгрузку.
// Возвращает URL для скачивания и имя файла, по расширению которого выбирается парсер.
func ExportURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if strings.HasSuffix(u.Host, "docs.google.com") {
		m := rxSheetID.FindStringSubmatch(u.Path)
		if m == nil {
			return "", "", fmt.Errorf("%w: no spreadsheet id in %q", ErrInvalidURL, raw)
		}
		gid := "0"
		if g := rxGid.FindStringSubmatch(raw); g != nil {
			gid = g[1]
		}
		return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", m[1], gid), "sheet.csv", nil
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".csv", ".xls", ".xlsx":
		return u.String(), path.Base(u.Path), nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
}

// Fetcher скачивает общие таблицы: таймаут на запрос и общий лимит исходящих запросов.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewFetcher(timeout time.Duration, rps float64, burst int) *Fetcher {
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Fetch скачивает и парсит таблицу; заголовки в первой строке.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Table, error) {
	target, name, err := ExportURL(rawURL)
	if err != nil {
		return Table{}, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return Table{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "catalog-recon/1.0")
	resp, err := f.client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("fetch sheet: unexpected status %d", resp.StatusCode)
	}
	return ReadAny(io.LimitReader(resp.Body, maxSheetBytes), name, 1)
}
