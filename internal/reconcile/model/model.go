package model

import "strings"

// Mode: какое поле каталога обновляет прайс: цена или себестоимость.
type Mode string

const (
	ModePrice Mode = "price"
	ModeCost  Mode = "cost"
)

// ParseMode принимает "price"/"cost" (и пару синонимов из UI).
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price", "precio", "preco":
		return ModePrice, true
	case "cost", "costo", "custo":
		return ModeCost, true
	default:
		return "", false
	}
}

// ValueOf возвращает текущее значение поля, которое правит этот режим.
func (m Mode) ValueOf(p Product) int64 {
	if m == ModeCost {
		return p.Cost
	}
	return p.Price
}

// Product: строка каталога. Деньги в целых единицах валюты.
type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
	Price int64  `json:"price"`
	Cost  int64  `json:"cost"`
	Stock int64  `json:"stock"`
}

// SheetEntry: принятая строка прайса (имя непустое, значение > 0).
type SheetEntry struct {
	Brand string `json:"brand"`
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Способ, которым найдено совпадение.
const (
	MethodExact    = "exact"
	MethodFuzzy    = "fuzzy"
	MethodFallback = "fallback"
	MethodManual   = "manual"
)

type MatchResult struct {
	ProductID      int64   `json:"productId"`
	ProductName    string  `json:"productName"`
	Brand          string  `json:"brand"`
	CurrentValue   int64   `json:"currentValue"`
	ProposedValue  int64   `json:"proposedValue"`
	Selected       bool    `json:"selected"`
	ManuallyEdited bool    `json:"manuallyEdited"`
	SheetName      string  `json:"sheetName"` // как товар записан в прайсе
	Method         string  `json:"method"`    // exact | fuzzy | fallback | manual
	Score          float64 `json:"score"`
}

// Thresholds: пороги допуска кандидата в нечетком проходе.
type Thresholds struct {
	MinOverlapCount int     `json:"minOverlapCount"`
	MinOverlapRatio float64 `json:"minOverlapRatio"`
	MinSimilarity   float64 `json:"minSimilarity"`
}

// DefaultThresholds: общие пороги для всех брендов без исключений.
func DefaultThresholds() Thresholds {
	return Thresholds{MinOverlapCount: 2, MinOverlapRatio: 0.45, MinSimilarity: 0.86}
}

// Policy: пороги матчера. BrandOverrides индексируется каноническим брендом.
type Policy struct {
	Default               Thresholds
	BrandOverrides        map[string]Thresholds
	FallbackMinSimilarity float64
}

func DefaultPolicy() Policy {
	return Policy{
		Default:               DefaultThresholds(),
		BrandOverrides:        map[string]Thresholds{},
		FallbackMinSimilarity: 0.80,
	}
}

type Options struct {
	ApplyAllVariants bool `json:"applyAllVariants"`
}

// Result: итог анализа прайса, до подтверждения человеком.
type Result struct {
	Staged    []MatchResult `json:"staged"`
	Unmatched []SheetEntry  `json:"unmatched"`
	Warnings  []string      `json:"warnings"`
}

// ValueUpdate: одна запись для массового обновления каталога.
type ValueUpdate struct {
	ProductID int64 `json:"productId"`
	Value     int64 `json:"value"`
}

type ItemError struct {
	ProductID int64  `json:"productId"`
	Error     string `json:"error"`
}

// BulkResult: ответ каталога на массовое обновление (частичный успех допустим).
// Updated: id реально записанных товаров.
type BulkResult struct {
	Updated []int64     `json:"updated"`
	Errors  []ItemError `json:"errors"`
}

type CommitResult struct {
	UpdatedCount int         `json:"updatedCount"`
	Errors       []ItemError `json:"errors"`
}

// ProductPatch: точечная правка товара (ручная привязка с переименованием).
type ProductPatch struct {
	Name  *string `json:"name,omitempty"`
	Price *int64  `json:"price,omitempty"`
	Cost  *int64  `json:"cost,omitempty"`
}
