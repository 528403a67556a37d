package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-recon/internal/reconcile/model"
)

func TestReconcile(t *testing.T) {
	e := newTestEngine(t, model.DefaultPolicy())
	headers := []string{"Marca", "Artículo", "Precio Web"}
	rows := []map[string]string{
		{"Marca": "Moval", "Artículo": "ROPERO 3 PUERTAS BLANCO", "Precio Web": "150.000"},
		{"Marca": "Moval", "Artículo": "Mesa de luz con espejo", "Precio Web": "45.500"},
		{"Marca": "Moval", "Artículo": "Cama", "Precio Web": "0"},
		{"Marca": "Moval", "Artículo": "Sillon", "Precio Web": "abc"},
		{"Marca": "", "Artículo": "", "Precio Web": "100"},
		{"Marca": "Moval", "Artículo": "Sofa retratil", "Precio Web": "89.900"},
		{"Marca": "Moval", "Artículo": "Banqueta alta", "Precio Web": "120.000"},
	}

	res := e.Reconcile(headers, rows, testProducts(), model.ModePrice, model.Options{})

	assert.Empty(t, res.Warnings)
	require.Len(t, res.Staged, 2)
	assert.Equal(t, int64(1), res.Staged[0].ProductID)
	assert.Equal(t, int64(150000), res.Staged[0].ProposedValue)
	assert.Equal(t, int64(140000), res.Staged[0].CurrentValue)
	assert.Equal(t, int64(2), res.Staged[1].ProductID)
	assert.Equal(t, int64(45500), res.Staged[1].ProposedValue)

	// дорогие первыми; нулевые и нечитаемые суммы не попадают никуда
	assert.Equal(t, []model.SheetEntry{
		{Brand: "Moval", Name: "Banqueta alta", Value: 120000},
		{Brand: "Moval", Name: "Sofa retratil", Value: 89900},
	}, res.Unmatched)
}

func TestReconcileCostModeWithoutBrandColumn(t *testing.T) {
	e := newTestEngine(t, model.DefaultPolicy())
	headers := []string{"Producto", "Costo"}
	rows := []map[string]string{
		{"Producto": "Roupeiro 3P Blanco", "Costo": "1.234,50"},
	}

	res := e.Reconcile(headers, rows, testProducts(), model.ModeCost, model.Options{})

	require.Len(t, res.Staged, 1)
	assert.Equal(t, int64(1), res.Staged[0].ProductID)
	assert.Equal(t, int64(1235), res.Staged[0].ProposedValue)
	assert.Equal(t, int64(90000), res.Staged[0].CurrentValue)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "brand")
}

func TestReconcileBrandHeader(t *testing.T) {
	// колонка называется брендом каталога: пустые ячейки берут бренд из заголовка
	e := newTestEngine(t, model.DefaultPolicy())
	headers := []string{"Descripción", "TCIL", "Precio"}
	rows := []map[string]string{
		{"Descripción": "Mesa de noche", "TCIL": "", "Precio": "50000"},
		{"Descripción": "Mesa de noche", "TCIL": "Moval", "Precio": "48000"},
	}

	res := e.Reconcile(headers, rows, testProducts(), model.ModePrice, model.Options{})

	assert.Empty(t, res.Warnings)
	assert.Equal(t, []int64{3, 2}, ids(res.Staged))
}

func TestReconcileMissingColumns(t *testing.T) {
	e := newTestEngine(t, model.DefaultPolicy())

	t.Run("no name column", func(t *testing.T) {
		res := e.Reconcile([]string{"Foo", "Precio"}, []map[string]string{{"Foo": "Cama", "Precio": "10"}}, testProducts(), model.ModePrice, model.Options{})
		assert.Empty(t, res.Staged)
		assert.Empty(t, res.Unmatched)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("no value column for mode", func(t *testing.T) {
		res := e.Reconcile([]string{"Producto", "Precio"}, []map[string]string{{"Producto": "Cama", "Precio": "10"}}, testProducts(), model.ModeCost, model.Options{})
		assert.Empty(t, res.Staged)
		assert.Empty(t, res.Unmatched)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("no headers at all", func(t *testing.T) {
		res := e.Reconcile(nil, nil, nil, model.ModePrice, model.Options{})
		assert.NotNil(t, res.Staged)
		assert.NotNil(t, res.Unmatched)
		assert.NotEmpty(t, res.Warnings)
	})
}

func TestReconcileEmptyCatalog(t *testing.T) {
	e := newTestEngine(t, model.DefaultPolicy())
	res := e.Reconcile([]string{"Producto", "Precio"}, []map[string]string{{"Producto": "Cama", "Precio": "10"}}, nil, model.ModePrice, model.Options{})
	assert.Empty(t, res.Staged)
	assert.Len(t, res.Unmatched, 1)
	assert.NotEmpty(t, res.Warnings)
}

func TestReconcileOneResultPerProduct(t *testing.T) {
	e := newTestEngine(t, model.DefaultPolicy())
	headers := []string{"Producto", "Precio"}
	rows := []map[string]string{
		{"Producto": "Roupeiro 3P Blanco", "Precio": "100"},
		{"Producto": "ROPERO 3 PUERTAS BLANCO", "Precio": "200"},
	}

	res := e.Reconcile(headers, rows, testProducts(), model.ModePrice, model.Options{})

	require.Len(t, res.Staged, 1)
	assert.Equal(t, int64(200), res.Staged[0].ProposedValue)
	assert.Equal(t, "ROPERO 3 PUERTAS BLANCO", res.Staged[0].SheetName)
}
