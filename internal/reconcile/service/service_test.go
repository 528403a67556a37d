package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-recon/internal/catalog"
	"catalog-recon/internal/fileio"
	"catalog-recon/internal/reconcile/model"
	"catalog-recon/internal/staging"
)

type sheetFunc func(ctx context.Context, url string) (fileio.Table, error)

func (f sheetFunc) Fetch(ctx context.Context, url string) (fileio.Table, error) { return f(ctx, url) }

// failingStore отказывает в записи целиком.
type failingStore struct {
	*catalog.MemoryStore
}

func (failingStore) BulkUpdate(context.Context, model.Mode, []model.ValueUpdate) (model.BulkResult, error) {
	return model.BulkResult{}, errors.New("connection reset")
}

// interruptedStore успевает записать первый товар, потом контекст отменяется.
type interruptedStore struct {
	*catalog.MemoryStore
}

func (s interruptedStore) BulkUpdate(ctx context.Context, mode model.Mode, items []model.ValueUpdate) (model.BulkResult, error) {
	res, err := s.MemoryStore.BulkUpdate(ctx, mode, items[:1])
	if err != nil {
		return res, err
	}
	return res, context.Canceled
}

// gatedStore задерживает первый Get, пока тест не откроет gate.
type gatedStore struct {
	*catalog.MemoryStore
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (s *gatedStore) Get(ctx context.Context, id int64) (model.Product, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.gate
	}
	return s.MemoryStore.Get(ctx, id)
}

type fixture struct {
	svc    *Service
	store  *catalog.MemoryStore
	runs   *staging.MemoryStore[*Run]
	locker *staging.LocalLocker
}

func newFixture(t *testing.T, cat catalog.Store, store *catalog.MemoryStore, sheets SheetSource) fixture {
	t.Helper()
	runs := staging.NewMemoryStore[*Run](time.Hour, 0)
	t.Cleanup(runs.Close)
	locker := staging.NewLocalLocker()
	if sheets == nil {
		sheets = sheetFunc(func(context.Context, string) (fileio.Table, error) {
			return fileio.Table{}, errors.New("no network in tests")
		})
	}
	svc := New(cat, sheets, runs, locker, newTestEngine(t, model.DefaultPolicy()), zerolog.Nop())
	return fixture{svc: svc, store: store, runs: runs, locker: locker}
}

func newMemoryFixture(t *testing.T, sheets SheetSource) fixture {
	store := catalog.NewMemoryStore(testProducts()...)
	return newFixture(t, store, store, sheets)
}

func priceTable() *fileio.Table {
	return &fileio.Table{
		Headers: []string{"Marca", "Producto", "Precio"},
		Rows: []map[string]string{
			{"Marca": "Moval", "Producto": "ROPERO 3 PUERTAS BLANCO", "Precio": "150.000"},
			{"Marca": "Moval", "Producto": "Mesa de luz con espejo", "Precio": "45.500"},
			{"Marca": "Moval", "Producto": "Cama casal 140 eucalyptus", "Precio": "230.000"},
			{"Marca": "Moval", "Producto": "Sofa retratil", "Precio": "89.900"},
		},
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t, nil)

	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)
	assert.Equal(t, StateStaged, v.State)
	assert.Equal(t, []int64{1, 2, 5}, ids(v.Staged))
	require.Len(t, v.Unmatched, 1)
	assert.Equal(t, "Sofa retratil", v.Unmatched[0].Name)

	got, err := f.svc.GetRun(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = f.svc.GetRun(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrRunNotFound)
}

func TestAnalyzeSheetURL(t *testing.T) {
	ctx := context.Background()

	t.Run("fetched sheet", func(t *testing.T) {
		f := newMemoryFixture(t, sheetFunc(func(_ context.Context, url string) (fileio.Table, error) {
			assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc/edit", url)
			return *priceTable(), nil
		}))
		v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, SheetURL: "https://docs.google.com/spreadsheets/d/abc/edit"})
		require.NoError(t, err)
		assert.Len(t, v.Staged, 3)
	})

	t.Run("unsupported url is a warning", func(t *testing.T) {
		f := newMemoryFixture(t, sheetFunc(func(context.Context, string) (fileio.Table, error) {
			return fileio.Table{}, fmt.Errorf("%w: %q", fileio.ErrInvalidURL, "precios")
		}))
		v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, SheetURL: "precios"})
		require.NoError(t, err)
		assert.Equal(t, StateEmpty, v.State)
		assert.NotEmpty(t, v.Warnings)
	})

	t.Run("network failure is an error", func(t *testing.T) {
		f := newMemoryFixture(t, nil)
		_, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, SheetURL: "https://example.com/p.csv"})
		assert.Error(t, err)
	})

	t.Run("nothing provided", func(t *testing.T) {
		f := newMemoryFixture(t, nil)
		v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice})
		require.NoError(t, err)
		assert.Equal(t, StateEmpty, v.State)
		assert.NotEmpty(t, v.Warnings)
	})
}

func TestCommitPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t, nil)

	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)
	require.Len(t, v.Staged, 3)

	// товар пропал между анализом и записью
	f.store.Delete(5)

	res, err := f.svc.Commit(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpdatedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(5), res.Errors[0].ProductID)

	p, err := f.store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), p.Price)

	after, err := f.svc.GetRun(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, after.State)
	require.Len(t, after.Staged, 1)
	assert.Equal(t, int64(5), after.Staged[0].ProductID)
	assert.True(t, after.Staged[0].Selected)
}

func TestCommitOnlySelected(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t, nil)
	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)

	off := false
	_, err = f.svc.EditStaged(ctx, v.ID, 2, &off, nil)
	require.NoError(t, err)
	val := int64(49990)
	edited, err := f.svc.EditStaged(ctx, v.ID, 1, nil, &val)
	require.NoError(t, err)
	assert.True(t, edited.Staged[0].ManuallyEdited)

	res, err := f.svc.Commit(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpdatedCount)
	assert.Empty(t, res.Errors)

	p1, _ := f.store.Get(ctx, 1)
	p2, _ := f.store.Get(ctx, 2)
	assert.Equal(t, int64(49990), p1.Price)
	assert.Equal(t, int64(40000), p2.Price, "unselected row must not be written")
}

func TestCommitStoreDown(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore(testProducts()...)
	f := newFixture(t, failingStore{store}, store, nil)

	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)

	res, err := f.svc.Commit(ctx, v.ID)
	require.NoError(t, err)
	assert.Zero(t, res.UpdatedCount)
	assert.Len(t, res.Errors, 3)

	after, _ := f.svc.GetRun(ctx, v.ID)
	assert.Len(t, after.Staged, 3)
}

func TestCommitInterruptedKeepsWrittenRows(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore(testProducts()...)
	f := newFixture(t, interruptedStore{store}, store, nil)

	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 5}, ids(v.Staged))

	res, err := f.svc.Commit(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, int64(2), res.Errors[0].ProductID)
	assert.Equal(t, int64(5), res.Errors[1].ProductID)
	assert.Contains(t, res.Errors[0].Error, context.Canceled.Error())

	p1, _ := f.store.Get(ctx, 1)
	assert.Equal(t, int64(150000), p1.Price)

	// записанный товар ушёл из прогона, остальные ждут повтора
	after, _ := f.svc.GetRun(ctx, v.ID)
	assert.Equal(t, []int64{2, 5}, ids(after.Staged))
	for _, r := range after.Staged {
		assert.True(t, r.Selected)
	}
}

func TestCommitLocked(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t, nil)
	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)

	lock, err := f.locker.Obtain(ctx, "commit:price", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Commit(ctx, v.ID)
	assert.ErrorIs(t, err, model.ErrCommitInProgress)
	after, _ := f.svc.GetRun(ctx, v.ID)
	assert.Equal(t, StateStaged, after.State)

	require.NoError(t, lock.Release(ctx))
	res, err := f.svc.Commit(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.UpdatedCount)
}

func TestCommitResultsNothingSelected(t *testing.T) {
	f := newMemoryFixture(t, nil)
	res, err := f.svc.CommitResults(context.Background(), model.ModeCost, []model.MatchResult{{ProductID: 1, ProposedValue: 5}})
	require.NoError(t, err)
	assert.Zero(t, res.UpdatedCount)
	assert.Empty(t, res.Errors)
}

func TestBind(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t, nil)
	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: priceTable()})
	require.NoError(t, err)

	_, err = f.svc.Bind(ctx, v.ID, 0, 99, "")
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = f.svc.Bind(ctx, v.ID, 3, 6, "Renamed")
	assert.ErrorIs(t, err, model.ErrEntryNotFound)
	p6, _ := f.store.Get(ctx, 6)
	assert.Equal(t, "Roupeiro Blanco Brillo", p6.Name, "failed bind must not rename")

	mr, err := f.svc.Bind(ctx, v.ID, 0, 6, "Sofa Retratil Blanco")
	require.NoError(t, err)
	assert.Equal(t, "Sofa Retratil Blanco", mr.ProductName)
	assert.Equal(t, int64(89900), mr.ProposedValue)

	p6, _ = f.store.Get(ctx, 6)
	assert.Equal(t, "Sofa Retratil Blanco", p6.Name)

	after, _ := f.svc.GetRun(ctx, v.ID)
	assert.Empty(t, after.Unmatched)
	assert.Len(t, after.Staged, 4)
}

func TestBindConcurrent(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore(testProducts()...)
	gated := &gatedStore{MemoryStore: store, entered: make(chan struct{}), gate: make(chan struct{})}
	f := newFixture(t, gated, store, nil)

	tbl := priceTable()
	tbl.Rows = append(tbl.Rows, map[string]string{"Marca": "Moval", "Producto": "Banqueta alta", "Precio": "10.000"})
	v, err := f.svc.Analyze(ctx, AnalyzeRequest{Mode: model.ModePrice, Table: tbl})
	require.NoError(t, err)
	require.Len(t, v.Unmatched, 2)
	require.Equal(t, "Sofa retratil", v.Unmatched[0].Name)

	type outcome struct {
		mr  model.MatchResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		mr, err := f.svc.Bind(ctx, v.ID, 0, 4, "Sofa Retratil Nogal")
		first <- outcome{mr, err}
	}()
	<-gated.entered

	second := make(chan outcome, 1)
	go func() {
		mr, err := f.svc.Bind(ctx, v.ID, 0, 6, "")
		second <- outcome{mr, err}
	}()
	close(gated.gate)

	a := <-first
	require.NoError(t, a.err)
	assert.Equal(t, "Sofa retratil", a.mr.SheetName)
	assert.Equal(t, int64(89900), a.mr.ProposedValue)
	assert.Equal(t, int64(4), a.mr.ProductID)

	b := <-second
	require.NoError(t, b.err)
	assert.Equal(t, "Banqueta alta", b.mr.SheetName)
	assert.Equal(t, int64(10000), b.mr.ProposedValue)
	assert.Equal(t, int64(6), b.mr.ProductID)

	p4, _ := store.Get(ctx, 4)
	assert.Equal(t, "Sofa Retratil Nogal", p4.Name)

	after, _ := f.svc.GetRun(ctx, v.ID)
	assert.Empty(t, after.Unmatched)
}

func TestSuggest(t *testing.T) {
	f := newMemoryFixture(t, nil)
	got, err := f.svc.Suggest(context.Background(), "roupeiro", "moval", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, int64(1), got[0].Product.ID)
}
