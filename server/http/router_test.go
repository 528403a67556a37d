package serverhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-recon/internal/catalog"
	"catalog-recon/internal/config"
	"catalog-recon/internal/fileio"
	"catalog-recon/internal/reconcile/model"
	recSvc "catalog-recon/internal/reconcile/service"
	"catalog-recon/internal/staging"
)

type noSheets struct{}

func (noSheets) Fetch(context.Context, string) (fileio.Table, error) {
	return fileio.Table{}, fileio.ErrInvalidURL
}

func newTestServer(t *testing.T) (*httptest.Server, *catalog.MemoryStore) {
	t.Helper()
	store := catalog.NewMemoryStore(
		model.Product{ID: 1, Brand: "Moval", Name: "ROUPEIRO 3P BLANCO", Price: 140000},
		model.Product{ID: 2, Brand: "Moval", Name: "Criado Mudo", Price: 40000},
		model.Product{ID: 3, Brand: "Moval", Name: "Sofa 3 Lugares", Price: 300000},
	)
	engine, err := recSvc.NewEngine(recSvc.DefaultDictionary(), model.DefaultPolicy())
	require.NoError(t, err)
	runs := staging.NewMemoryStore[*recSvc.Run](time.Hour, 0)
	t.Cleanup(runs.Close)
	svc := recSvc.New(store, noSheets{}, runs, staging.NewLocalLocker(), engine, zerolog.Nop())

	cfg := config.Config{AllowOrigins: []string{"*"}, MaxUploadMB: 1}
	srv := httptest.NewServer(NewRouter(cfg, zerolog.Nop(), svc))
	t.Cleanup(srv.Close)
	return srv, store
}

func upload(t *testing.T, url, filename, content string, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))
}

func TestReviewFlow(t *testing.T) {
	srv, store := newTestServer(t)
	csv := "Marca;Artículo;Precio Web\n" +
		"Moval;ROPERO 3 PUERTAS BLANCO;150.000\n" +
		"Moval;Mesa de luz con espejo;45.500\n" +
		"Moval;Sofa retratil;320.000\n"

	resp := upload(t, srv.URL+"/reconcile", "lista.csv", csv, map[string]string{"mode": "price"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decode[recSvc.RunView](t, resp)
	assert.Equal(t, recSvc.StateStaged, run.State)
	require.Len(t, run.Staged, 2)
	require.Len(t, run.Unmatched, 1)

	// ручная правка суммы
	resp = doJSON(t, http.MethodPatch, srv.URL+"/runs/"+run.ID+"/staged/2", `{"value": 47000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run = decode[recSvc.RunView](t, resp)
	assert.True(t, run.Staged[1].ManuallyEdited)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/runs/"+run.ID+"/staged/2", `{"value": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPatch, srv.URL+"/runs/"+run.ID+"/staged/99", `{"selected": false}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// поиск и привязка
	resp, err := http.Get(srv.URL + "/products/suggest?q=sofa&limit=3")
	require.NoError(t, err)
	sugg := decode[[]recSvc.Suggestion](t, resp)
	require.NotEmpty(t, sugg)
	assert.Equal(t, int64(3), sugg[0].Product.ID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/runs/"+run.ID+"/unmatched/0/bind", `{"productId": 3, "rename": "Sofa 3 Lugares Retratil"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mr := decode[model.MatchResult](t, resp)
	assert.Equal(t, model.MethodManual, mr.Method)

	resp = doJSON(t, http.MethodPost, srv.URL+"/runs/"+run.ID+"/commit", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[model.CommitResult](t, resp)
	assert.Equal(t, 3, res.UpdatedCount)
	assert.Empty(t, res.Errors)

	ctx := context.Background()
	p1, _ := store.Get(ctx, 1)
	p2, _ := store.Get(ctx, 2)
	p3, _ := store.Get(ctx, 3)
	assert.Equal(t, int64(150000), p1.Price)
	assert.Equal(t, int64(47000), p2.Price)
	assert.Equal(t, int64(320000), p3.Price)
	assert.Equal(t, "Sofa 3 Lugares Retratil", p3.Name)

	resp, err = http.Get(srv.URL + "/runs/" + run.ID)
	require.NoError(t, err)
	after := decode[recSvc.RunView](t, resp)
	assert.Equal(t, recSvc.StateIdle, after.State)
	assert.Empty(t, after.Staged)
	require.NotNil(t, after.LastCommit)
}

func TestReconcileErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("unknown mode", func(t *testing.T) {
		resp := upload(t, srv.URL+"/reconcile", "a.csv", "Producto,Precio\nCama,1\n", map[string]string{"mode": "stock"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unsupported file", func(t *testing.T) {
		resp := upload(t, srv.URL+"/reconcile", "a.pdf", "%PDF", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("no file and no url", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/reconcile", map[string][]string{"mode": {"cost"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad url is a warning", func(t *testing.T) {
		resp, err := http.PostForm(srv.URL+"/reconcile", map[string][]string{"sheet_url": {"precios"}})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		run := decode[recSvc.RunView](t, resp)
		assert.Equal(t, recSvc.StateEmpty, run.State)
		assert.NotEmpty(t, run.Warnings)
	})

	t.Run("missing columns", func(t *testing.T) {
		resp := upload(t, srv.URL+"/reconcile", "a.csv", "Foo,Bar\n1,2\n", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		run := decode[recSvc.RunView](t, resp)
		assert.Equal(t, recSvc.StateEmpty, run.State)
		assert.NotEmpty(t, run.Warnings)
	})

	t.Run("unknown run", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/runs/nope")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body := decode[map[string]string](t, resp)
		assert.Contains(t, body["error"], "run not found")
	})
}
