package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"catalog-recon/internal/fileio"
	"catalog-recon/internal/reconcile/model"
	recSvc "catalog-recon/internal/reconcile/service"
)

// Reconcile возвращает http.HandlerFunc, чтобы вы могли вызвать его как
// r.Post("/reconcile", recHnd.Reconcile(svc, maxUploadMB)) в роутере.
// Прайс приходит файлом (multipart "file") или ссылкой ("sheet_url").
func Reconcile(svc *recSvc.Service, maxUploadMB int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := zerolog.Ctx(r.Context())

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if err := r.ParseMultipartForm(int64(maxUploadMB) << 20); err != nil {
				writeError(w, http.StatusBadRequest, "bad multipart form: "+err.Error())
				return
			}
		} else if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad form: "+err.Error())
			return
		}

		mode := model.ModePrice
		if raw := r.FormValue("mode"); raw != "" {
			m, ok := model.ParseMode(raw)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown mode: "+raw)
				return
			}
			mode = m
		}

		req := recSvc.AnalyzeRequest{
			Mode:     mode,
			Options:  model.Options{ApplyAllVariants: toBool(r.FormValue("apply_all_variants"), false)},
			SheetURL: strings.TrimSpace(r.FormValue("sheet_url")),
		}

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			tbl, err := fileio.ReadAny(file, header.Filename, atoi(r.FormValue("header_row"), 1))
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read sheet: "+err.Error())
				return
			}
			req.Table = &tbl
		case req.SheetURL == "":
			writeError(w, http.StatusBadRequest, "either file or sheet_url is required")
			return
		}

		view, err := svc.Analyze(r.Context(), req)
		if err != nil {
			log.Error().Err(err).Msg("analyze")
			writeErr(w, err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, view)

		log.Debug().
			Str("run", view.ID).
			Dur("elapsed", time.Since(start)).
			Msg("reconcile done")
	}
}

func GetRun(svc *recSvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type stagedPatch struct {
	Selected *bool  `json:"selected"`
	Value    *int64 `json:"value" validate:"omitempty,gt=0"`
}

// UpdateStaged: галочка и/или ручная сумма одной строки.
func UpdateStaged(svc *recSvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad product id")
			return
		}
		var body stagedPatch
		if !readJSON(w, r, &body) {
			return
		}
		if body.Selected == nil && body.Value == nil {
			writeError(w, http.StatusBadRequest, "nothing to update")
			return
		}
		view, err := svc.EditStaged(r.Context(), chi.URLParam(r, "id"), productID, body.Selected, body.Value)
		if err != nil {
			writeErr(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type bindRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Rename    string `json:"rename" validate:"max=200"`
}

// Bind: ручная привязка несопоставленной строки (index из списка unmatched).
func Bind(svc *recSvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad index")
			return
		}
		var body bindRequest
		if !readJSON(w, r, &body) {
			return
		}
		mr, err := svc.Bind(r.Context(), chi.URLParam(r, "id"), index, body.ProductID, body.Rename)
		if err != nil {
			writeErr(w, err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, mr)
	}
}

func Commit(svc *recSvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Commit(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Suggest: поиск по каталогу для ручной привязки.
func Suggest(svc *recSvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		limit := atoi(r.URL.Query().Get("limit"), 10)
		if limit <= 0 || limit > 100 {
			limit = 10
		}
		out, err := svc.Suggest(r.Context(), q, r.URL.Query().Get("brand"), limit)
		if err != nil {
			writeErr(w, err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
