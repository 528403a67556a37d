package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"catalog-recon/internal/catalog"
	"catalog-recon/internal/fileio"
	"catalog-recon/internal/reconcile/model"
	"catalog-recon/internal/staging"
)

const defaultLockTTL = 2 * time.Minute

// SheetSource: откуда берётся прайс по ссылке (Google Sheets, прямой файл).
type SheetSource interface {
	Fetch(ctx context.Context, url string) (fileio.Table, error)
}

// RunStore: хранилище прогонов между анализом и записью.
type RunStore interface {
	Put(id string, r *Run)
	Get(id string) (*Run, bool)
}

// Service оборачивает Engine в I/O: каталог, прайс, прогоны и запись.
type Service struct {
	catalog catalog.Store
	sheets  SheetSource
	runs    RunStore
	locker  staging.Locker
	engine  *Engine
	log     zerolog.Logger
	lockTTL time.Duration
}

func New(cat catalog.Store, sheets SheetSource, runs RunStore, locker staging.Locker, engine *Engine, log zerolog.Logger) *Service {
	return &Service{
		catalog: cat,
		sheets:  sheets,
		runs:    runs,
		locker:  locker,
		engine:  engine,
		log:     log,
		lockTTL: defaultLockTTL,
	}
}

// AnalyzeRequest: либо загруженная таблица, либо ссылка на неё.
type AnalyzeRequest struct {
	Mode     model.Mode
	Options  model.Options
	SheetURL string
	Table    *fileio.Table
}

// Analyze создаёт прогон и сразу сверяет прайс с текущим снимком каталога.
// Неподдерживаемая ссылка даёт предупреждение и пустой прогон; сетевые сбои и сбои каталога возвращаются ошибкой.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (RunView, error) {
	start := time.Now()
	run := newRun(req.Mode)
	s.runs.Put(run.ID(), run)

	tbl := req.Table
	if tbl == nil {
		if strings.TrimSpace(req.SheetURL) == "" {
			run.stage(model.Result{Warnings: []string{"no sheet provided"}})
			return run.View(), nil
		}
		fetched, err := s.sheets.Fetch(ctx, req.SheetURL)
		if errors.Is(err, fileio.ErrInvalidURL) {
			run.stage(model.Result{Warnings: []string{err.Error()}})
			return run.View(), nil
		}
		if err != nil {
			run.stage(model.Result{Warnings: []string{"sheet fetch failed"}})
			return RunView{}, fmt.Errorf("fetch sheet: %w", err)
		}
		tbl = &fetched
	}

	products, err := s.catalog.List(ctx)
	if err != nil {
		run.stage(model.Result{Warnings: []string{"catalog unavailable"}})
		return RunView{}, fmt.Errorf("list catalog: %w", err)
	}

	res := s.engine.Reconcile(tbl.Headers, tbl.Rows, products, req.Mode, req.Options)
	run.stage(res)

	s.logger(ctx).Info().
		Str("run", run.ID()).
		Str("mode", string(req.Mode)).
		Int("rows", len(tbl.Rows)).
		Int("staged", len(res.Staged)).
		Int("unmatched", len(res.Unmatched)).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("sheet analyzed")
	return run.View(), nil
}

func (s *Service) run(id string) (*Run, error) {
	r, ok := s.runs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrRunNotFound, id)
	}
	return r, nil
}

func (s *Service) GetRun(ctx context.Context, id string) (RunView, error) {
	r, err := s.run(id)
	if err != nil {
		return RunView{}, err
	}
	return r.View(), nil
}

// EditStaged: переключение галочки и/или ручная правка суммы.
func (s *Service) EditStaged(ctx context.Context, runID string, productID int64, selected *bool, value *int64) (RunView, error) {
	r, err := s.run(runID)
	if err != nil {
		return RunView{}, err
	}
	if value != nil {
		if err := r.EditValue(productID, *value); err != nil {
			return RunView{}, err
		}
	}
	if selected != nil {
		if err := r.SetSelected(productID, *selected); err != nil {
			return RunView{}, err
		}
	}
	return r.View(), nil
}

// Bind привязывает несопоставленную строку к товару; rename заодно переименовывает товар в каталоге.
func (s *Service) Bind(ctx context.Context, runID string, index int, productID int64, rename string) (model.MatchResult, error) {
	r, err := s.run(runID)
	if err != nil {
		return model.MatchResult{}, err
	}
	r.bindMu.Lock()
	defer r.bindMu.Unlock()

	entry, err := r.canBind(index)
	if err != nil {
		return model.MatchResult{}, err
	}
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return model.MatchResult{}, err
	}
	if name := strings.TrimSpace(rename); name != "" && name != p.Name {
		p, err = s.catalog.Update(ctx, productID, model.ProductPatch{Name: &name})
		if err != nil {
			return model.MatchResult{}, fmt.Errorf("rename product %d: %w", productID, err)
		}
	}
	return r.bind(index, entry, p)
}

// Commit записывает выбранные строки прогона. Записанные уходят из staged,
// упавшие остаются выбранными для повтора.
func (s *Service) Commit(ctx context.Context, runID string) (model.CommitResult, error) {
	r, err := s.run(runID)
	if err != nil {
		return model.CommitResult{}, err
	}
	rows, err := r.beginCommit()
	if err != nil {
		return model.CommitResult{}, err
	}
	res, err := s.CommitResults(ctx, r.Mode(), rows)
	if err != nil {
		r.abortCommit()
		return model.CommitResult{}, err
	}
	r.finishCommit(rows, res)
	return res, nil
}

// CommitResults отправляет в каталог только selected-строки.
// Ошибка возвращается лишь когда запись не началась (лок занят).
// Если каталог вернул ошибку, записанное им всё равно учитывается,
// а товары без ответа получают эту ошибку.
func (s *Service) CommitResults(ctx context.Context, mode model.Mode, results []model.MatchResult) (model.CommitResult, error) {
	out := model.CommitResult{Errors: []model.ItemError{}}
	items := make([]model.ValueUpdate, 0, len(results))
	for _, r := range results {
		if r.Selected {
			items = append(items, model.ValueUpdate{ProductID: r.ProductID, Value: r.ProposedValue})
		}
	}
	if len(items) == 0 {
		return out, nil
	}

	lock, err := s.locker.Obtain(ctx, "commit:"+string(mode), s.lockTTL)
	if err != nil {
		if errors.Is(err, staging.ErrLocked) {
			return out, fmt.Errorf("%w: %s", model.ErrCommitInProgress, mode)
		}
		return out, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger(ctx).Warn().Err(err).Msg("release commit lock")
		}
	}()

	log := s.logger(ctx)
	bulk, err := s.catalog.BulkUpdate(ctx, mode, items)
	out.UpdatedCount = len(bulk.Updated)
	out.Errors = append(out.Errors, bulk.Errors...)
	if err != nil {
		log.Error().Err(err).Int("items", len(items)).Int("updated", out.UpdatedCount).Msg("bulk update failed")
		answered := make(map[int64]bool, len(bulk.Updated)+len(bulk.Errors))
		for _, id := range bulk.Updated {
			answered[id] = true
		}
		for _, e := range bulk.Errors {
			answered[e.ProductID] = true
		}
		for _, it := range items {
			if !answered[it.ProductID] {
				out.Errors = append(out.Errors, model.ItemError{ProductID: it.ProductID, Error: err.Error()})
			}
		}
	}
	for _, e := range out.Errors {
		log.Warn().Int64("product", e.ProductID).Str("error", e.Error).Msg("product not updated")
	}
	log.Info().
		Str("mode", string(mode)).
		Int("updated", out.UpdatedCount).
		Int("failed", len(out.Errors)).
		Msg("commit done")
	return out, nil
}

// Suggest: ручной поиск товара для привязки несопоставленной строки.
func (s *Service) Suggest(ctx context.Context, query, brand string, limit int) ([]Suggestion, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	m := s.engine.Matcher()
	return m.Rank(query, brand, m.Prepare(products), limit), nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}
