package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"catalog-recon/internal/reconcile/model"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// PostgresStore: таблица products(id, name, brand, price, cost, stock).
// price/cost хранятся как numeric, читаются через decimal и округляются до целых.
type PostgresStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenPostgres подключается с ретраями: БД в docker-compose поднимается позже сервиса.
func OpenPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				return &PostgresStore{db: db, log: log}, nil
			}
			_ = db.Close()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("postgres not ready")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}
	return nil, fmt.Errorf("postgres connect: %w", lastErr)
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const selectProduct = `SELECT id, name, brand, price, cost, stock FROM products`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (model.Product, error) {
	var (
		p           model.Product
		price, cost decimal.Decimal
		brand       sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Name, &brand, &price, &cost, &p.Stock); err != nil {
		return model.Product{}, err
	}
	p.Brand = brand.String
	p.Price = price.Round(0).IntPart()
	p.Cost = cost.Round(0).IntPart()
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, selectProduct+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (model.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, selectProduct+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, fmt.Errorf("%w: %d", model.ErrProductNotFound, id)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func valueColumn(mode model.Mode) string {
	if mode == model.ModeCost {
		return "cost"
	}
	return "price"
}

// BulkUpdate: отдельный UPDATE на товар, без общей транзакции: частичный успех допустим.
func (s *PostgresStore) BulkUpdate(ctx context.Context, mode model.Mode, items []model.ValueUpdate) (model.BulkResult, error) {
	q := `UPDATE products SET ` + valueColumn(mode) + ` = $1 WHERE id = $2`
	return applyEach(ctx, items, func(ctx context.Context, it model.ValueUpdate) (int64, error) {
		r, err := s.db.ExecContext(ctx, q, decimal.NewFromInt(it.Value), it.ProductID)
		if err != nil {
			s.log.Warn().Err(err).Int64("product_id", it.ProductID).Msg("update failed")
			return 0, err
		}
		return r.RowsAffected()
	})
}

// applyEach пишет товары по одному. Отмена ctx посреди пачки не теряет уже
// записанное: остаток уходит в Errors, error только если не записано ничего.
func applyEach(ctx context.Context, items []model.ValueUpdate, exec func(context.Context, model.ValueUpdate) (int64, error)) (model.BulkResult, error) {
	res := model.BulkResult{Updated: []int64{}, Errors: []model.ItemError{}}
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			if i == 0 {
				return res, err
			}
			for _, rest := range items[i:] {
				res.Errors = append(res.Errors, model.ItemError{ProductID: rest.ProductID, Error: err.Error()})
			}
			return res, nil
		}
		n, err := exec(ctx, it)
		if err != nil {
			res.Errors = append(res.Errors, model.ItemError{ProductID: it.ProductID, Error: err.Error()})
			continue
		}
		if n == 0 {
			res.Errors = append(res.Errors, model.ItemError{ProductID: it.ProductID, Error: model.ErrProductNotFound.Error()})
			continue
		}
		res.Updated = append(res.Updated, it.ProductID)
	}
	return res, nil
}

// patchClauses собирает SET-часть UPDATE и аргументы; id всегда последний аргумент.
func patchClauses(patch model.ProductPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", strings.TrimSpace(*patch.Name))
	}
	if patch.Price != nil {
		add("price", decimal.NewFromInt(*patch.Price))
	}
	if patch.Cost != nil {
		add("cost", decimal.NewFromInt(*patch.Cost))
	}
	return strings.Join(sets, ", "), args
}

func (s *PostgresStore) Update(ctx context.Context, id int64, patch model.ProductPatch) (model.Product, error) {
	set, args := patchClauses(patch)
	if set == "" {
		return s.Get(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING id, name, brand, price, cost, stock`, set, len(args))
	p, err := scanProduct(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, fmt.Errorf("%w: %d", model.ErrProductNotFound, id)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return p, nil
}
