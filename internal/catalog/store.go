// Package catalog: хранилище товаров, против которого сверяются прайсы.
package catalog

import (
	"context"

	"catalog-recon/internal/reconcile/model"
)

// Store: всё, что сверке нужно от каталога.
// BulkUpdate допускает частичный успех: ошибки по товарам в BulkResult.Errors,
// error возвращается, только если запрос не выполнен целиком.
type Store interface {
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id int64) (model.Product, error)
	BulkUpdate(ctx context.Context, mode model.Mode, items []model.ValueUpdate) (model.BulkResult, error)
	Update(ctx context.Context, id int64, patch model.ProductPatch) (model.Product, error)
}
