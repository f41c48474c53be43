package catalog

import (
	"context"
	"database/sql"
	"errors"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/logger"

	"go.uber.org/zap"
)

// Lookup fetches full product details by id.
type Lookup interface {
	Get(ctx context.Context, productID string) (Product, error)
}

// Inventory mutates stock and promotional sales counters. Both operations are
// keyed by order so that a retried call for the same order is a no-op.
type Inventory interface {
	DecrementStock(ctx context.Context, orderID, productID string, qty int) (StockResult, error)
	IncrementSales(ctx context.Context, orderID, productID string, qty int) ([]string, error)
}

type Repository interface {
	Lookup
	Inventory
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, productID string) (Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Catalog"),
		zap.String("method", "Get"),
		zap.String("product_id", productID),
	)

	const q = `
		SELECT id, title, author, price, image_url, category, display_stock, updated_at
		FROM books
		WHERE id = $1
	`

	var p Product
	err := r.db.QueryRowContext(ctx, q, productID).Scan(
		&p.ID, &p.Title, &p.Author, &p.Price, &p.ImageURL,
		&p.Category, &p.DisplayStock, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return Product{}, apperr.Upstream("get product", err)
	}

	return p, nil
}

func (r *repository) DecrementStock(ctx context.Context, orderID, productID string, qty int) (StockResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Catalog"),
		zap.String("method", "DecrementStock"),
		zap.String("order_id", orderID),
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return StockResult{}, apperr.Upstream("begin stock tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (order_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO NOTHING
	`, orderID, productID, qty)
	if err != nil {
		log.Error("record stock movement failed", zap.Error(err))
		return StockResult{}, apperr.Upstream("record stock movement", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return StockResult{}, apperr.Upstream("record stock movement", err)
	}

	result := StockResult{ProductID: productID, Applied: inserted > 0}
	if inserted == 0 {
		err = tx.QueryRowContext(ctx, `SELECT display_stock FROM books WHERE id = $1`, productID).
			Scan(&result.Remaining)
	} else {
		err = tx.QueryRowContext(ctx, `
			UPDATE books
			SET display_stock = GREATEST(display_stock - $2, 0), updated_at = NOW()
			WHERE id = $1
			RETURNING display_stock
		`, productID, qty).Scan(&result.Remaining)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return StockResult{}, ErrProductNotFound
	}
	if err != nil {
		log.Error("update stock failed", zap.Error(err))
		return StockResult{}, apperr.Upstream("update stock", err)
	}

	if err := tx.Commit(); err != nil {
		return StockResult{}, apperr.Upstream("commit stock tx", err)
	}

	if !result.Applied {
		log.Info("stock decrement already applied")
	}
	return result, nil
}

// IncrementSales bumps the sales counter of every promotion the product is a
// member of and returns those promotions. A product outside every promotion
// yields an empty slice and no error.
func (r *repository) IncrementSales(ctx context.Context, orderID, productID string, qty int) ([]string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Catalog"),
		zap.String("method", "IncrementSales"),
		zap.String("order_id", orderID),
		zap.String("product_id", productID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Upstream("begin sales tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sales_movements (order_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO NOTHING
	`, orderID, productID, qty)
	if err != nil {
		log.Error("record sales movement failed", zap.Error(err))
		return nil, apperr.Upstream("record sales movement", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Upstream("record sales movement", err)
	}
	if inserted == 0 {
		log.Info("sales increment already applied")
		return []string{}, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE promotion_members
		SET sales_count = sales_count + $2
		WHERE product_id = $1
		RETURNING promotion
	`, productID, qty)
	if err != nil {
		log.Error("update sales counters failed", zap.Error(err))
		return nil, apperr.Upstream("update sales counters", err)
	}

	promotions := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, apperr.Upstream("scan promotion", err)
		}
		promotions = append(promotions, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, apperr.Upstream("iterate promotions", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, apperr.Upstream("commit sales tx", err)
	}
	return promotions, nil
}
