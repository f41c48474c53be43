package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// RecordStore is the remote record store behind a reference store.
type RecordStore interface {
	List(ctx context.Context, userID string) ([]Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id string, rec Record) (Record, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db    *sql.DB
	table Table
}

// NewRepository returns a Postgres record store over table.
func NewRepository(db *sql.DB, table Table) RecordStore {
	return &repository{db: db, table: table}
}

func (r *repository) log(ctx context.Context, method string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("repo", string(r.table)),
		zap.String("method", method),
	)
}

func (r *repository) List(ctx context.Context, userID string) ([]Record, error) {
	log := r.log(ctx, "List").With(zap.String("user_id", userID))

	q := fmt.Sprintf(`
		SELECT id, product_id, user_id, quantity, added_at
		FROM %s
		WHERE user_id = $1
		ORDER BY added_at ASC, id ASC
	`, r.table)

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, apperr.Upstream("list "+string(r.table), err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.UserID, &rec.Quantity, &rec.AddedAt); err != nil {
			log.Error("scan failed", zap.Error(err))
			return nil, apperr.Upstream("scan "+string(r.table), err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Upstream("iterate "+string(r.table), err)
	}

	return records, nil
}

func (r *repository) Create(ctx context.Context, rec Record) (Record, error) {
	log := r.log(ctx, "Create").With(
		zap.String("user_id", rec.UserID),
		zap.String("product_id", rec.ProductID),
	)

	q := fmt.Sprintf(`
		INSERT INTO %s (id, product_id, user_id, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, product_id, user_id, quantity, added_at
	`, r.table)

	var out Record
	err := r.db.QueryRowContext(ctx, q, rec.ID, rec.ProductID, rec.UserID, rec.Quantity, rec.AddedAt).
		Scan(&out.ID, &out.ProductID, &out.UserID, &out.Quantity, &out.AddedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			log.Warn("duplicate reference")
			return Record{}, ErrAlreadyListed
		}
		log.Error("insert failed", zap.Error(err))
		return Record{}, apperr.Upstream("create "+string(r.table), err)
	}

	return out, nil
}

func (r *repository) Update(ctx context.Context, id string, rec Record) (Record, error) {
	log := r.log(ctx, "Update").With(zap.String("id", id))

	q := fmt.Sprintf(`
		UPDATE %s
		SET quantity = $2
		WHERE id = $1
		RETURNING id, product_id, user_id, quantity, added_at
	`, r.table)

	var out Record
	err := r.db.QueryRowContext(ctx, q, id, rec.Quantity).
		Scan(&out.ID, &out.ProductID, &out.UserID, &out.Quantity, &out.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		log.Error("update failed", zap.Error(err))
		return Record{}, apperr.Upstream("update "+string(r.table), err)
	}

	return out, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	log := r.log(ctx, "Delete").With(zap.String("id", id))

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		log.Error("delete failed", zap.Error(err))
		return apperr.Upstream("delete "+string(r.table), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Upstream("delete "+string(r.table), err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
