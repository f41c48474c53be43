package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store is the remote order store.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	// Update persists the status fields of o. It fails with ErrStaleOrder
	// unless the stored history is exactly one entry shorter than o's.
	Update(ctx context.Context, id string, o Order) (Order, error)
	List(ctx context.Context, filter Filter) ([]Order, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

const orderColumns = `
	id, user_id, line_items, shipping_address, order_date,
	order_status, payment_status, payment_method, payment_details,
	total_amount, platform_fee, shipping_fee, taxes, discount, final_amount,
	status_history, tracking_id, estimated_delivery, created_at, updated_at
`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Store {
	return &repository{db: db}
}

// ✅ Insert a new order
func (r *repository) Create(ctx context.Context, o Order) (Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "Create"),
		zap.String("order_id", o.ID),
	)

	items, address, details, history, err := encodeDocuments(o)
	if err != nil {
		return Order{}, err
	}

	q := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING ` + orderColumns

	row := r.db.QueryRowContext(ctx, q,
		o.ID, o.UserID, items, address, o.OrderDate,
		o.Status, o.PaymentStatus, o.PaymentMethod, details,
		o.TotalAmount, o.PlatformFee, o.ShippingFee, o.Taxes, o.Discount, o.FinalAmount,
		history, o.TrackingID, o.EstimatedDelivery, o.CreatedAt, o.UpdatedAt,
	)

	out, err := scanOrder(row)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return Order{}, apperr.Upstream("create order", err)
	}

	log.Info("order inserted", zap.Int64("final_amount", out.FinalAmount))
	return out, nil
}

// ✅ Get a single order
func (r *repository) Get(ctx context.Context, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	out, err := scanOrder(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get order",
			zap.String("repo", "Order"),
			zap.String("order_id", id),
			zap.Error(err),
		)
		return Order{}, apperr.Upstream("get order", err)
	}
	return out, nil
}

// ✅ Persist a status transition
func (r *repository) Update(ctx context.Context, id string, o Order) (Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "Update"),
		zap.String("order_id", id),
	)

	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return Order{}, fmt.Errorf("encode status history: %w", err)
	}

	q := `
		UPDATE orders
		SET order_status = $2,
		    payment_status = $3,
		    status_history = $4,
		    updated_at = $5
		WHERE id = $1
		  AND jsonb_array_length(status_history) = $6
		RETURNING ` + orderColumns

	out, err := scanOrder(r.db.QueryRowContext(ctx, q,
		id, o.Status, o.PaymentStatus, history, o.UpdatedAt, len(o.StatusHistory)-1,
	))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return Order{}, getErr
		}
		log.Warn("stale order update rejected")
		return Order{}, ErrStaleOrder
	}
	if err != nil {
		log.Error("failed to update order", zap.Error(err))
		return Order{}, apperr.Upstream("update order", err)
	}

	return out, nil
}

// ✅ List orders
func (r *repository) List(ctx context.Context, filter Filter) ([]Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "List"),
		zap.Int("limit", limit),
		zap.Int("offset", offset),
	)

	// ---------- BASE QUERY ----------
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`

	args := []any{}
	argIndex := 1

	// ---------- FILTERING ----------
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
		argIndex++
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += fmt.Sprintf(" AND order_status = ANY($%d)", argIndex)
		args = append(args, pq.Array(statuses))
		argIndex++
	}

	// ---------- SORTING & PAGINATION ----------
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, apperr.Upstream("list orders", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, apperr.Upstream("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, apperr.Upstream("list orders", err)
	}

	log.Debug("get orders success", zap.Int("count", len(orders)))
	return orders, nil
}

func encodeDocuments(o Order) (items, address, details, history []byte, err error) {
	if items, err = json.Marshal(o.LineItems); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode line items: %w", err)
	}
	if address, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode shipping address: %w", err)
	}
	if details, err = json.Marshal(o.PaymentDetails); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode payment details: %w", err)
	}
	if history, err = json.Marshal(o.StatusHistory); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode status history: %w", err)
	}
	return items, address, details, history, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (Order, error) {
	var o Order
	var items, address, details, history []byte
	err := s.Scan(
		&o.ID, &o.UserID, &items, &address, &o.OrderDate,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod, &details,
		&o.TotalAmount, &o.PlatformFee, &o.ShippingFee, &o.Taxes, &o.Discount, &o.FinalAmount,
		&history, &o.TrackingID, &o.EstimatedDelivery, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}

	if err := json.Unmarshal(items, &o.LineItems); err != nil {
		return Order{}, fmt.Errorf("decode line items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return Order{}, fmt.Errorf("decode shipping address: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &o.PaymentDetails); err != nil {
			return Order{}, fmt.Errorf("decode payment details: %w", err)
		}
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return Order{}, fmt.Errorf("decode status history: %w", err)
	}

	return o, nil
}
