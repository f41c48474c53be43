// Package payment simulates the payment processor used at checkout.
package payment

import (
	"context"
	"fmt"
	"time"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
)

type Result struct {
	TransactionID string   `json:"transactionId"`
	Status        Status   `json:"status"`
	Method        Method   `json:"method"`
	Amount        int64    `json:"amount"`
	Instructions  []string `json:"instructions,omitempty"`
}

type Processor interface {
	Process(ctx context.Context, method Method, amount int64, data map[string]string) (Result, error)
}

// Simulator always succeeds after a fixed delay. Cash on delivery returns
// immediately with a pending status.
type Simulator struct {
	delay time.Duration
	newID func() string
}

func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{delay: delay, newID: uuid.NewString}
}

func (s *Simulator) Process(ctx context.Context, method Method, amount int64, data map[string]string) (Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Payment"),
		zap.String("method", "Process"),
		zap.String("payment_method", string(method)),
		zap.Int64("amount", amount),
	)

	if _, ok := methods[method]; !ok {
		return Result{}, ErrUnknownMethod
	}
	if amount < 0 {
		return Result{}, fmt.Errorf("%w: negative amount", apperr.ErrInvalidInput)
	}

	res := Result{
		TransactionID: "TXN-" + s.newID(),
		Status:        StatusSuccess,
		Method:        method,
		Amount:        amount,
	}

	if method.IsCashOnDelivery() {
		res.Status = StatusPending
	} else if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			log.Warn("payment aborted", zap.Error(ctx.Err()))
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	res.Instructions = InjectVariables(GetInstructions(method), InstructionVars{
		"amount":         fmt.Sprintf("%d", amount),
		"transaction_id": res.TransactionID,
	})

	log.Info("payment processed",
		zap.String("transaction_id", res.TransactionID),
		zap.String("status", string(res.Status)),
		zap.Int("detail_fields", len(data)),
	)

	return res, nil
}
