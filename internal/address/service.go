package address

import (
	"context"
	"strings"

	"bookstore-core/internal/logger"
	"bookstore-core/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service manages a user's shipping addresses.
type Service interface {
	List(ctx context.Context, sess *session.Session) ([]*Address, error)
	Get(ctx context.Context, sess *session.Session, addressID uuid.UUID) (*Address, error)
	Create(ctx context.Context, sess *session.Session, input CreateAddressInput) (*Address, error)
	Delete(ctx context.Context, sess *session.Session, addressID uuid.UUID) error
	SetDefaultAddress(ctx context.Context, sess *session.Session, addressID uuid.UUID) error
}

// service implements the Service interface
type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(
	ctx context.Context,
	sess *session.Session,
) ([]*Address, error) {

	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "List"),
		zap.String("user_id", userID),
	)

	log.Debug("listing addresses")

	return s.repo.GetByUserID(ctx, userID)
}

// Get returns an active address owned by the session user.
func (s *service) Get(
	ctx context.Context,
	sess *session.Session,
	addressID uuid.UUID,
) (*Address, error) {

	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Get"),
		zap.String("address_id", addressID.String()),
	)

	addr, err := s.repo.GetByID(ctx, addressID)
	if err != nil {
		log.Warn("address lookup failed", zap.Error(err))
		return nil, err
	}

	if addr.UserID != userID || !addr.IsActive {
		log.Warn("unauthorized address access")
		return nil, ErrAddressNotFound
	}

	return addr, nil
}

func (s *service) Create(
	ctx context.Context,
	sess *session.Session,
	input CreateAddressInput,
) (*Address, error) {

	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Create"),
	)

	if strings.TrimSpace(input.AddressLine1) == "" ||
		strings.TrimSpace(input.City) == "" ||
		strings.TrimSpace(input.ReceiverName) == "" {
		return nil, ErrInvalidAddress
	}

	addr := &Address{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         input.Name,
		ReceiverName: input.ReceiverName,
		Phone:        input.Phone,
		Address1:     input.AddressLine1,
		Address2:     input.AddressLine2,
		City:         input.City,
		Province:     input.Province,
		Postal:       input.PostalCode,
		Country:      input.Country,
		IsActive:     true,
		IsDefault:    input.SetAsDefault,
	}

	if input.SetAsDefault {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			log.Warn("failed to clear default address", zap.Error(err))
		}
	}

	if err := s.repo.Create(ctx, addr); err != nil {
		log.Error("failed to create address", zap.Error(err))
		return nil, err
	}

	log.Info("address created", zap.String("address_id", addr.ID.String()))
	return addr, nil
}

func (s *service) Delete(
	ctx context.Context,
	sess *session.Session,
	addressID uuid.UUID,
) error {

	if _, err := s.Get(ctx, sess, addressID); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("address deleted",
		zap.String("service", "Address"),
		zap.String("address_id", addressID.String()),
	)

	return s.repo.Deactivate(ctx, addressID)
}

func (s *service) SetDefaultAddress(
	ctx context.Context,
	sess *session.Session,
	addressID uuid.UUID,
) error {

	userID, err := session.Require(sess)
	if err != nil {
		return err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "SetDefaultAddress"),
		zap.String("address_id", addressID.String()),
		zap.String("user_id", userID),
	)

	if err := s.repo.ClearDefault(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SetDefault(ctx, userID, addressID); err != nil {
		log.Error("failed to set default address", zap.Error(err))
		return err
	}

	return nil
}
