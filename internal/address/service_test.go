package address

import (
	"context"
	"errors"
	"testing"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByUserID(ctx context.Context, userID string) ([]*Address, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Address), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Address), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, addr *Address) error {
	args := m.Called(ctx, addr)
	return args.Error(0)
}

func (m *MockRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ClearDefault(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockRepository) SetDefault(ctx context.Context, userID string, addressID uuid.UUID) error {
	args := m.Called(ctx, userID, addressID)
	return args.Error(0)
}

// --- Tests ---

var alice = &session.Session{UserID: "alice"}

func TestService_List(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("GetByUserID", mock.Anything, "alice").Return([]*Address{{Name: "Home"}}, nil)

		res, err := svc.List(context.Background(), alice)
		assert.NoError(t, err)
		assert.Len(t, res, 1)
		repo.AssertExpectations(t)
	})

	t.Run("NotLoggedIn", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		_, err := svc.List(context.Background(), nil)
		assert.ErrorIs(t, err, apperr.ErrNotLoggedIn)
		repo.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
	})
}

func TestService_Get(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("GetByID", mock.Anything, id).Return(&Address{ID: id, UserID: "alice", IsActive: true}, nil)

		res, err := svc.Get(context.Background(), alice, id)
		assert.NoError(t, err)
		assert.Equal(t, id, res.ID)
	})

	t.Run("OtherUser", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("GetByID", mock.Anything, id).Return(&Address{ID: id, UserID: "bob", IsActive: true}, nil)

		_, err := svc.Get(context.Background(), alice, id)
		assert.ErrorIs(t, err, ErrAddressNotFound)
	})

	t.Run("RepoError", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("GetByID", mock.Anything, id).Return(nil, apperr.Upstream("get address", errors.New("down")))

		_, err := svc.Get(context.Background(), alice, id)
		assert.ErrorIs(t, err, apperr.ErrUpstream)
	})
}

func TestService_Create(t *testing.T) {
	input := CreateAddressInput{
		Name:         "Home",
		ReceiverName: "Alice",
		AddressLine1: "Street 1",
		City:         "Pune",
		SetAsDefault: true,
	}

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("ClearDefault", mock.Anything, "alice").Return(nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(a *Address) bool {
			return a.UserID == "alice" && a.IsDefault && a.IsActive && a.City == "Pune"
		})).Return(nil)

		addr, err := svc.Create(context.Background(), alice, input)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, addr.ID)
		repo.AssertExpectations(t)
	})

	t.Run("Invalid", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		_, err := svc.Create(context.Background(), alice, CreateAddressInput{Name: "Empty"})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("RepoError", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		in := input
		in.SetAsDefault = false
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		_, err := svc.Create(context.Background(), alice, in)
		assert.Error(t, err)
		repo.AssertNotCalled(t, "ClearDefault", mock.Anything, mock.Anything)
	})
}

func TestService_Delete(t *testing.T) {
	id := uuid.New()

	repo := new(MockRepository)
	svc := NewService(repo)
	repo.On("GetByID", mock.Anything, id).Return(&Address{ID: id, UserID: "alice", IsActive: true}, nil)
	repo.On("Deactivate", mock.Anything, id).Return(nil)

	assert.NoError(t, svc.Delete(context.Background(), alice, id))
	repo.AssertExpectations(t)
}

func TestService_SetDefaultAddress(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("ClearDefault", mock.Anything, "alice").Return(nil)
		repo.On("SetDefault", mock.Anything, "alice", id).Return(nil)

		assert.NoError(t, svc.SetDefaultAddress(context.Background(), alice, id))
		repo.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)
		repo.On("ClearDefault", mock.Anything, "alice").Return(nil)
		repo.On("SetDefault", mock.Anything, "alice", id).Return(ErrAddressNotFound)

		assert.ErrorIs(t, svc.SetDefaultAddress(context.Background(), alice, id), apperr.ErrNotFound)
	})
}
