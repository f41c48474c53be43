package cart

import (
	"context"

	"bookstore-core/internal/hydrate"
	"bookstore-core/internal/logger"
	"bookstore-core/internal/reference"
	"bookstore-core/internal/session"
	"bookstore-core/internal/stream"

	"go.uber.org/zap"
)

// Service exposes the cart and wishlist of a user as hydrated views.
type Service struct {
	cart         *reference.Store
	wishlist     *reference.Store
	cartFeed     *hydrate.Pipeline
	wishlistFeed *hydrate.Pipeline
}

func NewService(cart, wishlist *reference.Store, hydrator *hydrate.Hydrator) *Service {
	return &Service{
		cart:         cart,
		wishlist:     wishlist,
		cartFeed:     hydrate.NewPipeline(cart, hydrator),
		wishlistFeed: hydrate.NewPipeline(wishlist, hydrator),
	}
}

func (s *Service) CartStore() *reference.Store     { return s.cart }
func (s *Service) WishlistStore() *reference.Store { return s.wishlist }

// Hydrated returns the user's cart items with current product details.
// The list is read from the record store, not the cached feed value.
func (s *Service) Hydrated(ctx context.Context, sess *session.Session) ([]hydrate.Hydrated, error) {
	return s.cartFeed.Fresh(ctx, sess)
}

func (s *Service) View(ctx context.Context, sess *session.Session) (View, error) {
	items, err := s.cartFeed.Current(ctx, sess)
	if err != nil {
		return View{}, err
	}
	return NewView(items), nil
}

// Clear removes every item from the user's cart.
func (s *Service) Clear(ctx context.Context, sess *session.Session) error {
	return s.cart.ClearAll(ctx, sess)
}

// RemoveItems removes the given cart records, leaving any other item in place.
func (s *Service) RemoveItems(ctx context.Context, sess *session.Session, ids []string) error {
	return s.cart.RemoveRecords(ctx, sess, ids)
}

func (s *Service) Wishlist(ctx context.Context, sess *session.Session) ([]hydrate.Hydrated, error) {
	return s.wishlistFeed.Current(ctx, sess)
}

// ChangeQuantity sets the quantity of a cart item after checking it against
// the item's display stock.
func (s *Service) ChangeQuantity(ctx context.Context, sess *session.Session, id string, quantity int) (reference.Record, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ChangeQuantity"),
		zap.String("id", id),
	)

	if _, err := session.Require(sess); err != nil {
		return reference.Record{}, err
	}
	if quantity < 1 {
		return reference.Record{}, ErrBelowMinimum
	}

	items, err := s.cartFeed.Current(ctx, sess)
	if err != nil {
		return reference.Record{}, err
	}

	var item *hydrate.Hydrated
	for i := range items {
		if items[i].ID == id {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return reference.Record{}, s.missingItem(ctx, sess, id)
	}

	if err := CheckQuantityChange(*item, quantity); err != nil {
		log.Info("quantity change rejected", zap.Int("quantity", quantity), zap.Error(err))
		return reference.Record{}, err
	}

	return s.cart.UpdateQuantity(ctx, sess, id, quantity)
}

// missingItem tells a record that does not exist apart from one whose
// product details could not be loaded.
func (s *Service) missingItem(ctx context.Context, sess *session.Session, id string) error {
	records, err := s.cart.Snapshot(ctx, sess)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == id {
			return ErrProductUnavailable
		}
	}
	return ErrItemNotInCart
}

// Subscription delivers the user's cart view on every change until closed.
type Subscription struct {
	C      <-chan View
	UserID string
	cancel func()
}

func (s *Subscription) Close() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// Watch subscribes to the user's cart view.
func (s *Service) Watch(ctx context.Context, sess *session.Session) (*Subscription, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}

	items, cancel, err := s.cartFeed.Watch(ctx, sess)
	if err != nil {
		return nil, err
	}

	views := stream.NewSubject[View]()
	ch, _ := views.Subscribe()
	go func() {
		defer views.Close()
		for list := range items {
			views.Publish(NewView(list))
		}
	}()

	return &Subscription{C: ch, UserID: userID, cancel: cancel}, nil
}

// Resubscribe closes prev and opens a subscription keyed by the new session.
// It is called when the acting user changes.
func (s *Service) Resubscribe(ctx context.Context, prev *Subscription, sess *session.Session) (*Subscription, error) {
	prev.Close()
	return s.Watch(ctx, sess)
}

// Close stops every live hydration feed.
func (s *Service) Close() {
	s.cartFeed.Close()
	s.wishlistFeed.Close()
}
