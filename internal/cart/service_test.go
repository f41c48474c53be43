package cart

import (
	"context"
	"testing"
	"time"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/catalog"
	"bookstore-core/internal/hydrate"
	"bookstore-core/internal/reference"
	"bookstore-core/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup map[string]catalog.Product

func (m mapLookup) Get(ctx context.Context, productID string) (catalog.Product, error) {
	p, ok := m[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

var books = mapLookup{
	"b1": {ID: "b1", Title: "Dune", Price: 100, DisplayStock: 3},
	"b2": {ID: "b2", Title: "Emma", Price: 40, DisplayStock: 10},
}

var (
	alice = &session.Session{UserID: "alice"}
	bob   = &session.Session{UserID: "bob"}
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(
		reference.NewCartStore(reference.NewMemoryRepository()),
		reference.NewWishlistStore(reference.NewMemoryRepository()),
		hydrate.NewHydrator(books),
	)
	t.Cleanup(svc.Close)
	return svc
}

func TestService_ItemCountOnlyOwnRecords(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	cart := svc.CartStore()

	ops := []struct {
		sess    *session.Session
		product string
		remove  bool
	}{
		{sess: alice, product: "b1"},
		{sess: bob, product: "b1"},
		{sess: alice, product: "b2"},
		{sess: alice, product: "b1"},
		{sess: bob, product: "b2"},
		{sess: alice, product: "b2", remove: true},
	}

	for _, op := range ops {
		if op.remove {
			list, err := cart.Snapshot(ctx, op.sess)
			require.NoError(t, err)
			for _, r := range list {
				if r.ProductID == op.product {
					require.NoError(t, cart.Remove(ctx, op.sess, r.ID))
				}
			}
			continue
		}
		_, err := cart.Add(ctx, op.sess, op.product)
		require.NoError(t, err)
	}

	view, err := svc.View(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, int64(200), view.Total)

	view, err = svc.View(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, int64(140), view.Total)
}

func TestService_ChangeQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	rec, err := svc.CartStore().Add(ctx, alice, "b1")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		out, err := svc.ChangeQuantity(ctx, alice, rec.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, out.Quantity)
	})

	t.Run("ExceedsStock", func(t *testing.T) {
		_, err := svc.ChangeQuantity(ctx, alice, rec.ID, 4)
		assert.ErrorIs(t, err, ErrExceedsStock)

		view, _ := svc.View(ctx, alice)
		assert.Equal(t, 3, view.ItemCount)
	})

	t.Run("BelowMinimum", func(t *testing.T) {
		_, err := svc.ChangeQuantity(ctx, alice, rec.ID, 0)
		assert.ErrorIs(t, err, ErrBelowMinimum)
	})

	t.Run("NotInCart", func(t *testing.T) {
		_, err := svc.ChangeQuantity(ctx, bob, rec.ID, 1)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("NotLoggedIn", func(t *testing.T) {
		_, err := svc.ChangeQuantity(ctx, nil, rec.ID, 1)
		assert.ErrorIs(t, err, apperr.ErrNotLoggedIn)
	})

	t.Run("ProductUnavailable", func(t *testing.T) {
		gone, err := svc.CartStore().Add(ctx, alice, "withdrawn")
		require.NoError(t, err)

		_, err = svc.ChangeQuantity(ctx, alice, gone.ID, 2)
		assert.ErrorIs(t, err, ErrProductUnavailable)
		assert.ErrorIs(t, err, apperr.ErrUpstream)
		assert.NotErrorIs(t, err, ErrItemNotInCart)
	})
}

func TestService_HydratedReadsRecordStore(t *testing.T) {
	ctx := context.Background()
	repo := reference.NewMemoryRepository()
	svc := NewService(
		reference.NewCartStore(repo),
		reference.NewWishlistStore(reference.NewMemoryRepository()),
		hydrate.NewHydrator(books),
	)
	t.Cleanup(svc.Close)

	view, err := svc.View(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, view.ItemCount)

	_, err = repo.Create(ctx, reference.Record{ID: "elsewhere", ProductID: "b2", UserID: "alice", Quantity: 1})
	require.NoError(t, err)

	items, err := svc.Hydrated(ctx, alice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "elsewhere", items[0].ID)
}

func TestService_RemoveItems(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	first, err := svc.CartStore().Add(ctx, alice, "b1")
	require.NoError(t, err)
	second, err := svc.CartStore().Add(ctx, alice, "b2")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItems(ctx, alice, []string{first.ID}))

	items, err := svc.Hydrated(ctx, alice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].ID)
}

func TestService_Wishlist(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.WishlistStore().Add(ctx, alice, "b2")
	require.NoError(t, err)
	_, err = svc.WishlistStore().Add(ctx, alice, "b2")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	items, err := svc.Wishlist(ctx, alice)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Emma", items[0].Product.Title)
}

func receive(t *testing.T, sub *Subscription) View {
	t.Helper()
	select {
	case v, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cart view")
		return View{}
	}
}

func TestService_WatchAndResubscribe(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CartStore().Add(ctx, bob, "b2")
	require.NoError(t, err)

	sub, err := svc.Watch(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub.UserID)
	assert.Equal(t, 0, receive(t, sub).ItemCount)

	_, err = svc.CartStore().Add(ctx, alice, "b1")
	require.NoError(t, err)
	v := receive(t, sub)
	assert.Equal(t, 1, v.ItemCount)
	assert.Equal(t, int64(100), v.Total)

	next, err := svc.Resubscribe(ctx, sub, bob)
	require.NoError(t, err)
	defer next.Close()
	assert.Equal(t, "bob", next.UserID)
	assert.Equal(t, int64(40), receive(t, next).Total)

	select {
	case _, ok := <-sub.C:
		for ok {
			_, ok = <-sub.C
		}
	case <-time.After(time.Second):
		t.Fatal("old subscription was not closed")
	}
}

func TestService_WatchNotLoggedIn(t *testing.T) {
	svc := newService(t)
	_, err := svc.Watch(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrNotLoggedIn)
}
