// Package reference keeps per-user lists of product references (cart items,
// wishlist items) in a remote record store and republishes the full list
// after every mutation.
package reference

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookstore-core/internal/logger"
	"bookstore-core/internal/session"
	"bookstore-core/internal/stream"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store struct {
	name   string
	repo   RecordStore
	policy Policy
	newID  func() string
	now    func() time.Time

	mu    sync.Mutex
	lists map[string]*stream.Subject[[]Record]
	users map[string]*sync.Mutex
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(name string, repo RecordStore, policy Policy, opts ...Option) *Store {
	s := &Store{
		name:   name,
		repo:   repo,
		policy: policy,
		newID:  uuid.NewString,
		now:    time.Now,
		lists:  make(map[string]*stream.Subject[[]Record]),
		users:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCartStore merges duplicate adds into a quantity increment.
func NewCartStore(repo RecordStore, opts ...Option) *Store {
	return NewStore("cart", repo, MergeDuplicates, opts...)
}

// NewWishlistStore rejects duplicate adds.
func NewWishlistStore(repo RecordStore, opts ...Option) *Store {
	return NewStore("wishlist", repo, RejectDuplicates, opts...)
}

func (s *Store) Name() string { return s.name }

func (s *Store) log(ctx context.Context, method string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("service", "Reference"),
		zap.String("store", s.name),
		zap.String("method", method),
	)
}

func (s *Store) subject(userID string) *stream.Subject[[]Record] {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.lists[userID]
	if !ok {
		sub = stream.NewSubject[[]Record]()
		s.lists[userID] = sub
	}
	return sub
}

// lockUser serializes a user's mutations together with the reload that
// follows them, so a published list is never older than one already seen.
func (s *Store) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.users[userID]
	if !ok {
		l = new(sync.Mutex)
		s.users[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Add references productID for the session user. The cart store bumps the
// quantity of an existing record; the wishlist store returns ErrAlreadyListed.
func (s *Store) Add(ctx context.Context, sess *session.Session, productID string) (Record, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return Record{}, err
	}
	if productID == "" {
		return Record{}, ErrMissingProduct
	}

	log := s.log(ctx, "Add").With(zap.String("product_id", productID))

	unlock := s.lockUser(userID)
	defer unlock()

	records, err := s.repo.List(ctx, userID)
	if err != nil {
		log.Error("failed to list records", zap.Error(err))
		return Record{}, err
	}

	var out Record
	if existing, ok := findByProduct(records, productID); ok {
		if s.policy == RejectDuplicates {
			log.Info("duplicate add rejected")
			return Record{}, ErrAlreadyListed
		}
		out, err = s.increment(ctx, existing)
	} else {
		out, err = s.repo.Create(ctx, Record{
			ID:        s.newID(),
			ProductID: productID,
			UserID:    userID,
			Quantity:  1,
			AddedAt:   s.now().UTC(),
		})
		if errors.Is(err, ErrAlreadyListed) && s.policy == MergeDuplicates {
			// Another writer created the record between List and Create.
			log.Info("record created concurrently, merging")
			out, err = s.mergeExisting(ctx, userID, productID)
		}
	}
	if err != nil {
		log.Error("failed to write record", zap.Error(err))
		return Record{}, err
	}

	s.reloadAfter(ctx, userID, "Add")
	return out, nil
}

func (s *Store) increment(ctx context.Context, rec Record) (Record, error) {
	rec.Quantity++
	return s.repo.Update(ctx, rec.ID, rec)
}

func (s *Store) mergeExisting(ctx context.Context, userID, productID string) (Record, error) {
	records, err := s.repo.List(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	existing, ok := findByProduct(records, productID)
	if !ok {
		return Record{}, ErrAlreadyListed
	}
	return s.increment(ctx, existing)
}

// UpdateQuantity sets an absolute quantity on one of the user's records.
func (s *Store) UpdateQuantity(ctx context.Context, sess *session.Session, id string, quantity int) (Record, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return Record{}, err
	}
	if quantity < 1 {
		return Record{}, ErrInvalidQuantity
	}

	log := s.log(ctx, "UpdateQuantity").With(zap.String("id", id), zap.Int("quantity", quantity))

	unlock := s.lockUser(userID)
	defer unlock()

	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return Record{}, err
	}

	rec.Quantity = quantity
	out, err := s.repo.Update(ctx, id, rec)
	if err != nil {
		log.Error("failed to update record", zap.Error(err))
		return Record{}, err
	}

	s.reloadAfter(ctx, userID, "UpdateQuantity")
	return out, nil
}

// Remove deletes one of the user's records.
func (s *Store) Remove(ctx context.Context, sess *session.Session, id string) error {
	userID, err := session.Require(sess)
	if err != nil {
		return err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.log(ctx, "Remove").Error("failed to delete record", zap.String("id", id), zap.Error(err))
		return err
	}

	s.reloadAfter(ctx, userID, "Remove")
	return nil
}

// ClearAll deletes every record of the user. An empty list succeeds without
// issuing any delete.
func (s *Store) ClearAll(ctx context.Context, sess *session.Session) error {
	userID, err := session.Require(sess)
	if err != nil {
		return err
	}

	log := s.log(ctx, "ClearAll")

	unlock := s.lockUser(userID)
	defer unlock()

	records, err := s.repo.List(ctx, userID)
	if err != nil {
		log.Error("failed to list records", zap.Error(err))
		return err
	}
	if len(records) == 0 {
		s.subject(userID).Publish([]Record{})
		return nil
	}

	var errs []error
	for _, rec := range records {
		if err := s.repo.Delete(ctx, rec.ID); err != nil && !errors.Is(err, ErrRecordNotFound) {
			log.Error("failed to delete record", zap.String("id", rec.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.reloadAfter(ctx, userID, "ClearAll")
	return errors.Join(errs...)
}

// RemoveRecords deletes the listed records of the user. Ids that are no
// longer present are skipped.
func (s *Store) RemoveRecords(ctx context.Context, sess *session.Session, ids []string) error {
	userID, err := session.Require(sess)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	log := s.log(ctx, "RemoveRecords")

	unlock := s.lockUser(userID)
	defer unlock()

	records, err := s.repo.List(ctx, userID)
	if err != nil {
		log.Error("failed to list records", zap.Error(err))
		return err
	}

	owned := make(map[string]bool, len(records))
	for _, r := range records {
		owned[r.ID] = true
	}

	var errs []error
	for _, id := range ids {
		if !owned[id] {
			continue
		}
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrRecordNotFound) {
			log.Error("failed to delete record", zap.String("id", id), zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.reloadAfter(ctx, userID, "RemoveRecords")
	return errors.Join(errs...)
}

// Watch subscribes to the user's record list. The channel immediately yields
// the current list, loading it first if nothing has been published yet.
func (s *Store) Watch(ctx context.Context, sess *session.Session) (<-chan []Record, func(), error) {
	userID, err := session.Require(sess)
	if err != nil {
		return nil, nil, err
	}

	sub := s.subject(userID)
	if _, ok := sub.Value(); !ok {
		if err := s.loadOnce(ctx, userID); err != nil {
			return nil, nil, err
		}
	}

	ch, cancel := sub.Subscribe()
	return ch, cancel, nil
}

// Snapshot returns the latest published list, loading it if necessary.
func (s *Store) Snapshot(ctx context.Context, sess *session.Session) ([]Record, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}

	if v, ok := s.subject(userID).Value(); ok {
		return cloneRecords(v), nil
	}
	if err := s.loadOnce(ctx, userID); err != nil {
		return nil, err
	}
	v, _ := s.subject(userID).Value()
	return cloneRecords(v), nil
}

// Fresh reads the user's list from the record store, publishes it and
// returns it, bypassing the cached value.
func (s *Store) Fresh(ctx context.Context, sess *session.Session) ([]Record, error) {
	userID, err := session.Require(sess)
	if err != nil {
		return nil, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.reload(ctx, userID); err != nil {
		return nil, err
	}
	v, _ := s.subject(userID).Value()
	return cloneRecords(v), nil
}

// Reload re-reads the user's list from the record store and publishes it.
func (s *Store) Reload(ctx context.Context, sess *session.Session) error {
	userID, err := session.Require(sess)
	if err != nil {
		return err
	}

	unlock := s.lockUser(userID)
	defer unlock()
	return s.reload(ctx, userID)
}

// loadOnce performs the initial load unless a mutation published first.
func (s *Store) loadOnce(ctx context.Context, userID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	if _, ok := s.subject(userID).Value(); ok {
		return nil
	}
	return s.reload(ctx, userID)
}

func (s *Store) reload(ctx context.Context, userID string) error {
	records, err := s.repo.List(ctx, userID)
	if err != nil {
		return err
	}
	s.subject(userID).Publish(cloneRecords(records))
	return nil
}

// reloadAfter runs the post-mutation reload. The mutation already succeeded,
// so a failed reload is only logged.
func (s *Store) reloadAfter(ctx context.Context, userID, method string) {
	if err := s.reload(ctx, userID); err != nil {
		s.log(ctx, method).Warn("reload after mutation failed", zap.Error(err))
	}
}

func (s *Store) owned(ctx context.Context, userID, id string) (Record, error) {
	records, err := s.repo.List(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func findByProduct(records []Record, productID string) (Record, bool) {
	for _, r := range records {
		if r.ProductID == productID {
			return r, true
		}
	}
	return Record{}, false
}
