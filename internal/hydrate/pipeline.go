package hydrate

import (
	"context"
	"sync"

	"bookstore-core/internal/logger"
	"bookstore-core/internal/reference"
	"bookstore-core/internal/session"
	"bookstore-core/internal/stream"

	"go.uber.org/zap"
)

// Source publishes per-user reference lists. *reference.Store satisfies it.
type Source interface {
	Watch(ctx context.Context, sess *session.Session) (<-chan []reference.Record, func(), error)
	Snapshot(ctx context.Context, sess *session.Session) ([]reference.Record, error)
	Fresh(ctx context.Context, sess *session.Session) ([]reference.Record, error)
}

// Pipeline keeps one hydration feed per watched user. Each feed is the single
// writer of its user's hydrated subject.
type Pipeline struct {
	source   Source
	hydrator *Hydrator

	mu    sync.Mutex
	feeds map[string]*feed
}

type feed struct {
	out  *stream.Subject[[]Hydrated]
	stop func()
	done chan struct{}
}

func NewPipeline(source Source, hydrator *Hydrator) *Pipeline {
	return &Pipeline{
		source:   source,
		hydrator: hydrator,
		feeds:    make(map[string]*feed),
	}
}

// Watch subscribes to the user's hydrated list. The feed is started on the
// first subscription and stopped when the last one is cancelled.
func (p *Pipeline) Watch(ctx context.Context, sess *session.Session) (<-chan []Hydrated, func(), error) {
	userID, err := session.Require(sess)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	f, ok := p.feeds[userID]
	if ok {
		defer p.mu.Unlock()
		return p.subscribe(userID, f)
	}
	p.mu.Unlock()

	// p.mu is not held across the source's initial load.
	refs, cancelRefs, err := p.source.Watch(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.feeds[userID]; ok {
		cancelRefs()
		return p.subscribe(userID, f)
	}

	fctx, cancel := context.WithCancel(logger.WithUserID(context.Background(), userID))
	f = &feed{
		out:  stream.NewSubject[[]Hydrated](),
		done: make(chan struct{}),
		stop: func() {
			cancel()
			cancelRefs()
		},
	}
	p.feeds[userID] = f
	go p.run(fctx, f, refs)

	return p.subscribe(userID, f)
}

// subscribe must be called with p.mu held.
func (p *Pipeline) subscribe(userID string, f *feed) (<-chan []Hydrated, func(), error) {
	ch, unsubscribe := f.out.Subscribe()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			p.release(userID, f)
		})
	}, nil
}

// Current hydrates the user's latest reference list synchronously.
func (p *Pipeline) Current(ctx context.Context, sess *session.Session) ([]Hydrated, error) {
	refs, err := p.source.Snapshot(ctx, sess)
	if err != nil {
		return nil, err
	}
	return p.hydrator.Hydrate(ctx, refs), nil
}

// Fresh re-reads the user's reference list from its store before hydrating.
func (p *Pipeline) Fresh(ctx context.Context, sess *session.Session) ([]Hydrated, error) {
	refs, err := p.source.Fresh(ctx, sess)
	if err != nil {
		return nil, err
	}
	return p.hydrator.Hydrate(ctx, refs), nil
}

// Close stops every feed and waits for them to exit.
func (p *Pipeline) Close() {
	p.mu.Lock()
	feeds := p.feeds
	p.feeds = make(map[string]*feed)
	p.mu.Unlock()

	for _, f := range feeds {
		f.stop()
		f.out.Close()
		<-f.done
	}
}

// run hydrates each reference list as it arrives. Lists published while a
// hydration is in flight overwrite each other in the source channel, so only
// the newest one is hydrated next.
func (p *Pipeline) run(ctx context.Context, f *feed, refs <-chan []reference.Record) {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-refs:
			if !ok {
				return
			}
			hydrated := p.hydrator.Hydrate(ctx, list)
			if ctx.Err() != nil {
				return
			}
			f.out.Publish(hydrated)
		}
	}
}

func (p *Pipeline) release(userID string, f *feed) {
	p.mu.Lock()
	if cur, ok := p.feeds[userID]; !ok || cur != f || f.out.Subscribers() > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.feeds, userID)
	p.mu.Unlock()

	f.stop()
	f.out.Close()
	logger.L().Debug("hydration feed stopped", zap.String("user_id", userID))
}
