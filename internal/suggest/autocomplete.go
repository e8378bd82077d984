package suggest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// DefaultDebounce is the wait between the last keystroke and the fetch.
const DefaultDebounce = 300 * time.Millisecond

// DefaultCacheSize is the number of fetched suggestion lists kept.
const DefaultCacheSize = 256

// ErrNoKey is recorded on value results requested without an attribute key.
var ErrNoKey = errors.New("value suggestions need an attribute key")

// Options configures an Autocompleter. The zero value uses the defaults.
type Options struct {
	// Debounce is the quiet period before fetching. Negative disables it.
	Debounce time.Duration

	// CacheSize bounds the result cache. Negative disables caching.
	CacheSize int

	Logger zerolog.Logger

	// After replaces time.After, for tests that drive the debounce by hand.
	After func(time.Duration) <-chan time.Time
}

// Autocompleter debounces suggestion requests and delivers only the latest
// request's result on Results.
//
// Thread-safety: Keys, Values and Close may be called from any goroutine.
type Autocompleter struct {
	source   Source
	debounce time.Duration
	after    func(time.Duration) <-chan time.Time
	log      zerolog.Logger

	cache *lru.Cache[string, Result]
	group singleflight.Group

	seq     atomic.Uint64
	dropped atomic.Uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	delivered uint64
	closed    bool
	results   chan Result
}

// New returns an Autocompleter fetching from source.
func New(source Source, opts Options) *Autocompleter {
	a := &Autocompleter{
		source:   source,
		debounce: opts.Debounce,
		after:    opts.After,
		log:      opts.Logger.With().Str("scope", "suggest").Logger(),
		results:  make(chan Result, 1),
	}
	if a.debounce == 0 {
		a.debounce = DefaultDebounce
	}
	if a.after == nil {
		a.after = time.After
	}

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, Result](size)
		if err == nil {
			a.cache = cache
		}
	}
	return a
}

// Results delivers the latest result. The channel holds at most one
// undelivered result; a newer result replaces it. It is closed by Close.
func (a *Autocompleter) Results() <-chan Result {
	return a.results
}

// Keys schedules a key suggestion fetch and returns its sequence number.
// Any earlier request still pending is superseded.
func (a *Autocompleter) Keys(ctx context.Context, req Request) uint64 {
	return a.schedule(ctx, KindKeys, req)
}

// Values schedules a value suggestion fetch for req.Key and returns its
// sequence number. Any earlier request still pending is superseded.
func (a *Autocompleter) Values(ctx context.Context, req Request) uint64 {
	return a.schedule(ctx, KindValues, req)
}

// Latest returns the sequence number of the most recent request.
func (a *Autocompleter) Latest() uint64 {
	return a.seq.Load()
}

// Dropped returns how many fetched results were discarded as stale.
func (a *Autocompleter) Dropped() uint64 {
	return a.dropped.Load()
}

// Close cancels the pending request and closes Results. Requests issued
// after Close are ignored.
func (a *Autocompleter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	close(a.results)
}

func (a *Autocompleter) schedule(ctx context.Context, kind Kind, req Request) uint64 {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0
	}
	seq := a.seq.Add(1)
	if a.cancel != nil {
		a.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	go a.run(fetchCtx, seq, kind, req)
	return seq
}

func (a *Autocompleter) run(ctx context.Context, seq uint64, kind Kind, req Request) {
	if a.debounce > 0 {
		select {
		case <-a.after(a.debounce):
		case <-ctx.Done():
			return
		}
	}
	if a.seq.Load() != seq {
		return
	}

	result := a.fetch(ctx, kind, req)
	result.Seq = seq
	a.deliver(result)
}

func (a *Autocompleter) fetch(ctx context.Context, kind Kind, req Request) Result {
	result := Result{
		Kind:    kind,
		Request: req,
		Keys:    []queryir.AttributeKey{},
		Values:  []ir.Value{},
	}
	if kind == KindValues && req.Key == "" {
		result.Err = ErrNoKey
		return result
	}

	key := req.cacheKey(kind)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			cached.Request = req
			return cached.clone()
		}
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.call(ctx, kind, req)
	})
	// A shared call may have been started by a request that was since
	// cancelled; this request is still live, so fetch again.
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		v, err = a.call(ctx, kind, req)
	}
	if err != nil {
		a.log.Warn().Err(err).Str("kind", string(kind)).Str("search", req.SearchText).Msg("suggestion fetch failed")
		result.Err = err
		return result
	}

	switch got := v.(type) {
	case []queryir.AttributeKey:
		result.Keys = append(result.Keys, got...)
	case []ir.Value:
		result.Values = append(result.Values, got...)
	}
	if a.cache != nil {
		a.cache.Add(key, result.clone())
	}
	return result
}

func (a *Autocompleter) call(ctx context.Context, kind Kind, req Request) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suggestion source panicked: %v", r)
		}
	}()
	if kind == KindKeys {
		return a.source.Keys(ctx, req)
	}
	return a.source.Values(ctx, req)
}

func (a *Autocompleter) deliver(r Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || r.Seq != a.seq.Load() || r.Seq <= a.delivered {
		a.dropped.Add(1)
		a.log.Debug().Uint64("seq", r.Seq).Uint64("latest", a.seq.Load()).Msg("dropping stale suggestions")
		return
	}
	a.delivered = r.Seq

	select {
	case a.results <- r:
	default:
		// Replace the undelivered older result.
		select {
		case <-a.results:
		default:
		}
		a.results <- r
	}
}
