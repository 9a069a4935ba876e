package resultcache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xxxsen/routecache/internal/model"
	"github.com/xxxsen/routecache/internal/repo"
)

// WrapLRU puts an in-process LRU of hits in front of next. Misses are never
// cached, so a later save is visible immediately.
func WrapLRU(next repo.ResultStore, size int, ttl time.Duration) repo.ResultStore {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruStore{
		next:  next,
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// lruStore bumps gen on every delete. A backend read only lands in the cache
// when no delete finished while it was in flight.
type lruStore struct {
	next  repo.ResultStore
	cache *expirable.LRU[string, string]
	group singleflight.Group

	mu  sync.Mutex
	gen uint64
}

type lookupResult struct {
	payload string
	found   bool
}

func (l *lruStore) Lookup(ctx context.Context, source, dest string) (string, bool, error) {
	key := buildCacheKey(source, dest)
	if payload, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("result cache hit (lru)")
		return payload, true, nil
	}
	gen := l.generation()
	// Lookups started after a delete never join a flight started before it.
	flight := key + "\x00" + strconv.FormatUint(gen, 10)
	v, err, _ := l.group.Do(flight, func() (interface{}, error) {
		payload, found, err := l.next.Lookup(ctx, source, dest)
		if err != nil {
			return nil, err
		}
		if found {
			l.addIfCurrent(key, payload, gen)
		}
		return lookupResult{payload: payload, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(lookupResult)
	return res.payload, res.found, nil
}

// Insert does not touch the cache: lookups return the oldest row, which a
// new insert never replaces.
func (l *lruStore) Insert(ctx context.Context, entry *model.CacheEntry) (int64, error) {
	return l.next.Insert(ctx, entry)
}

func (l *lruStore) Delete(ctx context.Context, source, dest string) (int64, error) {
	key := buildCacheKey(source, dest)
	count, err := l.next.Delete(ctx, source, dest)
	l.mu.Lock()
	l.gen++
	evicted := l.cache.Remove(key)
	l.mu.Unlock()
	if evicted {
		logutil.GetLogger(ctx).Debug("result cache evicted", zap.Int64("deleted", count))
	}
	return count, err
}

// DeleteBefore cannot tell which keys lost their rows, so it drops the
// whole cache.
func (l *lruStore) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	count, err := l.next.DeleteBefore(ctx, cutoff)
	l.mu.Lock()
	l.gen++
	l.cache.Purge()
	l.mu.Unlock()
	return count, err
}

func (l *lruStore) Ping(ctx context.Context) error {
	return l.next.Ping(ctx)
}

func (l *lruStore) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *lruStore) addIfCurrent(key, payload string, gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return
	}
	l.cache.Add(key, payload)
}

func buildCacheKey(source, dest string) string {
	return source + "\x00" + dest
}
