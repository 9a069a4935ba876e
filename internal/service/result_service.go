package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xxxsen/routecache/internal/model"
	appErr "github.com/xxxsen/routecache/internal/pkg/errors"
	"github.com/xxxsen/routecache/internal/pkg/timeutil"
	"github.com/xxxsen/routecache/internal/repo"
)

const healthTimeout = 2 * time.Second

type ResultService struct {
	store repo.ResultStore
}

func NewResultService(store repo.ResultStore) *ResultService {
	return &ResultService{store: store}
}

// Check returns the stored payload for the coordinate pair, if any.
func (s *ResultService) Check(ctx context.Context, source, dest json.RawMessage) (json.RawMessage, bool, error) {
	src, dst, err := encodeKey(source, dest)
	if err != nil {
		return nil, false, err
	}
	payload, ok, err := s.store.Lookup(ctx, src, dst)
	if err != nil {
		return nil, false, appErr.Storage(err)
	}
	if !ok {
		return nil, false, nil
	}
	return json.RawMessage(payload), true, nil
}

// Save stores a new entry and returns its id. An existing entry with the same
// key is left in place.
func (s *ResultService) Save(ctx context.Context, source, dest, results json.RawMessage) (int64, error) {
	src, dst, err := encodeKey(source, dest)
	if err != nil {
		return 0, err
	}
	payload, err := encodeValue(results)
	if err != nil {
		return 0, err
	}
	id, err := s.store.Insert(ctx, &model.CacheEntry{
		SourceCoordinates: src,
		DestCoordinates:   dst,
		AlgResults:        payload,
		Ctime:             timeutil.NowUnix(),
	})
	if err != nil {
		return 0, appErr.Storage(err)
	}
	return id, nil
}

// Delete removes all entries for the coordinate pair. Zero is not an error.
func (s *ResultService) Delete(ctx context.Context, source, dest json.RawMessage) (int64, error) {
	src, dst, err := encodeKey(source, dest)
	if err != nil {
		return 0, err
	}
	count, err := s.store.Delete(ctx, src, dst)
	if err != nil {
		return 0, appErr.Storage(err)
	}
	return count, nil
}

func (s *ResultService) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return s.store.Ping(ctx) == nil
}

func encodeKey(source, dest json.RawMessage) (string, string, error) {
	src, err := encodeValue(source)
	if err != nil {
		return "", "", err
	}
	dst, err := encodeValue(dest)
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}
