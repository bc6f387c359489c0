package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// CachingStep wraps a step and memoizes its full result. The first
// FullData call materializes the inner step and stores the encoded raster;
// later calls serve the stored copy. Example data always passes through to
// the inner step and is never stored.
//
// Cache failures are soft: an unreachable or corrupt cache degrades to
// recomputation, never to a failed calculation.
type CachingStep struct {
	inner step.Step
	cache Cache
	codec *Codec
	ttl   time.Duration
	log   zerolog.Logger
}

// CachingOption adjusts a CachingStep.
type CachingOption func(*CachingStep)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log zerolog.Logger) CachingOption {
	return func(s *CachingStep) { s.log = log }
}

// NewCachingStep wraps inner with a full-result cache. A non-positive TTL
// stores entries without expiry.
func NewCachingStep(inner step.Step, c Cache, codec *Codec, ttl time.Duration, opts ...CachingOption) *CachingStep {
	s := &CachingStep{inner: inner, cache: c, codec: codec, ttl: ttl, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements step.Step. The wrapper keeps the inner identity so
// performance records and subscriptions stay attached to the same step.
func (s *CachingStep) ID() step.ID {
	return s.inner.ID()
}

// FullData implements step.Step.
func (s *CachingStep) FullData(ctx context.Context) (table.Dataset, error) {
	key := keyPrefix + s.inner.ID().String()

	block, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("cache get failed, recomputing")
	} else if ok {
		raster, derr := s.codec.Decode(block)
		if derr == nil {
			hitsTotal.Inc()
			return table.FromRaster(raster), nil
		}
		s.log.Warn().Err(derr).Str("key", key).Msg("corrupt cache block, recomputing")
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.log.Debug().Err(delErr).Str("key", key).Msg("cache delete failed")
		}
	}
	missesTotal.Inc()

	ds, err := s.inner.FullData(ctx)
	if err != nil {
		return nil, err
	}
	raster, err := ds.Raster(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, encErr := s.codec.Encode(raster); encErr == nil {
		if setErr := s.cache.Set(ctx, key, encoded, s.ttl); setErr != nil {
			s.log.Debug().Err(setErr).Str("key", key).Msg("cache set failed")
		}
	} else {
		s.log.Debug().Err(encErr).Str("key", key).Msg("cache encode failed")
	}

	return table.FromRaster(raster), nil
}

// ExampleData implements step.Step. Previews are never cached.
func (s *CachingStep) ExampleData(ctx context.Context, maxInputRows, maxOutputRows int) (table.Dataset, error) {
	return s.inner.ExampleData(ctx, maxInputRows, maxOutputRows)
}

// Invalidate drops the stored full result, forcing the next FullData call
// to recompute.
func (s *CachingStep) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, keyPrefix+s.inner.ID().String())
}
