package screener

import (
	"github.com/rs/zerolog"
)

// CacheGCJob evicts expired cache entries. It satisfies the scheduler.Job
// interface.
type CacheGCJob struct {
	cache *Cache
	log   zerolog.Logger
}

// NewCacheGCJob creates a new cache garbage-collection job
func NewCacheGCJob(cache *Cache, log zerolog.Logger) *CacheGCJob {
	return &CacheGCJob{
		cache: cache,
		log:   log.With().Str("component", "cache_gc").Logger(),
	}
}

// Name returns the scheduler job name
func (j *CacheGCJob) Name() string {
	return "cache_gc"
}

// Run evicts expired entries
func (j *CacheGCJob) Run() error {
	evicted, err := j.cache.GC()
	if err != nil {
		return err
	}
	if evicted > 0 {
		j.log.Info().Int64("evicted", evicted).Msg("Expired cache entries removed")
	}
	return nil
}
