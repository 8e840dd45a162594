package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"capital-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches the country catalog from a backing store (HTTP
// provider, Postgres, a fixture).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogRepository caches the country catalog in Redis (hash keyed by
// country id, JSON values) and falls back to a loader on cache miss, so warm
// restarts skip the paged upstream fetch.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

const catalogKey = "countries:catalog"

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	cached, err := r.client.HGetAll(ctx, catalogKey).Result()
	if err == nil && len(cached) > 0 {
		return buildCatalogFromCache(cached), nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := r.client.HGetAll(ctx, catalogKey).Result()
		if err == nil && len(cached) > 0 {
			return buildCatalogFromCache(cached), nil
		}

		catalog, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, c := range catalog.Countries() {
			data, err := json.Marshal(c)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, catalogKey, c.ID, data)
		}
		if ttl > 0 {
			pipe.Expire(ctx, catalogKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func buildCatalogFromCache(cached map[string]string) domain.Catalog {
	countries := make([]domain.Country, 0, len(cached))
	for id, raw := range cached {
		var c domain.Country
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		if c.ID == "" {
			c.ID = id
		}
		countries = append(countries, c)
	}
	return domain.NewCatalog(countries)
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
