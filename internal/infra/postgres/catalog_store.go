package postgres

import (
	"context"
	"fmt"

	"capital-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader fetches the country catalog from a backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogStore serves the country catalog from the countries table. On a
// cold table it hydrates from the upstream loader (the reference data
// provider) and persists the result so later boots skip the fetch.
type CatalogStore struct {
	pool     *pgxpool.Pool
	upstream CatalogLoader
}

func NewCatalogStore(pool *pgxpool.Pool, upstream CatalogLoader) *CatalogStore {
	return &CatalogStore{pool: pool, upstream: upstream}
}

func (s *CatalogStore) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	catalog, err := s.loadStored(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	if catalog.Len() > 0 {
		return catalog, nil
	}

	catalog, err = s.upstream.LoadCatalog(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	if err := s.SaveCatalog(ctx, catalog); err != nil {
		return domain.Catalog{}, err
	}
	return catalog, nil
}

func (s *CatalogStore) loadStored(ctx context.Context) (domain.Catalog, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, region, capital FROM countries ORDER BY id`)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load countries: %w", err)
	}
	defer rows.Close()

	var countries []domain.Country
	for rows.Next() {
		var c domain.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Region, &c.Capital); err != nil {
			return domain.Catalog{}, fmt.Errorf("scan country row: %w", err)
		}
		countries = append(countries, c)
	}
	if err := rows.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("load countries: %w", err)
	}
	return domain.NewCatalog(countries), nil
}

// SaveCatalog upserts the catalog into the countries table.
func (s *CatalogStore) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	for _, c := range catalog.Countries() {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO countries (id, name, region, capital) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, region=EXCLUDED.region, capital=EXCLUDED.capital`,
			c.ID, c.Name, c.Region, c.Capital)
		if err != nil {
			return fmt.Errorf("save country %s: %w", c.ID, err)
		}
	}
	return nil
}
