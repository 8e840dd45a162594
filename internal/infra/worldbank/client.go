package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"capital-quiz-service/internal/domain"
)

// DefaultBaseURL is the public World Bank country API.
const DefaultBaseURL = "https://api.worldbank.org/v2"

// Client fetches the country catalog from the World Bank country API. The
// API pages with 1-based page numbers and reports the total page count in
// every response; entries without a capital city are skipped.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type pageMeta struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type countryRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region struct {
		Value string `json:"value"`
	} `json:"region"`
	CapitalCity string `json:"capitalCity"`
}

// LoadCatalog walks every page of the country listing and builds the catalog.
func (c *Client) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	var countries []domain.Country
	for page, pages := 1, 1; page <= pages; page++ {
		meta, records, err := c.fetchPage(ctx, page)
		if err != nil {
			return domain.Catalog{}, err
		}
		pages = meta.Pages

		for _, rec := range records {
			if rec.CapitalCity == "" {
				continue
			}
			countries = append(countries, domain.Country{
				ID:      rec.ID,
				Name:    rec.Name,
				Region:  rec.Region.Value,
				Capital: rec.CapitalCity,
			})
		}
	}
	if len(countries) == 0 {
		return domain.Catalog{}, domain.ErrCatalogEmpty
	}
	return domain.NewCatalog(countries), nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (pageMeta, []countryRecord, error) {
	url := fmt.Sprintf("%s/country?format=json&page=%d", c.baseURL, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pageMeta{}, nil, fmt.Errorf("build country request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pageMeta{}, nil, fmt.Errorf("fetch country page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pageMeta{}, nil, fmt.Errorf("fetch country page %d: unexpected status %s", page, resp.Status)
	}

	// Responses are a 2-element array: [meta, entries].
	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return pageMeta{}, nil, fmt.Errorf("decode country page %d: %w", page, err)
	}
	if len(payload) < 2 {
		return pageMeta{}, nil, fmt.Errorf("decode country page %d: short payload", page)
	}

	var meta pageMeta
	if err := json.Unmarshal(payload[0], &meta); err != nil {
		return pageMeta{}, nil, fmt.Errorf("decode country page %d meta: %w", page, err)
	}
	var records []countryRecord
	if err := json.Unmarshal(payload[1], &records); err != nil {
		return pageMeta{}, nil, fmt.Errorf("decode country page %d entries: %w", page, err)
	}
	return meta, records, nil
}
