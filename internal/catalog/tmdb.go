// Package catalog is a client for the TMDB movie catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"moviequery/internal/config"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("catalog rate limit exceeded")

// MaxDiscoverPage is the last page the discover endpoint serves
const MaxDiscoverPage = 500

// DefaultDirector is stored when the credits list no director
const DefaultDirector = "Unknown"

const topCast = 5

// DiscoverMovie is one entry of a discover page
type DiscoverMovie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	VoteAverage float64 `json:"vote_average"`
	GenreIDs    []int   `json:"genre_ids"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
}

// DiscoverPage is one page of the discover endpoint
type DiscoverPage struct {
	Page         int             `json:"page"`
	Results      []DiscoverMovie `json:"results"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
}

// Credits holds the resolved director and leading cast of a movie
type Credits struct {
	Director string
	Cast     []string
}

type creditsResponse struct {
	Cast []struct {
		Name  string `json:"name"`
		Order int    `json:"order"`
	} `json:"cast"`
	Crew []struct {
		Name string `json:"name"`
		Job  string `json:"job"`
	} `json:"crew"`
}

type genreListResponse struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// Client talks to the catalog API with request pacing and 429 retries
type Client struct {
	cfg        *config.CatalogConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger

	genresMu sync.Mutex
	genres   map[int]string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the wait used between rate-limited attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient creates a catalog client
func NewClient(cfg *config.CatalogConfig, logger zerolog.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		sleep:      Sleep,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Discover fetches one page of movies sorted by popularity, optionally
// restricted to a primary release date range
func (c *Client) Discover(ctx context.Context, page int, dr *config.DateRange) (*DiscoverPage, error) {
	params := url.Values{}
	params.Set("sort_by", "popularity.desc")
	params.Set("page", strconv.Itoa(page))
	if dr != nil {
		if dr.From != "" {
			params.Set("primary_release_date.gte", dr.From)
		}
		if dr.To != "" {
			params.Set("primary_release_date.lte", dr.To)
		}
	}

	var result DiscoverPage
	if err := c.get(ctx, "/discover/movie", params, &result); err != nil {
		return nil, fmt.Errorf("failed to discover page %d: %w", page, err)
	}
	return &result, nil
}

// TotalPages reports how many discover pages exist, capped at MaxDiscoverPage
func (c *Client) TotalPages(ctx context.Context, dr *config.DateRange) (int, error) {
	first, err := c.Discover(ctx, 1, dr)
	if err != nil {
		return 0, err
	}
	if first.TotalPages > MaxDiscoverPage {
		return MaxDiscoverPage, nil
	}
	return first.TotalPages, nil
}

// Genres returns the genre id to name mapping. It is fetched once per client.
func (c *Client) Genres(ctx context.Context) (map[int]string, error) {
	c.genresMu.Lock()
	defer c.genresMu.Unlock()

	if c.genres != nil {
		return c.genres, nil
	}

	var result genreListResponse
	if err := c.get(ctx, "/genre/movie/list", url.Values{}, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch genres: %w", err)
	}

	genres := make(map[int]string, len(result.Genres))
	for _, g := range result.Genres {
		genres[g.ID] = g.Name
	}
	c.genres = genres
	return genres, nil
}

// Credits resolves the director and top five billed cast of a movie.
// A movie without a credited director gets DefaultDirector.
func (c *Client) Credits(ctx context.Context, movieID int64) (*Credits, error) {
	var result creditsResponse
	path := fmt.Sprintf("/movie/%d/credits", movieID)
	if err := c.get(ctx, path, url.Values{}, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch credits for movie %d: %w", movieID, err)
	}

	credits := &Credits{Director: DefaultDirector, Cast: []string{}}
	for _, member := range result.Crew {
		if member.Job == "Director" {
			credits.Director = member.Name
			break
		}
	}
	for i, actor := range result.Cast {
		if i == topCast {
			break
		}
		credits.Cast = append(credits.Cast, actor.Name)
	}
	return credits, nil
}

// get performs a paced GET and decodes the JSON body into out. A 429 is
// retried after Retry-After seconds until MaxAttempts is used up.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("api_key", c.cfg.APIKey)
	if c.cfg.Language != "" {
		params.Set("language", c.cfg.Language)
	}
	endpoint := strings.TrimRight(c.cfg.APIBase, "/") + path + "?" + params.Encode()

	attempts := c.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn().
				Str("path", path).
				Int("attempt", attempt).
				Dur("retry_after", wait).
				Msg("Catalog rate limit exceeded, retrying")
			if attempt == attempts {
				break
			}
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog request failed with status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w after %d attempts", ErrRateLimited, attempts)
}

// retryAfter parses a Retry-After value in seconds, defaulting to one second
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}
