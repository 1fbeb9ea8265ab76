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
	"time"

	"golang.org/x/time/rate"

	"github.com/fuunylmz/Re-aniname/internal/config"
)

const (
	DefaultTMDBBaseURL     = "https://api.themoviedb.org/3"
	DefaultDetailsLanguage = "zh-CN"
)

// TMDB is a Catalog backed by The Movie Database v3 API.
type TMDB struct {
	apiKey          string
	baseURL         string
	detailsLanguage string
	httpClient      *http.Client
	limiter         *rate.Limiter
}

var _ Catalog = (*TMDB)(nil)

// Option configures a TMDB client.
type Option func(*TMDB)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *TMDB) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables
// the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *TMDB) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// NewTMDB creates a client. detailsLanguage is used when fetching TV
// details; empty means zh-CN.
func NewTMDB(apiKey, baseURL, detailsLanguage string, opts ...Option) (*TMDB, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultTMDBBaseURL
	}
	detailsLanguage = strings.TrimSpace(detailsLanguage)
	if detailsLanguage == "" {
		detailsLanguage = DefaultDetailsLanguage
	}
	c := &TMDB{
		apiKey:          apiKey,
		baseURL:         baseURL,
		detailsLanguage: detailsLanguage,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		limiter:         rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromConfig returns a TMDB catalog, or nil when no API key is configured
// (enrichment disabled).
func FromConfig(cfg config.CatalogConfig) (Catalog, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	opts := []Option{WithRateLimit(cfg.RequestsPerSecond)}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}))
	}
	return NewTMDB(cfg.APIKey, cfg.BaseURL, cfg.DetailsLanguage, opts...)
}

type searchResult struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Name          string `json:"name"`
	OriginalTitle string `json:"original_title"`
	OriginalName  string `json:"original_name"`
	ReleaseDate   string `json:"release_date"`
	FirstAirDate  string `json:"first_air_date"`
}

type searchResponse struct {
	Page    int               `json:"page"`
	Results []json.RawMessage `json:"results"`
}

type tvDetails struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Seasons []Season `json:"seasons"`
}

// Search runs search/movie or search/tv and returns the first result.
func (c *TMDB) Search(ctx context.Context, q Query) (*Match, error) {
	query := strings.TrimSpace(q.Title)
	if query == "" {
		return nil, &Error{Op: "search", Err: errors.New("query must not be empty")}
	}
	kind := q.Kind
	if kind != SearchTV {
		kind = SearchMovie
	}

	params := url.Values{}
	params.Set("query", query)
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.Year > 0 {
		if kind == SearchMovie {
			params.Set("primary_release_year", strconv.Itoa(q.Year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(q.Year))
		}
	}

	var payload searchResponse
	if err := c.get(ctx, "search/"+string(kind), params, &payload); err != nil {
		return nil, wrapError("search", query, err)
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}

	raw := payload.Results[0]
	var best searchResult
	if err := json.Unmarshal(raw, &best); err != nil {
		return nil, &Error{Op: "search", Query: query, Err: fmt.Errorf("decode result: %w", err)}
	}
	return &Match{
		ID:            best.ID,
		Kind:          kind,
		Title:         firstNonEmpty(best.Title, best.Name),
		OriginalTitle: firstNonEmpty(best.OriginalTitle, best.OriginalName),
		Year:          yearOf(firstNonEmpty(best.ReleaseDate, best.FirstAirDate)),
		Raw:           append(json.RawMessage(nil), raw...),
	}, nil
}

// FetchSeasons loads the season list of a TV show.
func (c *TMDB) FetchSeasons(ctx context.Context, id int64) ([]Season, error) {
	params := url.Values{}
	params.Set("language", c.detailsLanguage)

	var details tvDetails
	if err := c.get(ctx, "tv/"+strconv.FormatInt(id, 10), params, &details); err != nil {
		return nil, wrapError("tv details", strconv.FormatInt(id, 10), err)
	}
	if details.Seasons == nil {
		return []Season{}, nil
	}
	return details.Seasons, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb returned %d: %s", e.code, e.body)
}

func wrapError(op, query string, err error) error {
	catErr := &Error{Op: op, Query: query, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		catErr.StatusCode = se.code
	}
	return catErr
}

func (c *TMDB) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("api_key", c.apiKey)
	endpoint := c.baseURL + "/" + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", time.Since(start), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
