package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	defaultHTTPTimeout = 60 * time.Second
	temperature        = 0.1
)

const systemPrompt = `You parse media release filenames for a Plex/Emby style library.
Return one JSON object and nothing else:
{"type":"Movie"|"Series"|"Anime","title":string,"originalTitle":string|null,"year":number|null,
 "season":number|null,"episode":number|null,"resolution":string|null,"source":string|null,"group":string|null}
Rules:
- type: Movie for films, Series for live-action TV of any country, Anime for Japanese animation.
- title: the main title. Prefer a Chinese title when the filename has one.
- originalTitle: the secondary title (English, Japanese or romaji) when present.
- season/episode: from SxxEyy, "1x02", "- 05" and similar. Movies have null season and episode.
- Specials (SP, OVA, OAD, NCOP, NCED): season 0, episode from the number next to the marker or 1.
- resolution, source, group: technical tags when present.
Use null for anything you cannot infer.`

// OpenAIConfig captures the settings for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// OpenAI classifies filenames with an OpenAI-compatible chat completions
// endpoint.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	logger     *logging.Logger
}

// Option customizes the client.
type Option func(*OpenAI)

func WithHTTPClient(client *http.Client) Option {
	return func(c *OpenAI) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *OpenAI) { c.breaker = cb }
}

func WithLogger(logger *logging.Logger) Option {
	return func(c *OpenAI) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOpenAI builds a client. BaseURL and Model fall back to the OpenAI
// defaults; RequestsPerMinute <= 0 disables rate limiting.
func NewOpenAI(cfg OpenAIConfig, opts ...Option) *OpenAI {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	c := &OpenAI{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logging.Nop(),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *OpenAI) Model() string { return c.cfg.Model }

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, e.Body)
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify sends one completion request. Failures are returned as-is and
// counted by the circuit breaker.
func (c *OpenAI) Classify(ctx context.Context, filename string, hints Hints) (media.MediaInfo, error) {
	if c.cfg.APIKey == "" {
		return media.MediaInfo{}, errors.New("classifier: api key required")
	}
	if c.breaker != nil && !c.breaker.Allow() {
		return media.MediaInfo{}, fmt.Errorf("%w (retry in %s)", ErrCircuitOpen, c.breaker.CooldownRemaining().Round(time.Second))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return media.MediaInfo{}, fmt.Errorf("classifier: rate limit wait: %w", err)
	}

	start := time.Now()
	content, err := c.complete(ctx, userPrompt(filename, hints))
	if err == nil {
		var info media.MediaInfo
		info, err = parseResponse(content)
		if err == nil {
			c.recordSuccess()
			c.logger.Debug("classifier", "Classified filename",
				logging.F("file", filename),
				logging.F("type", info.Kind),
				logging.F("title", info.Title),
				logging.F("duration_ms", time.Since(start).Milliseconds()))
			return info, nil
		}
	}
	if ctx.Err() == nil {
		c.recordFailure(err)
	}
	return media.MediaInfo{}, err
}

func (c *OpenAI) recordSuccess() {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
}

func (c *OpenAI) recordFailure(err error) {
	if c.breaker != nil {
		c.breaker.RecordFailure(err.Error())
	}
}

func (c *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("classifier request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("classifier request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("classifier request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("classifier request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("classifier request: api error: %s", completion.Error.Message)
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("classifier request: empty completion")
}

func userPrompt(filename string, hints Hints) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Filename: %q\n", filename)
	if hints.ParentFolder != "" {
		fmt.Fprintf(&sb, "Parent folder: %q\n", hints.ParentFolder)
	}
	if len(hints.Siblings) > 0 {
		siblings := hints.Siblings
		if len(siblings) > MaxSiblings {
			siblings = siblings[:MaxSiblings]
		}
		sb.WriteString("Other files in the same folder:\n")
		for _, s := range siblings {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	return sb.String()
}

// flexInt accepts 3, "3" or null.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		f.v = nil
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// tolerate floats such as 2.0
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("not a number: %s", s)
		}
		n = int(fl)
	}
	f.v = &n
	return nil
}

type classification struct {
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	OriginalTitle *string `json:"originalTitle"`
	Year          flexInt `json:"year"`
	Season        flexInt `json:"season"`
	Episode       flexInt `json:"episode"`
	Resolution    *string `json:"resolution"`
	Source        *string `json:"source"`
	Group         *string `json:"group"`
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseResponse(content string) (media.MediaInfo, error) {
	var out classification
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &out); err != nil {
		return media.MediaInfo{}, fmt.Errorf("classifier: parse payload: %w", err)
	}

	kind, err := media.ParseKind(out.Type)
	if err != nil {
		return media.MediaInfo{}, fmt.Errorf("classifier: %w", err)
	}
	info := media.MediaInfo{
		Kind:          kind,
		Title:         strings.TrimSpace(out.Title),
		OriginalTitle: deref(out.OriginalTitle),
		Year:          out.Year.v,
		Season:        out.Season.v,
		Episode:       out.Episode.v,
		Resolution:    deref(out.Resolution),
		Source:        deref(out.Source),
		Group:         deref(out.Group),
	}
	if info.Year != nil && *info.Year <= 0 {
		info.Year = nil
	}
	if kind == media.KindMovie {
		info.Season, info.Episode = nil, nil
	}
	if err := info.Validate(); err != nil {
		return media.MediaInfo{}, fmt.Errorf("classifier: invalid payload: %w", err)
	}
	return info, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
