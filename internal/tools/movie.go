package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	SearchMovieName    = "search-movie"
	defaultOMDbBaseURL = "http://www.omdbapi.com"
)

type searchMovieArgs struct {
	Title string `json:"title" jsonschema:"required,description=title of the movie to look up"`
}

var searchMovieSchema = schemaFor[searchMovieArgs]()

// SearchMovie looks up a movie by title on OMDb.
type SearchMovie struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSearchMovie(apiKey, baseURL string) *SearchMovie {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOMDbBaseURL
	}
	return &SearchMovie{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SearchMovie) Name() string { return SearchMovieName }
func (s *SearchMovie) Description() string {
	return "Look up a movie by its title. Returns the OMDb record of the closest match."
}
func (s *SearchMovie) Parameters() json.RawMessage { return searchMovieSchema }

// Execute returns the OMDb response body unchanged.
func (s *SearchMovie) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params searchMovieArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return "", errors.New("title is required")
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", s.apiKey)
	q.Set("t", params.Title)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", s.requestError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OMDb API error (status %d): %s", resp.StatusCode, s.redact(snippet(body)))
	}
	return string(body), nil
}

// requestError drops the request URL, which carries the API key, from a
// transport error.
func (s *SearchMovie) requestError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("omdb request: %s", s.redact(err.Error()))
}

func (s *SearchMovie) redact(text string) string {
	if s.apiKey == "" {
		return text
	}
	text = strings.ReplaceAll(text, s.apiKey, "REDACTED")
	return strings.ReplaceAll(text, url.QueryEscape(s.apiKey), "REDACTED")
}

const maxErrorBody = 200

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
