// Package youtube searches videos with the YouTube Data API.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/koscakluka/ema-assistant/core/intent"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultURL        = "https://www.googleapis.com/youtube/v3/search"
	defaultMaxResults = 8
	defaultTimeout    = 10 * time.Second
)

// Client implements [intent.Searcher].
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

type Option func(*Client)

func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithMaxResults(n int) Option {
	return func(c *Client) { c.maxResults = n }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// NewClient reads the API key from YOUTUBE_API_KEY unless one is passed.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		apiKey:     os.Getenv("YOUTUBE_API_KEY"),
		baseURL:    defaultURL,
		maxResults: defaultMaxResults,
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		return nil, errors.New("youtube api key not found")
	}

	transport := c.client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.client = &http.Client{Transport: otelhttp.NewTransport(transport), Timeout: c.client.Timeout}
	return c, nil
}

type thumbnail struct {
	URL string `json:"url"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			Thumbnails map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *Client) Search(ctx context.Context, query string) ([]intent.MediaResult, error) {
	ctx, span := tracer.Start(ctx, "search youtube")
	defer span.End()

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fail(span, fmt.Errorf("invalid search url: %w", err))
	}
	q := endpoint.Query()
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(c.maxResults))
	q.Set("q", query)
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fail(span, fmt.Errorf("search returned %s: %s", resp.Status, body))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fail(span, fmt.Errorf("failed to decode response: %w", err))
	}

	results := make([]intent.MediaResult, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, intent.MediaResult{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			ThumbnailURL: pickThumbnail(item.Snippet.Thumbnails),
		})
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	logger.DebugContext(ctx, "YouTube search finished", "query", query, "results", len(results))
	return results, nil
}

func pickThumbnail(thumbnails map[string]thumbnail) string {
	for _, size := range []string{"medium", "high", "default"} {
		if t, ok := thumbnails[size]; ok {
			return t.URL
		}
	}
	return ""
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
