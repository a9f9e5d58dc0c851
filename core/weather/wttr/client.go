// Package wttr fetches one-line forecasts from wttr.in.
package wttr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultURL     = "https://wttr.in/"
	defaultTimeout = 10 * time.Second

	// Condition text, temperature and wind, without the emoji the default
	// formats carry so the line reads well through text to speech.
	defaultFormat = "%l: %C, %t, wind %w"
)

// Client implements [actions.Forecaster].
type Client struct {
	baseURL string
	format  string
	client  *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultURL,
		format:  defaultFormat,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.client = &http.Client{Transport: otelhttp.NewTransport(transport), Timeout: c.client.Timeout}
	return c
}

// Forecast returns the current conditions for location. An empty location
// lets the service guess from the caller's address.
func (c *Client) Forecast(ctx context.Context, location string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch forecast")
	defer span.End()
	span.SetAttributes(attribute.String("weather.location", location))

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fail(span, fmt.Errorf("invalid forecast url: %w", err))
	}
	endpoint = endpoint.JoinPath(strings.TrimSpace(location))
	endpoint.RawQuery = url.Values{"format": {c.format}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", "curl/8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fail(span, fmt.Errorf("failed to read forecast: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fail(span, fmt.Errorf("forecast returned %s: %s", resp.Status, body))
	}

	forecast := strings.Join(strings.Fields(string(body)), " ")
	if forecast == "" || strings.HasPrefix(forecast, "Unknown location") {
		return "", fail(span, fmt.Errorf("no forecast for %q", location))
	}
	logger.DebugContext(ctx, "Forecast fetched", "location", location, "forecast", forecast)
	return forecast, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
