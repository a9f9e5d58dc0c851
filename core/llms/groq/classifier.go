package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-assistant/core/intent"
	"github.com/koscakluka/ema-assistant/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel = "openai/gpt-oss-20b"
)

// Classifier classifies utterances with groq structured outputs. It
// implements [intent.Classifier].
type Classifier struct {
	options llms.ClientOptions
	client  *http.Client
	schema  *jsonschema.Schema
}

// NewClassifier reads the API key from GROQ_API_KEY unless one is passed.
func NewClassifier(opts ...llms.ClientOption) (*Classifier, error) {
	options := llms.NewClientOptions(llms.ClientOptions{
		APIKey:  os.Getenv("GROQ_API_KEY"),
		Model:   defaultModel,
		BaseURL: defaultURL,
	}, opts...)
	if options.APIKey == "" {
		return nil, errors.New("groq api key not found")
	}

	transport := options.HTTPClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	// TODO: Implement a custom reflector that only emits the subset of
	// jsonschema groq accepts in strict mode
	reflector := jsonschema.Reflector{DoNotReference: true}
	return &Classifier{
		options: options,
		client:  &http.Client{Transport: otelhttp.NewTransport(transport), Timeout: options.HTTPClient.Timeout},
		schema:  reflector.Reflect(&intent.Payload{}),
	}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string, uiContext intent.Context) (*intent.Payload, error) {
	ctx, span := tracer.Start(ctx, "classify with groq")
	defer span.End()

	reqBody := schemaRequestBody{
		Model:    c.options.Model,
		Messages: toMessages(llms.Instructions, llms.UserPrompt(text, uiContext)),
		ResponseFormat: &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "Payload",
				Schema: *c.schema,
			},
		},
	}
	span.SetAttributes(attribute.String("request.model", c.options.Model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fail(span, fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.BaseURL, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, fail(span, fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.options.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fail(span, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %s", intent.ErrRateLimited, resp.Status)
		}
		return nil, fail(span, err)
	}

	var responseBody schemaResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return nil, fail(span, fmt.Errorf("error reading response body: %v: %w", err, intent.ErrMalformedResponse))
	}
	if len(responseBody.Choices) == 0 {
		return nil, fail(span, fmt.Errorf("no choices in response: %w", intent.ErrMalformedResponse))
	}
	if usage := responseBody.Usage; usage != nil {
		span.SetAttributes(attribute.Int("usage.total_tokens", usage.TotalTokens))
	}

	payload, err := llms.DecodePayload(responseBody.Choices[0].Message.Content)
	if err != nil {
		logger.WarnContext(ctx, "Unparseable classifier output", "content", responseBody.Choices[0].Message.Content)
		return nil, fail(span, err)
	}
	return payload, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type schemaRequestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	// Name identifies the schema in the response.
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      jsonschema.Schema `json:"schema"`
	// Strict enforces the schema upon the generated content.
	Strict bool `json:"strict"`
}

type schemaResponseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
