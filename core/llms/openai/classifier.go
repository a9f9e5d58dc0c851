package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/koscakluka/ema-assistant/core/intent"
	"github.com/koscakluka/ema-assistant/core/llms"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultModel = openai.ChatModelGPT5Nano

// Classifier classifies utterances with the OpenAI chat completions API. It
// implements [intent.Classifier].
type Classifier struct {
	client openai.Client
	model  string
}

// NewClassifier reads the API key from OPENAI_API_KEY unless one is passed.
// Retries are left to [intent.Resolver].
func NewClassifier(opts ...llms.ClientOption) (*Classifier, error) {
	options := llms.NewClientOptions(llms.ClientOptions{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  string(defaultModel),
	}, opts...)
	if options.APIKey == "" {
		return nil, errors.New("openai api key not found")
	}

	transport := options.HTTPClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	clientOptions := []option.RequestOption{
		option.WithAPIKey(options.APIKey),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(transport), Timeout: options.HTTPClient.Timeout}),
		option.WithMaxRetries(0),
	}
	if options.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(options.BaseURL))
	}

	return &Classifier{client: openai.NewClient(clientOptions...), model: options.Model}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string, uiContext intent.Context) (*intent.Payload, error) {
	ctx, span := tracer.Start(ctx, "classify with openai")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(llms.Instructions),
			openai.UserMessage(llms.UserPrompt(text, uiContext)),
		},
		Model: openai.ChatModel(c.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %v", intent.ErrRateLimited, err)
		} else {
			err = fmt.Errorf("chat completion: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices in response: %w", intent.ErrMalformedResponse)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("usage.total_tokens", resp.Usage.TotalTokens))

	content := resp.Choices[0].Message.Content
	logger.DebugContext(ctx, "Classifier output", "content", content)

	payload, err := llms.DecodePayload(content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payload, nil
}
