package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-assistant/core/playback"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	appendedChunks, _ = meter.Int64Counter("playback.chunks.appended")
	fallbacks, _      = meter.Int64Counter("playback.fallbacks")
)
