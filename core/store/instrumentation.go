package store

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-assistant/core/store"

var logger = otelslog.NewLogger(scopeName)
