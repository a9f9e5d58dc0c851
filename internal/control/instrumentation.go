package control

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-assistant/internal/control"

var logger = otelslog.NewLogger(scopeName)
