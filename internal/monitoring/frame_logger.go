// Package monitoring - frame_logger.go renders frame trace lines.
//
// DESIGN: One aligned line per captured frame so a terminal session reads as
// a table. Lines are emitted from background tasks and may appear out of
// arrival order; each carries the frame's own elapsed timestamp so readers
// can reconstruct true order.
package monitoring

import (
	"fmt"
	"strings"
)

// FrameLogger emits aligned frame trace lines through the logging collaborator.
type FrameLogger struct {
	logger *Logger
}

// NewFrameLogger creates a frame logger.
func NewFrameLogger(logger *Logger) *FrameLogger {
	return &FrameLogger{logger: logger}
}

// LogFrame emits the trace line for one captured frame, followed by an
// indented content line when the frame has displayable content.
func (fl *FrameLogger) LogFrame(ev *FrameEvent) {
	line := fmt.Sprintf("%7.2fs  %s  [%-9s] %-30s %12s -> %-12s",
		ev.ElapsedSec, ev.Glyph, ev.Tag, ev.FrameType, ev.Source, ev.Destination)
	if ev.LatencyMs >= 0 {
		line += fmt.Sprintf("  %6.1fms", ev.LatencyMs)
	}
	fl.logger.Debug().Msg(line)

	if ev.Content != "" {
		fl.logger.Debug().Msg(strings.Repeat(" ", 26) + ev.Content)
	}
	if ev.WireSummary != "" {
		fl.logger.Debug().Msg(strings.Repeat(" ", 26) + "wire: " + ev.WireSummary)
	}
}

// nodeNameReplacer shortens pipeline node names for cleaner output.
var nodeNameReplacer = strings.NewReplacer(
	"PipelineTask#0::", "Task:",
	"Pipeline#0::", "",
	"Service#0", "",
	"Transport#0", "",
	"Processor#0", "",
	"Aggregator#0", "",
	"#0", "",
	"WebsocketInput", "WS-In",
	"WebsocketOutput", "WS-Out",
	"Deepgram", "DG",
	"OpenAIAgent", "Agent",
	"LLMUser", "User",
	"LLMAssistant", "Asst",
)

// ShortenNodeName compresses verbose pipeline node names for display.
func ShortenNodeName(name string) string {
	if name == "" {
		return "?"
	}
	return nodeNameReplacer.Replace(name)
}
