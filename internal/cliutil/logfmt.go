package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/leakwatch/leakwatch/internal/supervise"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Process   string    `json:"process"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
}

// NewLogRecord converts a supervised output line into a structured record.
// Stderr lines without a recognizable level token default to warn.
func NewLogRecord(line supervise.Line) LogRecord {
	level := inferLogLevel(line.Text)
	if level == "" {
		if line.Source == supervise.SourceStderr {
			level = "warn"
		} else {
			level = "info"
		}
	}
	return LogRecord{
		Timestamp: time.Now(),
		Process:   line.Name,
		Level:     level,
		Message:   RedactSecrets(line.Text),
		Source:    line.Source,
	}
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeLogLine encodes a supervised output line to JSON, reporting encoder
// errors to stderr if needed.
func EncodeLogLine(enc *json.Encoder, stderr io.Writer, line supervise.Line) {
	if enc == nil {
		return
	}
	record := NewLogRecord(line)
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
