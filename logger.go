package mealmind

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// TurnLogger is the interface for per-turn audit logging.
type TurnLogger interface {
	LogStep(step StepLog) error
}

// NewTurnLogFilePath returns a file path based on a cleaned up model name or id to make it easier to identify specific logs produced with various models.
func NewTurnLogFilePath(model string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.ReplaceAll(strings.ToLower(model), ":", "_"),
	)
}

// StepLog represents a single dispatched step within a turn
type StepLog struct {
	StepIndex   int           `json:"step_index"`
	Action      string        `json:"action"`
	Timestamp   time.Time     `json:"timestamp"`
	ModelInput  string        `json:"model_input,omitempty"`
	ModelOutput any           `json:"model_output,omitempty"`
	ToolCalls   []ToolCallLog `json:"tool_calls,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ToolCallLog represents a retrieval-tool execution within a step
type ToolCallLog struct {
	Tool    string `json:"tool"`
	Query   string `json:"query"`
	Result  string `json:"result,omitempty"`
	Deduped bool   `json:"deduped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FileTurnLogger logs to a file, accumulating steps and flushing at the end
type FileTurnLogger struct {
	steps  []StepLog
	writer io.Writer
}

// NewFileTurnLogger creates a new file-based turn logger
func NewFileTurnLogger(writer io.Writer) *FileTurnLogger {
	return &FileTurnLogger{
		steps:  make([]StepLog, 0),
		writer: writer,
	}
}

// LogStep logs a step to the buffer (does not flush immediately)
func (ftl *FileTurnLogger) LogStep(step StepLog) error {
	ftl.steps = append(ftl.steps, step)
	return nil
}

// Flush flushes all accumulated steps to the writer
func (ftl *FileTurnLogger) Flush() error {
	if ftl.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"turn": map[string]any{
			"timestamp": time.Now(),
			"steps":     ftl.steps,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turn log: %w", err)
	}

	if _, err := ftl.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write turn log: %w", err)
	}

	// Clear the buffer after successful write
	ftl.steps = ftl.steps[:0]
	return nil
}

// NoOpTurnLogger is a logger that discards all log entries
type NoOpTurnLogger struct{}

// NewNoOpTurnLogger creates a new no-op turn logger
func NewNoOpTurnLogger() *NoOpTurnLogger {
	return &NoOpTurnLogger{}
}

// LogStep discards the step log (no-op)
func (nop *NoOpTurnLogger) LogStep(step StepLog) error {
	return nil
}

// StdoutTurnLogger logs each step as a JSON line to stdout (for Lambda/CloudWatch)
type StdoutTurnLogger struct{}

// NewStdoutTurnLogger creates a new stdout-based turn logger
func NewStdoutTurnLogger() *StdoutTurnLogger {
	return &StdoutTurnLogger{}
}

// LogStep writes the step as a JSON line to os.Stdout
func (l *StdoutTurnLogger) LogStep(step StepLog) error {
	data, err := json.Marshal(step)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
