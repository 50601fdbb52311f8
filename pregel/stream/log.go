package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes StreamChunks as structured log lines, in either a
// human-readable text format or JSONL.
//
// Usage:
//
//	text := stream.NewLogEmitter(os.Stdout, false)
//	jsonl, _ := os.Create("events.jsonl")
//	defer jsonl.Close()
//	mux.Subscribe(stream.ModeAll, stream.NewLogEmitter(jsonl, true))
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(chunk StreamChunk) {
	if l.jsonMode {
		l.emitJSON(chunk)
	} else {
		l.emitText(chunk)
	}
}

func (l *LogEmitter) emitJSON(chunk StreamChunk) {
	data, err := json.Marshal(struct {
		RunID     string `json:"runID"`
		Step      int    `json:"step"`
		NodeName  string `json:"nodeName"`
		Namespace []string `json:"namespace,omitempty"`
		Mode      Mode   `json:"mode"`
		Payload   any    `json:"payload"`
	}{
		RunID:     chunk.RunID,
		Step:      chunk.Step,
		NodeName:  chunk.NodeName,
		Namespace: chunk.Namespace,
		Mode:      chunk.Mode,
		Payload:   chunk.Payload,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal chunk: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(chunk StreamChunk) {
	_, _ = fmt.Fprintf(l.writer, "[mode=%d] runID=%s step=%d node=%s",
		chunk.Mode, chunk.RunID, chunk.Step, chunk.NodeName)
	if chunk.Payload != nil {
		payloadJSON, err := json.Marshal(chunk.Payload)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " payload=%s", payloadJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " payload=%v", chunk.Payload)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

func (l *LogEmitter) EmitBatch(_ context.Context, chunks []StreamChunk) error {
	for _, c := range chunks {
		l.Emit(c)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffer. Wrap writer in a bufio.Writer and flush that directly if you
// need buffered-writer flush control.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
