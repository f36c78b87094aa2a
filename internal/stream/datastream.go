// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// DATA STREAM PROTOCOL
// =============================================================================

// The chat route answers with one part per line, "<code>:<json>\n". Only
// the parts below matter here; unknown codes are skipped.
const (
	PartText   = "0"
	PartError  = "3"
	PartStart  = "f"
	PartStep   = "e"
	PartFinish = "d"
)

// DataStreamContentType is the response content type of the chat route.
const DataStreamContentType = "text/plain; charset=utf-8"

// DataStreamHeader marks a response as data stream encoded.
const DataStreamHeader = "X-Vercel-AI-Data-Stream"

// Part is one decoded line.
type Part struct {
	Code    string
	Text    string
	Payload json.RawMessage
}

// FinishPayload is the body of a finish part.
type FinishPayload struct {
	FinishReason string `json:"finishReason"`
	Usage        *struct {
		PromptTokens     int `json:"promptTokens"`
		CompletionTokens int `json:"completionTokens"`
	} `json:"usage,omitempty"`
}

// DataStreamReader decodes parts from a response body.
type DataStreamReader struct {
	scanner *bufio.Scanner
}

// NewDataStreamReader wraps r.
func NewDataStreamReader(r io.Reader) *DataStreamReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &DataStreamReader{scanner: sc}
}

// Next returns the next part, or io.EOF at the end of the body.
func (d *DataStreamReader) Next() (Part, error) {
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		code, payload, ok := strings.Cut(line, ":")
		if !ok || code == "" {
			continue
		}

		part := Part{Code: code, Payload: json.RawMessage(payload)}
		if code == PartText || code == PartError {
			if err := json.Unmarshal([]byte(payload), &part.Text); err != nil {
				return Part{}, fmt.Errorf("decode %s part: %w", code, err)
			}
		}
		return part, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Part{}, err
	}
	return Part{}, io.EOF
}

// DataStreamWriter encodes parts onto a response.
type DataStreamWriter struct {
	w     io.Writer
	flush func()
}

// NewDataStreamWriter writes to w, calling flush (if not nil) after every
// part.
func NewDataStreamWriter(w io.Writer, flush func()) *DataStreamWriter {
	return &DataStreamWriter{w: w, flush: flush}
}

// Start writes the message start part.
func (d *DataStreamWriter) Start(messageID string) error {
	return d.writeJSON(PartStart, map[string]string{"messageId": messageID})
}

// Text writes a text fragment.
func (d *DataStreamWriter) Text(s string) error {
	return d.writeJSON(PartText, s)
}

// Error writes an error part.
func (d *DataStreamWriter) Error(reason string) error {
	return d.writeJSON(PartError, reason)
}

// Finish writes the finish part.
func (d *DataStreamWriter) Finish(reason string) error {
	return d.writeJSON(PartFinish, FinishPayload{FinishReason: reason})
}

func (d *DataStreamWriter) writeJSON(code string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(d.w, "%s:%s\n", code, b); err != nil {
		return err
	}
	if d.flush != nil {
		d.flush()
	}
	return nil
}
