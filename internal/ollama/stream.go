// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1 << 20

// StreamReader decodes a newline-delimited JSON chat stream.
type StreamReader struct {
	scanner *bufio.Scanner
	model   string
	done    bool
}

// NewStreamReader wraps r.
func NewStreamReader(r io.Reader) *StreamReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamReader{scanner: sc}
}

// streamLine mirrors one line of /api/chat output.
type streamLine struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	Error           string `json:"error,omitempty"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// Next returns the next chunk. It returns io.EOF after the done chunk or
// when the body ends. Blank and malformed lines are skipped.
func (s *StreamReader) Next() (StreamChunk, error) {
	for !s.done && s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp streamLine
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
		}
		if resp.Model != "" {
			s.model = resp.Model
		}

		chunk := StreamChunk{
			Content:    resp.Message.Content,
			Done:       resp.Done,
			DoneReason: resp.DoneReason,
			Model:      s.model,
		}
		if resp.Done {
			s.done = true
			chunk.PromptTokens = resp.PromptEvalCount
			chunk.CompletionTokens = resp.EvalCount
			chunk.TotalDuration = time.Duration(resp.TotalDuration)
		}
		return chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		return StreamChunk{}, err
	}
	return StreamChunk{}, io.EOF
}
