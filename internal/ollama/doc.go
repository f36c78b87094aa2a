// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is a small HTTP client for a local Ollama server.
//
// It covers what the assistant needs: a health check, the model list, and
// streaming chat. Streaming responses are newline-delimited JSON and are
// decoded by StreamReader.
//
// # Usage
//
//	client := ollama.NewClient()
//	reader, body, err := client.OpenChatStream(ctx, ollama.ChatRequest{
//	    Model:    "qwen2.5-coder:7b",
//	    Messages: []ollama.Message{{Role: "user", Content: "Hello"}},
//	})
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//	for {
//	    chunk, err := reader.Next()
//	    if err != nil {
//	        break // io.EOF after the done chunk
//	    }
//	    fmt.Print(chunk.Content)
//	}
package ollama
