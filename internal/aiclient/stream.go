package aiclient

import (
	"bufio"
	"context"
	"encoding/json/v2"
	"iter"
	"net/http"
	"strings"

	"github.com/islabooks/isla/internal/errors"
)

// Chunk types emitted by the question-answering stream.
const (
	ChunkTypeDelta     = "delta"
	ChunkTypeReference = "reference"
	ChunkTypeUsage     = "usage"
)

// streamTerminator ends an SSE answer stream.
const streamTerminator = "[DONE]"

// QuestionRequest asks a question about a passage of a book.
type QuestionRequest struct {
	BookID    string `json:"book_id"`
	ChapterID string `json:"chapter_id,omitempty"`
	Question  string `json:"question"`
	Context   string `json:"context,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Reference points at a source passage the answer draws on.
type Reference struct {
	ChapterID string `json:"chapter_id"`
	Excerpt   string `json:"excerpt,omitempty"`
}

// ResponseChunk is one server-sent event of an answer stream. Delta chunks
// carry incremental answer text; reference and usage chunks arrive at most
// once near the end of the stream.
type ResponseChunk struct {
	Type      string     `json:"type"`
	ID        string     `json:"id,omitempty"`
	Delta     string     `json:"delta,omitempty"`
	Reference *Reference `json:"reference,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// Ask streams the answer to a question. The sequence yields chunks until the
// server terminates the stream or an error occurs; breaking out of the loop
// aborts the request.
func (c *Client) Ask(ctx context.Context, req QuestionRequest) iter.Seq2[*ResponseChunk, error] {
	return func(yield func(*ResponseChunk, error) bool) {
		body, err := json.Marshal(req)
		if err != nil {
			yield(nil, errors.Internal("marshal question", err))
			return
		}

		resp, err := c.send(ctx, http.MethodPost, qaPath, strings.NewReader(string(body)), "application/json", "text/event-stream")
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == streamTerminator {
				return
			}

			var chunk ResponseChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				if !yield(nil, errors.Decode("decode answer chunk", err)) {
					return
				}
				continue
			}
			if !yield(&chunk, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			yield(nil, errors.Network("read answer stream", err))
		}
	}
}
