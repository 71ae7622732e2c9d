package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func streamingServer(t *testing.T, chunks []string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "gpt-4o-mini",
				"choices": []map[string]interface{}{
					{"index": 0, "delta": map[string]string{"content": chunk}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIJudgeStreamsChunksInOrder(t *testing.T) {
	var captured map[string]interface{}
	server := streamingServer(t, []string{"Thinking", "```json\n", "{}"}, &captured)
	defer server.Close()

	judge, err := NewOpenAIJudge(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	prompt := Prompt{
		TextSegment{Text: "judge these"},
		ImageSegment{MimeType: "image/png", Data: []byte{0x89, 0x50}},
	}
	stream, err := judge.Stream(context.Background(), prompt)
	require.NoError(t, err)
	defer stream.Close()

	var received []string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		received = append(received, chunk)
	}

	require.Equal(t, []string{"Thinking", "```json\n", "{}"}, received)
	require.Equal(t, true, captured["stream"])

	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	require.Equal(t, "data:image/png;base64,iVA=", image["url"])
}

func TestOpenAIJudgeRequiresKey(t *testing.T) {
	_, err := NewOpenAIJudge(OpenAIConfig{})
	require.Error(t, err)
}

func TestAnthropicJudgeRequiresKey(t *testing.T) {
	_, err := NewAnthropicJudge(AnthropicConfig{})
	require.Error(t, err)
}

func anthropicServer(t *testing.T, deltas []string, final string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i, delta := range deltas {
			payload, _ := json.Marshal(map[string]interface{}{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]string{"type": "text_delta", "text": delta},
			})
			fmt.Fprintf(w, "event: content_block_delta\ndata: %s\n\n", payload)
			if i == 0 {
				fmt.Fprint(w, "event: ping\ndata: {\"type\": \"ping\"}\n\n")
			}
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, final)
	}))
}

func collectAnthropic(t *testing.T, server *httptest.Server) ([]string, error) {
	t.Helper()
	judge, err := NewAnthropicJudge(AnthropicConfig{APIKey: "test", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	stream, err := judge.Stream(context.Background(), Prompt{TextSegment{Text: "judge these"}})
	require.NoError(t, err)
	defer stream.Close()

	var received []string
	for {
		chunk, err := stream.Recv()
		if err != nil {
			return received, err
		}
		received = append(received, chunk)
	}
}

func TestAnthropicJudgeStreamsChunksInOrder(t *testing.T) {
	server := anthropicServer(t, []string{"Thinking", "```json\n", "{}"}, "event: message_stop\ndata: {\"type\": \"message_stop\"}\n\n")
	defer server.Close()

	received, err := collectAnthropic(t, server)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, []string{"Thinking", "```json\n", "{}"}, received)
}

func TestAnthropicJudgeSurfacesMidStreamError(t *testing.T) {
	server := anthropicServer(t, []string{"Thinking", "```json\n"},
		"event: error\ndata: {\"type\": \"error\", \"error\": {\"type\": \"overloaded_error\", \"message\": \"Overloaded\"}}\n\n")
	defer server.Close()

	received, err := collectAnthropic(t, server)
	require.Error(t, err)
	require.False(t, errors.Is(err, io.EOF))
	require.Contains(t, err.Error(), "overloaded_error")
	require.Equal(t, []string{"Thinking", "```json\n"}, received)
}

func TestAnthropicJudgeSkipsUnsupportedImageTypes(t *testing.T) {
	judge, err := NewAnthropicJudge(AnthropicConfig{APIKey: "test"})
	require.NoError(t, err)

	blocks := judge.blocks(Prompt{
		TextSegment{Text: "intro"},
		ImageSegment{MimeType: "image/svg+xml", Data: []byte("<svg/>")},
		ImageSegment{MimeType: "image/png", Data: []byte{0x89}},
	})
	require.Len(t, blocks, 2)
}

func TestPromptImageCount(t *testing.T) {
	prompt := Prompt{TextSegment{Text: "a"}, ImageSegment{MimeType: "image/gif"}, ImageSegment{MimeType: "image/png"}}
	require.Equal(t, 2, prompt.ImageCount())
}
