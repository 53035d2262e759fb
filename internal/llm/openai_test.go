package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers chat completion calls with content and records the
// decoded request bodies.
func chatServer(t *testing.T, status int, content string, requests *[]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && requests != nil {
			*requests = append(*requests, body)
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	c, err := NewOpenAIClient("test-key", WithModel(""), WithTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestOpenAIClient_Complete_JSONMode(t *testing.T) {
	var requests []map[string]any
	srv := chatServer(t, http.StatusOK, `{"queries":["a"]}`, &requests)

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL+"/v1/"), WithModel("gpt-test"))
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "system", "user", true)
	require.NoError(t, err)
	assert.Equal(t, `{"queries":["a"]}`, got)

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "gpt-test", req["model"])
	assert.InDelta(t, 0.3, req["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIClient_Complete_Prose(t *testing.T) {
	var requests []map[string]any
	srv := chatServer(t, http.StatusOK, "# Report", &requests)

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "system", "user", false)
	require.NoError(t, err)
	assert.Equal(t, "# Report", got)

	require.Len(t, requests, 1)
	assert.InDelta(t, 0.4, requests[0]["temperature"], 1e-9)
	assert.NotContains(t, requests[0], "response_format")
}

func TestOpenAIClient_Complete_ServerErrorIsNotRetried(t *testing.T) {
	var requests []map[string]any
	srv := chatServer(t, http.StatusInternalServerError, "", &requests)

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "system", "user", false)
	assert.Error(t, err)
	assert.Len(t, requests, 1)
}

func TestOpenAIClient_Complete_ContextCancelled(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "x", nil)

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Complete(ctx, "system", "user", false)
	assert.ErrorIs(t, err, context.Canceled)
}
