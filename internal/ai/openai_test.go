package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"TITLE: x\nDESCRIPTION: y"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(Config{BaseURL: srv.URL + "/", APIKey: "k", Model: "m"})
	res, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "TITLE: x\nDESCRIPTION: y", res.Text)
	require.Equal(t, "m", got.Model)
	require.Equal(t, []chatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}}, got.Messages)
}

func TestOpenAIErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
		empty  bool
	}{
		{name: "status", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"bad model"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, empty: true},
		{name: "garbage", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := NewOpenAI(Config{BaseURL: srv.URL, APIKey: "k"}).Complete(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			require.Equal(t, tt.empty, errors.Is(err, ErrEmptyResponse))
		})
	}
}

func TestOpenAIRespectsContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewOpenAI(Config{BaseURL: srv.URL, APIKey: "k"}).Complete(ctx, Request{Prompt: "p"})
	require.Error(t, err)
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{})
	require.True(t, errors.Is(err, ErrNotConfigured))
	_, err = New(context.Background(), Config{APIKey: "k", Provider: "llama"})
	require.Error(t, err)
	c, err := New(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	require.IsType(t, &OpenAI{}, c)
}
