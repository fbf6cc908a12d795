package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(apiBase string) *Client {
	return New(apiBase, "https://auth.example.com/oauth", "app-id", "app-secret", "https://app.example.com/callback", 5*time.Second)
}

func TestChat_AssemblesStreamedReply(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody streamRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"Hi \"}\n")
		fmt.Fprint(w, "data: {\"content\":\"there\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	reply, err := c.Chat(context.Background(), "tok", "say hi", "session-1", "be friendly")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)
	assert.Equal(t, "/chat/stream", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "say hi", gotBody.Message)
	assert.Equal(t, "session-1", gotBody.SessionID)
	assert.Equal(t, "be friendly", gotBody.SystemPrompt)
}

func TestAct_SendsActionControl(t *testing.T) {
	var gotPath string
	var gotBody streamRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, "data: {\"content\":\"{\\\"profession\\\":\\\"chef\\\"}\"}\n")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	reply, err := c.Act(context.Background(), "tok", "guess them", "output JSON", "session-g", "")
	require.NoError(t, err)
	assert.Equal(t, `{"profession":"chef"}`, reply)
	assert.Equal(t, "/act/stream", gotPath)
	assert.Equal(t, "output JSON", gotBody.ActionControl)
}

func TestChat_UpstreamErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limited"}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Chat(context.Background(), "tok", "hi", "s", "")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
	assert.Contains(t, statusErr.Body, "rate limited")
}
