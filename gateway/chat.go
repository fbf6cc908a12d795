package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

type streamRequest struct {
	Message       string `json:"message"`
	SessionID     string `json:"session_id,omitempty"`
	SystemPrompt  string `json:"system_prompt,omitempty"`
	ActionControl string `json:"action_control,omitempty"`
	Stream        bool   `json:"stream"`
}

// Chat sends a conversational turn to the agent behind accessToken and
// returns the assembled streamed reply.
func (c *Client) Chat(ctx context.Context, accessToken, message, sessionID, systemPrompt string) (string, error) {
	return c.stream(ctx, "/chat/stream", accessToken, streamRequest{
		Message:      message,
		SessionID:    sessionID,
		SystemPrompt: systemPrompt,
		Stream:       true,
	})
}

// Act sends a task to the agent with an action-control directive steering
// the shape of its output.
func (c *Client) Act(ctx context.Context, accessToken, message, actionControl, sessionID, systemPrompt string) (string, error) {
	return c.stream(ctx, "/act/stream", accessToken, streamRequest{
		Message:       message,
		SessionID:     sessionID,
		SystemPrompt:  systemPrompt,
		ActionControl: actionControl,
		Stream:        true,
	})
}

func (c *Client) stream(ctx context.Context, path, accessToken string, payload streamRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", newStatusError(resp.StatusCode, errBody)
	}
	return readEventStream(resp.Body)
}
