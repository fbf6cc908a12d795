package gateway

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// readEventStream accumulates the text content of an SSE response. Each
// "data:" line carries either a JSON delta or plain text; delta payloads
// put the content under choices[0].delta.content, content, text, or
// message depending on the platform version, so each shape is tried in
// that order. Lines that fail to parse as JSON are taken verbatim.
func readEventStream(r io.Reader) (string, error) {
	var out strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		out.WriteString(decodeDelta(payload))
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func decodeDelta(payload string) string {
	var delta struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
		Content string `json:"content"`
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(payload), &delta); err != nil {
		return payload
	}
	if len(delta.Choices) > 0 && delta.Choices[0].Delta.Content != "" {
		return delta.Choices[0].Delta.Content
	}
	if delta.Content != "" {
		return delta.Content
	}
	if delta.Text != "" {
		return delta.Text
	}
	return delta.Message
}
