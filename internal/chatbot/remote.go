package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteClient forwards prompts to the opaque chatbot backend.
type RemoteClient struct {
	url    string
	client *http.Client
}

func NewRemoteClient(url string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{url: url, client: &http.Client{Timeout: timeout}}
}

type remoteRequest struct {
	Message string `json:"message"`
}

type remoteResponse struct {
	Reply string `json:"reply"`
}

// Reply posts {"message": text} and returns the backend's "reply" field.
func (c *RemoteClient) Reply(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(remoteRequest{Message: text})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chatbot backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chatbot backend returned %d", resp.StatusCode)
	}
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chatbot reply: %w", err)
	}
	return out.Reply, nil
}
