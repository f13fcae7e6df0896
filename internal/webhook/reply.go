package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is an outbound reply message. Type is "text" or "image".
type Message struct {
	Type               string `json:"type"`
	Text               string `json:"text,omitempty"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

// TextMessage builds a text reply.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// ImageMessage builds an image reply. The platform requires both a full
// image URL and a preview URL; we use the same image for both.
func ImageMessage(imageURL string) Message {
	return Message{Type: "image", OriginalContentURL: imageURL, PreviewImageURL: imageURL}
}

// Replier sends reply messages back to the messaging platform.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages []Message) error
}

// ReplyClient posts replies to the platform's reply endpoint with a bearer
// channel token.
type ReplyClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewReplyClient creates a ReplyClient.
func NewReplyClient(endpoint, token string, timeout time.Duration) *ReplyClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReplyClient{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// Reply sends messages in response to the event that carried replyToken.
func (c *ReplyClient) Reply(ctx context.Context, replyToken string, messages []Message) error {
	payload, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reply endpoint returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}
