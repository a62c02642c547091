package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
)

const webhookTimeout = 10 * time.Second

// MattermostSink posts to an incoming webhook.
type MattermostSink struct {
	webhook string
	client  *http.Client
}

func NewMattermostSink(webhook string) *MattermostSink {
	return &MattermostSink{
		webhook: webhook,
		client:  &http.Client{Timeout: webhookTimeout},
	}
}

type webhookPayload struct {
	text string
	card string
}

func (p webhookPayload) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"text":`)
	w.String(p.text)
	if p.card != "" {
		w.RawString(`,"props":{"card":`)
		w.String(p.card)
		w.RawByte('}')
	}
	w.RawByte('}')
}

func (s *MattermostSink) SendMessage(ctx context.Context, text, detail string) error {
	body, err := easyjson.Marshal(webhookPayload{text: text, card: detail})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
