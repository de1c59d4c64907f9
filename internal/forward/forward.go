package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mailcal/internal/models"
)

type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(logger *slog.Logger, url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if a forwarding URL is set.
func (c *Client) Configured() bool {
	return c.url != ""
}

type payload struct {
	UID        string   `json:"uid"`
	StartTime  string   `json:"startTime"`
	EndTime    string   `json:"endTime"`
	MeetingURL string   `json:"meetingUrl"`
	Subject    string   `json:"subject"`
	Attendees  []string `json:"attendees"`
}

// Forward posts the extracted fields to the downstream URL and logs the reply.
// The reply is never interpreted beyond its status.
func (c *Client) Forward(ctx context.Context, event *models.ExtractedEvent) error {
	if !c.Configured() {
		return nil
	}

	attendees := event.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	body, err := json.Marshal(payload{
		UID:        event.UID,
		StartTime:  event.StartTime,
		EndTime:    event.EndTime,
		MeetingURL: event.MeetingURL,
		Subject:    event.Subject,
		Attendees:  attendees,
	})
	if err != nil {
		return fmt.Errorf("marshal forward payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forward event: %w", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	c.logger.Info("Forwarded calendar event.", "uid", event.UID, "status", resp.StatusCode, "reply", string(reply))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("forward target error: status %d", resp.StatusCode)
	}
	return nil
}
