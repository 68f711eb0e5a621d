// Package webhook posts assistant notifications, such as delivered task
// reminders, to an HTTP endpoint as JSON.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

var (
	// timeout is the timeout for webhook request. Default to 30 seconds.
	timeout = 30 * time.Second
)

// Activity types sent in the payload.
const (
	ActivityReminder = "task.reminder"
)

// Payload is the JSON body posted to the endpoint.
type Payload struct {
	ActivityType string    `json:"activityType"`
	Text         string    `json:"text"`
	TaskID       int64     `json:"taskId,omitempty"`
	TaskTitle    string    `json:"taskTitle,omitempty"`
	Due          *int64    `json:"due,omitempty"`
	SentAt       time.Time `json:"sentAt"`
}

// Notifier posts payloads to one URL.
type Notifier struct {
	url    string
	client *http.Client
}

// New returns a Notifier for url. A nil client uses one with the default timeout.
func New(url string, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Notifier{url: url, client: client}
}

func (n *Notifier) URL() string {
	return n.url
}

// Post posts the payload and checks the response. A JSON body with a
// non-zero "code" counts as a failure.
func (n *Notifier) Post(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook request to %s", n.url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", n.url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", n.url)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read webhook response from %s", n.url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("failed to post webhook %s, status code: %d, response body: %s", n.url, resp.StatusCode, b)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}

	response := &struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}{}
	if err := json.Unmarshal(b, response); err != nil {
		// Plain text acknowledgements are fine.
		return nil
	}
	if response.Code != 0 {
		return errors.Errorf("receive error code sent by webhook server, code %d, msg: %s", response.Code, response.Message)
	}
	return nil
}

// PostAsync posts the payload in a new goroutine and only logs failures.
func (n *Notifier) PostAsync(payload *Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := n.Post(ctx, payload); err != nil {
			slog.Warn("Failed to dispatch webhook asynchronously",
				slog.String("url", n.url),
				slog.String("activityType", payload.ActivityType),
				slog.Any("err", err))
		}
	}()
}
