package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/campusreach/backend/internal/notifications"
)

// cronPaths maps sweep names to the server's cron endpoints.
var cronPaths = map[string]string{
	notifications.SweepMessages:  "/cron/message-notifications",
	notifications.SweepReminders: "/cron/rating-reminders",
	notifications.SweepDigest:    "/cron/weekly-digest",
}

// remoteRunner triggers a sweep on a running server instead of opening the database.
type remoteRunner struct {
	client *http.Client
	url    string
	secret string
}

func newRemoteRunner(client *http.Client, baseURL, secret, sweep string) (*remoteRunner, error) {
	path, ok := cronPaths[sweep]
	if !ok {
		return nil, fmt.Errorf("unknown sweep %q", sweep)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &remoteRunner{client: client, url: strings.TrimRight(baseURL, "/") + path, secret: secret}, nil
}

type cronResponse struct {
	Success bool                  `json:"success"`
	Data    notifications.Summary `json:"data"`
	Error   string                `json:"error"`
}

func (r *remoteRunner) Run(ctx context.Context) (notifications.Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return notifications.Summary{}, err
	}
	if r.secret != "" {
		req.Header.Set("Authorization", "Bearer "+r.secret)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return notifications.Summary{}, fmt.Errorf("call %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	var body cronResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return notifications.Summary{}, fmt.Errorf("decode %s (status %d): %w", r.url, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return notifications.Summary{}, fmt.Errorf("%s: status %d: %s", r.url, resp.StatusCode, body.Error)
	}
	return body.Data, nil
}
