// Package advice is the client for the remote advice endpoint. The
// endpoint's reasoning is an external collaborator; only the wire
// shape matters here.
package advice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"visiond/internal/log"
)

// Request is the advice call body.
type Request struct {
	ImageBase64  string `json:"image_base64"`
	UserContext  string `json:"user_context"`
	MobileNumber string `json:"mobile_number"`
}

type response struct {
	Advice string `json:"advice"`
	Error  string `json:"error"`
}

type Client struct {
	endpoint string
	http     *http.Client
	logger   *log.Logger
}

// NewClient creates a client for the given endpoint. No client-side
// timeout is set beyond what the transport enforces; a cycle waits as
// long as the advice service does.
func NewClient(endpoint string, logger *log.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{},
		logger:   logger.WithComponent(log.ComponentAdvice),
	}
}

// Fetch sends one advice request and returns the advice text. An empty
// string with a nil error means the call succeeded but the service had
// no advice for this screen.
func (c *Client) Fetch(ctx context.Context, image []byte, userContext, mobile string) (string, error) {
	body, err := json.Marshal(Request{
		ImageBase64:  base64.StdEncoding.EncodeToString(image),
		UserContext:  userContext,
		MobileNumber: mobile,
	})
	if err != nil {
		return "", fmt.Errorf("marshal advice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build advice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.InfoContext(ctx, "advice request", log.FieldUser, mobile, log.FieldBytes, len(image))
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("advice request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read advice response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("advice endpoint returned %d: %s", resp.StatusCode, excerpt(raw))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode advice response: %w", err)
	}
	// Some failures come back as a 200 with an error field.
	if out.Error != "" {
		return "", fmt.Errorf("advice endpoint error: %s", out.Error)
	}
	return out.Advice, nil
}

// excerpt keeps failure diagnostics short enough to render inline.
func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 160 {
		return s[:160] + "..."
	}
	return s
}
