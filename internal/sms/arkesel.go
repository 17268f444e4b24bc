package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Arkesel sends messages through the Arkesel v1 HTTP API.
type Arkesel struct {
	baseURL string
	apiKey  func() string
	client  *http.Client
}

// NewArkesel creates a client. apiKey is called on every send, so a key
// added to the environment after startup is picked up.
func NewArkesel(baseURL string, apiKey func() string) *Arkesel {
	return &Arkesel{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type arkeselResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *Arkesel) Send(ctx context.Context, to, from, body string) error {
	key := a.apiKey()
	if key == "" {
		return ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("action", "send-sms")
	params.Set("api_key", key)
	params.Set("to", to)
	params.Set("from", from)
	params.Set("sms", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build arkesel request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("arkesel request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read arkesel response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("arkesel failed with status %d", resp.StatusCode)
	}

	var ar arkeselResponse
	if err := json.Unmarshal(respBody, &ar); err == nil && ar.Code != "" && ar.Code != "ok" {
		return fmt.Errorf("arkesel error %s: %s", ar.Code, ar.Message)
	}
	return nil
}
