// Package twilio sends appointment confirmation SMS through the Twilio Messages API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	AccountSID string
	AuthToken  string
	HTTP       *http.Client

	MessagingServiceSID string
	FromNumber          string
	BaseURL             string
}

type SendRequest struct {
	To                string
	Body              string
	StatusCallbackURL string
}

type SendResponse struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	ErrorCode *int   `json:"error_code"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// APIError is a non-2xx answer from Twilio.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("twilio: %d %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("twilio: send failed with status %d", e.HTTPStatus)
}

// Configured reports whether credentials and a sender are set.
func (c *Client) Configured() bool {
	return c != nil && c.AccountSID != "" && c.AuthToken != "" && (c.MessagingServiceSID != "" || c.FromNumber != "")
}

func (c *Client) SendSMS(ctx context.Context, req SendRequest) (SendResponse, int, []byte, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("Body", req.Body)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
	}
	if c.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", c.MessagingServiceSID)
	} else {
		form.Set("From", c.FromNumber)
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	endpoint := baseURL + "/2010-04-01/Accounts/" + c.AccountSID + "/Messages.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.AccountSID, c.AuthToken)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	// 201 Created on success
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, resp.StatusCode, b, &APIError{HTTPStatus: resp.StatusCode, Code: out.Code, Message: out.Message}
	}
	return out, resp.StatusCode, b, nil
}

// ShouldRetry reports whether a failed send is worth another attempt.
func ShouldRetry(err error, httpStatus int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		httpStatus = apiErr.HTTPStatus
	} else if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	}
	switch {
	case httpStatus == http.StatusTooManyRequests, httpStatus == http.StatusRequestTimeout:
		return true
	case httpStatus >= 500 && httpStatus <= 599:
		return true
	}
	return false
}

// Backoff returns the pause before retry number attempt (0-based): 200ms, 600ms, then 1.4s.
func Backoff(attempt int) time.Duration {
	steps := [...]time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}
	switch {
	case attempt <= 0:
		return steps[0]
	case attempt >= len(steps):
		return steps[len(steps)-1]
	}
	return steps[attempt]
}
