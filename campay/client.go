// Package campay talks to the CamPay mobile money API.
package campay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartbite-api/config"

	"github.com/sirupsen/logrus"
)

const (
	StatusSuccessful = "SUCCESSFUL"
	StatusFailed     = "FAILED"
	StatusPending    = "PENDING"
)

type CollectRequest struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	From              string `json:"from"`
	Description       string `json:"description"`
	ExternalReference string `json:"external_reference"`
}

// Transaction is the body CamPay returns for collect and status calls
type Transaction struct {
	Reference         string      `json:"reference"`
	ExternalReference string      `json:"external_reference"`
	Status            string      `json:"status"`
	Amount            interface{} `json:"amount,omitempty"`
	Currency          string      `json:"currency,omitempty"`
	Operator          string      `json:"operator,omitempty"`
	OperatorReference string      `json:"operator_reference,omitempty"`
	Code              string      `json:"code,omitempty"`
	Reason            string      `json:"reason,omitempty"`
	USSDCode          string      `json:"ussd_code,omitempty"`
}

// APIError carries the message CamPay answered with
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("campay: %s (status %d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(cfg config.CamPayConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Token fetches a fresh access token. Tokens are not cached.
func (c *Client) Token(ctx context.Context) (string, error) {
	var out struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	body := map[string]string{"username": c.username, "password": c.password}
	if err := c.do(ctx, http.MethodPost, "/token/", "", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "empty access token"}
	}
	return out.Token, nil
}

func (c *Client) Collect(ctx context.Context, req CollectRequest) (*Transaction, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/collect/", token, req, &tx); err != nil {
		return nil, err
	}
	if tx.ExternalReference == "" {
		tx.ExternalReference = req.ExternalReference
	}
	return &tx, nil
}

func (c *Client) TransactionStatus(ctx context.Context, reference string) (*Transaction, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	var tx Transaction
	if err := c.do(ctx, http.MethodGet, "/transaction/"+reference+"/", token, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("campay %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("campay %s %s: read body: %w", method, path, err)
	}
	logrus.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("campay request")

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: upstreamMessage(raw, resp.Status)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("campay %s %s: decode: %w", method, path, err)
	}
	return nil
}

// upstreamMessage picks the human readable part of an error body
func upstreamMessage(raw []byte, fallback string) string {
	var body map[string]interface{}
	if json.Unmarshal(raw, &body) == nil {
		for _, k := range []string{"message", "detail", "error_message", "error"} {
			if s, ok := body[k].(string); ok && s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 200 {
		return s
	}
	return fallback
}
