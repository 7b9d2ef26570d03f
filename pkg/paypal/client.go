package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api-m.sandbox.paypal.com"
	requestBodyReadLimit int64 = 2048
)

var errCredentialsRequired = errors.New("paypal client id and secret are required")

// Client wraps the PayPal Orders v2 API used for checkout capture.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured PayPal base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the PayPal client given REST credentials.
func NewClient(clientID, secret string, opts ...Option) (*Client, error) {
	trimmedID := strings.TrimSpace(clientID)
	trimmedSecret := strings.TrimSpace(secret)
	if trimmedID == "" || trimmedSecret == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		clientID:   trimmedID,
		secret:     trimmedSecret,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// CaptureResult is the normalized outcome of a capture call.
type CaptureResult struct {
	ID         string
	Status     string
	PayerEmail string
	AmountPaid string
}

// CreateOrder registers a CAPTURE-intent order for the given USD amount and
// returns the provider order ID the client completes approval against.
func (c *Client) CreateOrder(ctx context.Context, value string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	if strings.TrimSpace(value) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order amount is required")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{"amount": map[string]string{"currency_code": "USD", "value": value}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal create order request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("v2/checkout/orders"), bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build create order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute create order request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.apiError(resp, "create order failed")
	}

	var apiResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode create order response")
	}
	if apiResp.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal returned no order id")
	}

	return apiResp.ID, nil
}

// CaptureOrder settles the approved provider order and returns the capture outcome.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (*CaptureResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	trimmed := strings.TrimSpace(providerOrderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id is required")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("v2/checkout/orders/%s/capture", url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build capture request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute capture request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.apiError(resp, "capture request failed")
	}

	var apiResp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode capture response")
	}

	result := &CaptureResult{
		ID:         apiResp.ID,
		Status:     apiResp.Status,
		PayerEmail: apiResp.Payer.EmailAddress,
	}
	if len(apiResp.PurchaseUnits) > 0 {
		captures := apiResp.PurchaseUnits[0].Payments.Captures
		if len(captures) > 0 {
			result.AmountPaid = captures[0].Amount.Value
		}
	}

	return result, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.buildURL("v1/oauth2/token"),
		strings.NewReader("grant_type=client_credentials"),
	)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build token request")
	}
	httpReq.SetBasicAuth(c.clientID, c.secret)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", c.apiError(resp, "token request failed")
	}

	var apiResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode token response")
	}
	if apiResp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal returned no access token")
	}

	return apiResp.AccessToken, nil
}

func (c *Client) apiError(resp *http.Response, msg string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
	return pkgerrors.Wrap(
		pkgerrors.CodeDependency,
		fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		msg,
	)
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
