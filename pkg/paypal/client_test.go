package paypal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestClientCreateOrderRequest(t *testing.T) {
	var capturedURLs []string
	var capturedAuth []string
	var capturedBody map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURLs = append(capturedURLs, req.URL.String())
		capturedAuth = append(capturedAuth, req.Header.Get("Authorization"))

		if strings.Contains(req.URL.Path, "oauth2/token") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok_abc"}`), nil
		}

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &capturedBody); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"id":"PP-ORDER-1"}`), nil
	})

	client, err := NewClient("cid", "secret", WithBaseURL("http://paypal.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	id, err := client.CreateOrder(context.Background(), "102.00")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if id != "PP-ORDER-1" {
		t.Fatalf("unexpected order id %q", id)
	}
	if len(capturedURLs) != 2 {
		t.Fatalf("expected token + order calls, got %v", capturedURLs)
	}
	if capturedURLs[1] != "http://paypal.test/v2/checkout/orders" {
		t.Fatalf("unexpected URL %q", capturedURLs[1])
	}
	if capturedAuth[1] != "Bearer tok_abc" {
		t.Fatalf("unexpected auth header %q", capturedAuth[1])
	}
	if capturedBody["intent"] != "CAPTURE" {
		t.Fatalf("unexpected intent %v", capturedBody["intent"])
	}

	units, ok := capturedBody["purchase_units"].([]any)
	if !ok || len(units) != 1 {
		t.Fatalf("unexpected purchase units %v", capturedBody["purchase_units"])
	}
	amount := units[0].(map[string]any)["amount"].(map[string]any)
	if amount["value"] != "102.00" || amount["currency_code"] != "USD" {
		t.Fatalf("unexpected amount %v", amount)
	}
}

func TestClientCaptureOrderRequest(t *testing.T) {
	respBody := `{
		"id": "PP-ORDER-1",
		"status": "COMPLETED",
		"payer": {"email_address": "buyer@example.com"},
		"purchase_units": [{"payments": {"captures": [{"amount": {"value": "102.00"}}]}}]
	}`

	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "oauth2/token") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok_abc"}`), nil
		}
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusCreated, respBody), nil
	})

	client, err := NewClient("cid", "secret", WithBaseURL("http://paypal.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.CaptureOrder(context.Background(), "PP-ORDER-1")
	if err != nil {
		t.Fatalf("capture order: %v", err)
	}
	if capturedURL != "http://paypal.test/v2/checkout/orders/PP-ORDER-1/capture" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if result.Status != "COMPLETED" || result.PayerEmail != "buyer@example.com" || result.AmountPaid != "102.00" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClientCaptureOrderAPIError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "oauth2/token") {
			return jsonResponse(http.StatusOK, `{"access_token":"tok_abc"}`), nil
		}
		return jsonResponse(http.StatusUnprocessableEntity, `{"name":"ORDER_NOT_APPROVED"}`), nil
	})

	client, err := NewClient("cid", "secret", WithBaseURL("http://paypal.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.CaptureOrder(context.Background(), "PP-ORDER-1"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
