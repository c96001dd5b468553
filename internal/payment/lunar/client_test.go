package lunar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, testMode bool) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientOptions{BaseURL: server.URL + "/v1", AppKey: "app-key", TestMode: testMode})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	return client
}

func TestNewClientRequiresAppKey(t *testing.T) {
	if _, err := NewClient(ClientOptions{}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("want ErrConfigInvalid, got %v", err)
	}
}

func TestCreateIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-key" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		if got := r.Header.Get(testModeHeader); got != "true" {
			t.Errorf("test mode header missing, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if payload["redirectUrl"] != "https://shop.example.com/return" {
			t.Errorf("unexpected redirectUrl: %v", payload["redirectUrl"])
		}
		if _, ok := payload["test"]; ok {
			t.Errorf("test payload should be omitted when nil")
		}
		_, _ = w.Write([]byte(`{"paymentId":"pi_123"}`))
	}, true)

	intentID, err := client.CreateIntent(context.Background(), &IntentRequest{
		Amount:      Amount{Currency: "DKK", Decimal: "100.00"},
		RedirectURL: "https://shop.example.com/return",
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if intentID != "pi_123" {
		t.Fatalf("unexpected intent id: %s", intentID)
	}
}

func TestCreateIntentEmptyID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, false)
	_, err := client.CreateIntent(context.Background(), &IntentRequest{})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("want ErrResponseInvalid, got %v", err)
	}
}

func TestFetchIntentKeepsDecimalText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/payments/pi_1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get(testModeHeader); got != "" {
			t.Errorf("live client should not send test header, got %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"pi_1","authorisationCreated":true,"amount":{"currency":"DKK","decimal":100.10}}`))
	}, false)

	tx, err := client.FetchIntent(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !tx.AuthorisationCreated || tx.Amount.Currency != "DKK" || tx.Amount.Decimal != "100.10" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestFetchIntentAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"text":"Payment not found"}`))
	}, false)

	_, err := client.FetchIntent(context.Background(), "pi_missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Payment not found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("api error should unwrap to ErrResponseInvalid")
	}
}

func TestCaptureDeclined(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pi_1/capture" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"decimal":"50.00"`) {
			t.Errorf("amount not sent as decimal string: %s", body)
		}
		_, _ = w.Write([]byte(`{"captureState":"declined","declinedReason":{"error":"Insufficient funds"}}`))
	}, false)

	result, err := client.Capture(context.Background(), "pi_1", Amount{Currency: "DKK", Decimal: "50.00"})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if result.Completed() {
		t.Fatalf("declined capture reported completed")
	}
	if result.DeclinedReason != "Insufficient funds" {
		t.Fatalf("unexpected decline reason: %s", result.DeclinedReason)
	}
}

func TestRefundAndCancelStateKeys(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payments/pi_1/refund":
			_, _ = w.Write([]byte(`{"refundState":"completed"}`))
		case "/v1/payments/pi_1/cancel":
			_, _ = w.Write([]byte(`{"captureState":"completed"}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}, false)

	amount := Amount{Currency: "DKK", Decimal: "10.00"}
	refund, err := client.Refund(context.Background(), "pi_1", amount)
	if err != nil || !refund.Completed() {
		t.Fatalf("refund want completed, got %+v err=%v", refund, err)
	}
	if _, err := client.Cancel(context.Background(), "pi_1", amount); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("cancel without cancelState want ErrResponseInvalid, got %v", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	client, err := NewClient(ClientOptions{BaseURL: server.URL, AppKey: "k", Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if _, err := client.FetchIntent(context.Background(), "pi_1"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("want ErrRequestFailed on timeout, got %v", err)
	}
}

func TestResponseErrorMessage(t *testing.T) {
	cases := map[string]string{
		`{"text":"Bad key"}`: "Bad key",
		`{"declinedReason":{"error":"Card expired"}}`:                        "Card expired",
		`[{"field":"amount","message":"required"},{"field":"currency"}]`:     "amount:required General error",
		`{"a":{"field":"key","message":"invalid"}}`:                          "key:invalid",
		`not json`:                                                           "not json",
		``:                                                                   "",
	}
	for body, want := range cases {
		if got := ResponseErrorMessage([]byte(body)); got != want {
			t.Errorf("body %q: want %q, got %q", body, want, got)
		}
	}
}

func TestHostedCheckoutURL(t *testing.T) {
	if got := HostedCheckoutURL(DefaultHostedCheckoutURL, "pi 1"); got != "https://pay.lunar.money/?id=pi+1" {
		t.Fatalf("unexpected hosted url: %s", got)
	}
}
