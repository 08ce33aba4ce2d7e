package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(24900), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "sub_1", req.Receipt)
		assert.Equal(t, "plan-1", req.Notes["planId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","entity":"order","amount":24900,"currency":"INR","receipt":"sub_1","status":"created"}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientOptions{KeyID: "key_id", KeySecret: "key_secret", APIBase: srv.URL + "/v1/"})
	require.NoError(t, err)

	order, err := c.CreateOrder(context.Background(), OrderRequest{
		Amount:   24900,
		Currency: "INR",
		Receipt:  "sub_1",
		Notes:    map[string]string{"planId": "plan-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "order_abc", order.ID)
	require.Equal(t, int64(24900), order.Amount)
	require.Equal(t, "created", order.Status)
}

func TestCreateOrder_APIErrors(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		retryable bool
		code      string
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too low"}}`, false, "BAD_REQUEST_ERROR"},
		{"unauthorized", http.StatusUnauthorized, `not json`, false, ""},
		{"server error", http.StatusBadGateway, `{}`, true, ""},
		{"rate limited", http.StatusTooManyRequests, `{}`, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewClient(ClientOptions{KeyID: "k", KeySecret: "s", APIBase: srv.URL})
			require.NoError(t, err)

			_, err = c.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tc.status, apiErr.StatusCode)
			require.Equal(t, tc.retryable, apiErr.Retryable())
			require.Equal(t, tc.code, apiErr.Code)
		})
	}
}

func TestCreateOrder_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(ClientOptions{KeyID: "k", KeySecret: "s", APIBase: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	var apiErr *APIError
	require.False(t, errors.As(err, &apiErr))
}

func TestFetchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/orders/order_abc":
			_, _ = w.Write([]byte(`{"id":"order_abc","amount":24900,"currency":"INR","status":"paid","notes":{"planId":"plan-1","userId":"u1","billingCycle":"monthly"}}`))
		case "/v1/orders/order_bare":
			_, _ = w.Write([]byte(`{"id":"order_bare","amount":100,"currency":"INR","notes":[]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
		}
	}))
	defer srv.Close()

	c, err := NewClient(ClientOptions{KeyID: "k", KeySecret: "s", APIBase: srv.URL + "/v1"})
	require.NoError(t, err)
	ctx := context.Background()

	order, err := c.FetchOrder(ctx, "order_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(24900), order.Amount)
	assert.Equal(t, Notes{"planId": "plan-1", "userId": "u1", "billingCycle": "monthly"}, order.Notes)

	order, err = c.FetchOrder(ctx, "order_bare")
	require.NoError(t, err)
	assert.Empty(t, order.Notes)

	_, err = c.FetchOrder(ctx, "order_missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.False(t, apiErr.Retryable())

	_, err = c.FetchOrder(ctx, "")
	require.Error(t, err)
}

func TestNewClient_RequiresKeys(t *testing.T) {
	_, err := NewClient(ClientOptions{KeyID: "k"})
	require.Error(t, err)
}

func TestSignatures(t *testing.T) {
	require.Equal(t,
		"6c343620f1910da483982cf25b9dc33d709afdd25930f08964ef60b65aefa831",
		PaymentSignature("test_secret", "order_123", "pay_456"))
	require.Equal(t,
		"4673dd707ef4c41b987cb7fefe1583142dc702388c93145b7814b9ad3d3c183e",
		WebhookSignature("whsec", []byte(`{"event":"payment.captured"}`)))

	notes := map[string]string{"planId": "p1", "userId": "u1"}
	fp := OrderFingerprint("test_secret", 24900, "INR", notes)
	require.Len(t, fp, 64)
	require.Equal(t, fp, OrderFingerprint("test_secret", 24900, "inr", map[string]string{"userId": "u1", "planId": "p1"}))
	require.NotEqual(t, fp, OrderFingerprint("test_secret", 24901, "INR", notes))
	require.NotEqual(t, fp, OrderFingerprint("test_secret", 24900, "INR", map[string]string{"planId": "p2", "userId": "u1"}))
	require.NotEqual(t, fp, OrderFingerprint("other_secret", 24900, "INR", notes))

	require.True(t, SignatureEqual("abc", "abc"))
	require.False(t, SignatureEqual("abc", "abd"))
	require.False(t, SignatureEqual("abc", "ab"))
}
