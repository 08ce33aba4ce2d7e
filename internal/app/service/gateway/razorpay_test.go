package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/streambox/pkg/apperr"
	"github.com/fatflowers/streambox/pkg/metrics"
	"github.com/fatflowers/streambox/pkg/types"
)

const (
	testSecret = "test_secret"
	// hex(HMAC_SHA256("test_secret", "order_123|pay_456"))
	testSignature = "6c343620f1910da483982cf25b9dc33d709afdd25930f08964ef60b65aefa831"
)

func newSandbox(t *testing.T) *Razorpay {
	t.Helper()
	g, err := NewRazorpay(RazorpayOptions{KeySecret: testSecret, WebhookSecret: "whsec", Sandbox: true}, nil, nil)
	require.NoError(t, err)
	return g
}

func TestVerifyPaymentSignature(t *testing.T) {
	g := newSandbox(t)
	require.NoError(t, g.VerifyPaymentSignature("order_123", "pay_456", testSignature))

	// swapped ids produce a different message
	err := g.VerifyPaymentSignature("pay_456", "order_123", testSignature)
	require.True(t, errors.Is(err, apperr.ErrInvalidSignature))

	err = g.VerifyPaymentSignature("order_123", "pay_456", strings.ToUpper(testSignature))
	require.True(t, errors.Is(err, apperr.ErrInvalidSignature))

	err = g.VerifyPaymentSignature("order_123", "", testSignature)
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestVerifyPaymentSignature_EverySingleCharMutationRejected(t *testing.T) {
	g := newSandbox(t)
	for i := range testSignature {
		b := []byte(testSignature)
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
		err := g.VerifyPaymentSignature("order_123", "pay_456", string(b))
		require.True(t, errors.Is(err, apperr.ErrInvalidSignature), "position %d accepted", i)
	}
	require.Error(t, g.VerifyPaymentSignature("order_123", "pay_456", testSignature[:63]))
	require.Error(t, g.VerifyPaymentSignature("order_123", "pay_456", testSignature+"0"))
}

func TestVerifyWebhookSignature(t *testing.T) {
	g := newSandbox(t)
	body := []byte(`{"event":"payment.captured"}`)
	good := "4673dd707ef4c41b987cb7fefe1583142dc702388c93145b7814b9ad3d3c183e"

	require.NoError(t, g.VerifyWebhookSignature(body, good))
	require.True(t, errors.Is(g.VerifyWebhookSignature(body, ""), apperr.ErrInvalidSignature))
	require.True(t, errors.Is(g.VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), good), apperr.ErrInvalidSignature))

	noSecret, err := NewRazorpay(RazorpayOptions{KeySecret: testSecret, Sandbox: true}, nil, nil)
	require.NoError(t, err)
	require.True(t, errors.Is(noSecret.VerifyWebhookSignature(body, good), apperr.ErrUnavailable))
}

func TestCreateOrder_Sandbox(t *testing.T) {
	g := newSandbox(t)
	order, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 24900, Currency: "INR", Receipt: "sub_1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(order.ID, "order_"))
	require.Equal(t, int64(24900), order.Amount)
	require.Equal(t, sandboxKeyID, order.KeyID)

	_, err = g.CreateOrder(context.Background(), OrderRequest{Amount: 0, Currency: "INR"})
	require.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreateOrder_API(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		kind    apperr.Kind
	}{
		{
			name: "created",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"order_live","amount":239040,"currency":"INR","receipt":"sub_1"}`))
			},
		},
		{
			name:    "server error is unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			kind:    apperr.KindUnavailable,
		},
		{
			name: "rejection is internal",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"bad"}}`))
			},
			kind: apperr.KindInternal,
		},
		{
			name: "timeout is unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
			timeout: 30 * time.Millisecond,
			kind:    apperr.KindUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			m := metrics.NewBusiness(prometheus.NewRegistry(), nil)
			g, err := NewRazorpay(RazorpayOptions{
				KeyID: "rzp_key", KeySecret: testSecret, APIBase: srv.URL, Timeout: tc.timeout,
			}, m, nil)
			require.NoError(t, err)

			order, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 239040, Currency: "INR", Receipt: "sub_1"})
			if tc.kind == "" {
				require.NoError(t, err)
				require.Equal(t, "order_live", order.ID)
				require.Equal(t, "rzp_key", order.KeyID)
				return
			}
			require.Error(t, err)
			require.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestVerifyOrder_Sandbox(t *testing.T) {
	g := newSandbox(t)
	ctx := context.Background()
	req := OrderRequest{
		Amount: 24900, Currency: "INR", Receipt: "sub_1",
		Metadata: map[string]string{"planId": "standard", "userId": "u1", "billingCycle": "monthly"},
	}
	order, err := g.CreateOrder(ctx, req)
	require.NoError(t, err)

	again, err := g.CreateOrder(ctx, OrderRequest{Amount: req.Amount, Currency: req.Currency, Receipt: "sub_2", Metadata: req.Metadata})
	require.NoError(t, err)
	require.Equal(t, order.ID, again.ID, "receipt does not change the order id")

	require.NoError(t, g.VerifyOrder(ctx, order.ID, req))

	cases := []struct {
		name string
		want OrderRequest
	}{
		{"amount", OrderRequest{Amount: 9900, Currency: "INR", Metadata: req.Metadata}},
		{"currency", OrderRequest{Amount: 24900, Currency: "USD", Metadata: req.Metadata}},
		{"plan", OrderRequest{Amount: 24900, Currency: "INR", Metadata: map[string]string{"planId": "premium", "userId": "u1", "billingCycle": "monthly"}}},
		{"user", OrderRequest{Amount: 24900, Currency: "INR", Metadata: map[string]string{"planId": "standard", "userId": "u2", "billingCycle": "monthly"}}},
		{"cycle", OrderRequest{Amount: 24900, Currency: "INR", Metadata: map[string]string{"planId": "standard", "userId": "u1", "billingCycle": "yearly"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.VerifyOrder(ctx, order.ID, tc.want)
			require.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}

	require.True(t, errors.Is(g.VerifyOrder(ctx, "order_forged", req), apperr.ErrValidation))
	require.True(t, errors.Is(g.VerifyOrder(ctx, "", req), apperr.ErrValidation))

	_, err = g.FetchOrder(ctx, order.ID)
	require.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestVerifyOrder_API(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/order_live":
			_, _ = w.Write([]byte(`{"id":"order_live","amount":9900,"currency":"INR","notes":{"planId":"basic","userId":"u1","billingCycle":"monthly"}}`))
		case "/orders/order_down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
		}
	}))
	defer srv.Close()

	m := metrics.NewBusiness(prometheus.NewRegistry(), nil)
	g, err := NewRazorpay(RazorpayOptions{KeyID: "rzp_key", KeySecret: testSecret, APIBase: srv.URL}, m, nil)
	require.NoError(t, err)
	ctx := context.Background()

	basic := OrderRequest{Amount: 9900, Currency: "INR", Metadata: map[string]string{"planId": "basic", "userId": "u1", "billingCycle": "monthly"}}
	require.NoError(t, g.VerifyOrder(ctx, "order_live", basic))

	order, err := g.FetchOrder(ctx, "order_live")
	require.NoError(t, err)
	require.Equal(t, "basic", order.Metadata["planId"])

	upgraded := OrderRequest{Amount: 239040, Currency: "INR", Metadata: map[string]string{"planId": "annual-standard", "userId": "u1", "billingCycle": "yearly"}}
	require.Equal(t, apperr.KindValidation, apperr.KindOf(g.VerifyOrder(ctx, "order_live", upgraded)))

	otherUser := OrderRequest{Amount: 9900, Currency: "INR", Metadata: map[string]string{"planId": "basic", "userId": "u2", "billingCycle": "monthly"}}
	require.Equal(t, apperr.KindValidation, apperr.KindOf(g.VerifyOrder(ctx, "order_live", otherUser)))

	require.Equal(t, apperr.KindValidation, apperr.KindOf(g.VerifyOrder(ctx, "order_missing", basic)))
	require.Equal(t, apperr.KindUnavailable, apperr.KindOf(g.VerifyOrder(ctx, "order_down", basic)))
}

func TestRegistry(t *testing.T) {
	g := newSandbox(t)
	r := NewRegistry(g)

	got, err := r.Get("")
	require.NoError(t, err)
	require.Same(t, g, got)

	got, err = r.Get(types.PaymentMethodRazorpay)
	require.NoError(t, err)
	require.Same(t, g, got)

	_, err = r.Get(types.PaymentMethodStripe)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = r.Get("bitcoin")
	require.True(t, errors.Is(err, apperr.ErrValidation))
}
