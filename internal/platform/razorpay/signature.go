package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// PaymentSignature is the checkout signature: hex HMAC-SHA256 of
// "<orderID>|<paymentID>" keyed by the API key secret.
func PaymentSignature(keySecret, orderID, paymentID string) string {
	return sign(keySecret, []byte(orderID+"|"+paymentID))
}

// WebhookSignature is the X-Razorpay-Signature value for a webhook body.
func WebhookSignature(webhookSecret string, body []byte) string {
	return sign(webhookSecret, body)
}

// SignatureEqual compares two hex signatures in constant time.
func SignatureEqual(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// OrderFingerprint is hex HMAC-SHA256 of the order terms keyed by the API key
// secret. Notes are folded in key order.
func OrderFingerprint(keySecret string, amount int64, currency string, notes map[string]string) string {
	keys := make([]string, 0, len(notes))
	for k := range notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s", amount, strings.ToUpper(currency))
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, notes[k])
	}
	return sign(keySecret, []byte(b.String()))
}
