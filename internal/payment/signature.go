package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the gateway checkout signature: hex HMAC-SHA256 of
// "orderId|paymentId" keyed with the shared secret.
func Sign(secret, orderId, paymentId string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderId + "|" + paymentId))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time
func VerifySignature(secret, orderId, paymentId, signature string) bool {
	expected := Sign(secret, orderId, paymentId)
	return hmac.Equal([]byte(expected), []byte(signature))
}
