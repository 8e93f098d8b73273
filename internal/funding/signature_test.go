package funding

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func sign(payload []byte, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	secret := []byte("sk_test_current")

	if !VerifySignature(payload, sign(payload, secret), secret) {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifySignatureAcceptsPreviousSecretDuringRotation(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	current := []byte("sk_test_current")
	previous := []byte("sk_test_previous")

	if !VerifySignature(payload, sign(payload, previous), current, previous) {
		t.Fatal("signature under previous secret rejected during rotation")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)

	if VerifySignature(payload, sign(payload, []byte("other")), []byte("sk_test_current")) {
		t.Fatal("signature under unknown secret accepted")
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	secret := []byte("sk_test_current")
	signature := sign([]byte(`{"amount":5000}`), secret)

	if VerifySignature([]byte(`{"amount":9000}`), signature, secret) {
		t.Fatal("tampered payload accepted")
	}
}

func TestVerifySignatureRejectsMalformedHex(t *testing.T) {
	if VerifySignature([]byte("{}"), "not-hex", []byte("sk_test_current")) {
		t.Fatal("non-hex signature accepted")
	}
}

func TestVerifySignatureSkipsEmptySecrets(t *testing.T) {
	payload := []byte("{}")
	if VerifySignature(payload, sign(payload, nil), nil) {
		t.Fatal("empty secret must never verify")
	}
}
