package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"eventId":"evt_1"}`)
	secret := "whsec_test"
	now := time.Now()
	ts := now.Unix()
	signed := fmt.Sprintf("%d.%s", ts, string(payload))

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	sig := hex.EncodeToString(mac.Sum(nil))
	header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

	if !VerifyWebhookSignature(payload, header, secret, 5*time.Minute, now) {
		t.Fatal("expected signature to validate")
	}
	if VerifyWebhookSignature(payload, header, "wrong-secret", 5*time.Minute, now) {
		t.Fatal("expected signature with wrong secret to fail")
	}
	if VerifyWebhookSignature(payload, header, secret, 5*time.Minute, now.Add(10*time.Minute)) {
		t.Fatal("expected stale signature to fail")
	}
}

func TestSignWebhookRoundTrip(t *testing.T) {
	payload := []byte(`{"flowId":"flow_1"}`)
	now := time.Unix(1760000000, 0)

	header := SignWebhook(payload, "secret", now)
	if header[:13] != "t=1760000000," {
		t.Fatalf("unexpected header prefix: %s", header)
	}
	if !VerifyWebhookSignature(payload, header, "secret", time.Minute, now) {
		t.Fatal("expected signed payload to verify")
	}
	if VerifyWebhookSignature([]byte(`{"flowId":"flow_2"}`), header, "secret", time.Minute, now) {
		t.Fatal("expected tampered payload to fail")
	}
}
