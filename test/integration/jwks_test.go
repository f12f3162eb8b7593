package integration

import (
	"encoding/json"
	"net/http"
	"testing"
)

// TestJWKSEndpoint verifies the published key set over real HTTP.
func TestJWKSEndpoint(t *testing.T) {
	env := startTestEnv(t, 18251, 18252)

	status, body := env.httpDo(t, http.MethodGet, "/.well-known/jwks.json", "", "")
	if status != http.StatusOK {
		t.Fatalf("jwks: expected 200, got %d: %s", status, body)
	}

	var doc struct {
		Keys []struct {
			KeyType   string `json:"kty"`
			Curve     string `json:"crv"`
			KeyID     string `json:"kid"`
			X         string `json:"x"`
			Algorithm string `json:"alg"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("failed to decode jwks document: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected exactly the local signing key, got %d keys", len(doc.Keys))
	}

	key := doc.Keys[0]
	if key.KeyType != "OKP" || key.Curve != "Ed25519" || key.Algorithm != "EdDSA" {
		t.Errorf("unexpected key shape: kty=%q crv=%q alg=%q", key.KeyType, key.Curve, key.Algorithm)
	}
	if key.KeyID == "" || key.X == "" {
		t.Errorf("key is missing kid or public point: %+v", key)
	}
}

// TestHealthAndNotFound covers the liveness endpoint and the catch-all.
func TestHealthAndNotFound(t *testing.T) {
	env := startTestEnv(t, 18261, 18262)

	status, body := env.httpDo(t, http.MethodGet, "/healthz", "", "")
	if status != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d: %s", status, body)
	}

	status, body = env.httpDo(t, http.MethodGet, "/no-such-route", "", "")
	if status != http.StatusNotFound {
		t.Fatalf("catch-all: expected 404, got %d: %s", status, body)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if envelope.Error != "not found" {
		t.Errorf("expected not found envelope, got %q", envelope.Error)
	}
}
