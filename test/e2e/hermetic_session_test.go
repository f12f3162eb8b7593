package e2e_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc/codes"

	"github.com/sanasol-ws/dualauth/internal/config"
	"github.com/sanasol-ws/dualauth/internal/httpfixture"
	"github.com/sanasol-ws/dualauth/internal/server"
	"github.com/sanasol-ws/dualauth/internal/token"
)

// TestHermeticSessionFlow drives the external HTTP API of a config-built
// deployment with all I/O under fixture control: the signing key lives in a
// temp dir, profile attributes come from a static source, entitlements from
// a CEL script, and outbound JWKS fetches go through a fixture transport.
//
// It covers:
//   - the full join flow (new session, authorize, exchange, profile)
//   - entitlement mapping from profile attributes
//   - federated verification of a partner-issued token via ext_authz
//   - the issuer redirect for tokens minted by another issuer
func TestHermeticSessionFlow(t *testing.T) {
	ctx := context.Background()

	// Partner issuer whose keys are discovered over (fixture) HTTP
	partner, err := httpfixture.NewJWKSFixture(httpfixture.JWKSFixtureConfig{
		Issuer: "https://play.partner.example",
		KeyID:  "partner-key-1",
	})
	if err != nil {
		t.Fatalf("failed to create partner fixture: %v", err)
	}
	transport := httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: partner,
		Strict:   true,
	})

	// Config-driven wiring, exactly as a deployment would load it
	loader, err := config.NewLoader("")
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.SigningKeyPath = filepath.Join(t.TempDir(), "signing-key.json")
	cfg.Profile.Source = config.SourceConfig{
		Type: "static",
		Static: map[string]map[string]any{
			"player-1": {"tier": "founder"},
		},
	}
	cfg.Profile.MapperScript = `"tier" in attributes && attributes.tier == "founder"
		? ["game:base", "game:founder"]
		: ["game:base"]`

	provider := config.NewProvider(cfg)
	provider.HTTPTransport = transport

	sessions, err := provider.SessionService(ctx)
	if err != nil {
		t.Fatalf("failed to build session service: %v", err)
	}
	verifier, err := provider.Verifier()
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}
	keyring, err := provider.Keyring()
	if err != nil {
		t.Fatalf("failed to build keyring: %v", err)
	}

	handler := server.New(server.Config{
		Sessions: sessions,
		Resolver: provider.Resolver(),
		Verifier: verifier,
		JWKS:     server.NewJWKSHandler(server.JWKSHandlerConfig{Keyring: keyring}),
	}).Handler()

	do := func(method, path, body, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "https://sessions.sanasol.ws"+path, strings.NewReader(body))
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// Full join flow against the external API
	rec := do(http.MethodPost, "/game-session/new", `{"uuid": "player-1", "username": "Zyla"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("new session: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var pair struct {
		IdentityToken string `json:"identityToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("failed to decode token pair: %v", err)
	}

	// The identity token carries the mapped entitlements
	decoded, err := token.DecodeUnverified(pair.IdentityToken)
	if err != nil {
		t.Fatalf("failed to decode identity token: %v", err)
	}
	if len(decoded.Claims.Entitlements) != 2 || decoded.Claims.Entitlements[1] != "game:founder" {
		t.Errorf("expected founder entitlements, got %v", decoded.Claims.Entitlements)
	}

	rec = do(http.MethodPost, "/game-session/authorize",
		`{"identityToken": "`+pair.IdentityToken+`", "audience": "server-9"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("authorize: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var grant struct {
		AuthorizationGrant string `json:"authorizationGrant"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("failed to decode grant: %v", err)
	}

	rec = do(http.MethodPost, "/server-join/auth-token",
		`{"authorizationGrant": "`+grant.AuthorizationGrant+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("exchange: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var access struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &access); err != nil {
		t.Fatalf("failed to decode access token: %v", err)
	}

	rec = do(http.MethodGet, "/my-account/game-profile", "", access.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile struct {
		UUID         string   `json:"uuid"`
		Entitlements []string `json:"entitlements"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.UUID != "player-1" {
		t.Errorf("expected profile uuid player-1, got %q", profile.UUID)
	}
	if len(profile.Entitlements) != 2 {
		t.Errorf("expected mapped entitlements on profile, got %v", profile.Entitlements)
	}

	// A partner-issued token verifies through JWKS discovery, with the
	// fetch answered entirely by the fixture transport
	partnerToken, err := partner.SignClaims(&token.Claims{
		Subject:   "partner-player",
		Username:  "Vex",
		Scope:     token.DefaultScope,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("failed to sign partner token: %v", err)
	}

	authz := server.NewAuthzServer(server.AuthzServerConfig{Verifier: verifier})
	resp, err := authz.Check(ctx, &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Headers: map[string]string{"authorization": "Bearer " + partnerToken},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("ext_authz check failed: %v", err)
	}
	if resp.GetStatus().GetCode() != int32(codes.OK) {
		t.Fatalf("expected partner token to verify, got status %d: %s",
			resp.GetStatus().GetCode(), resp.GetStatus().GetMessage())
	}
	var subjectHeader string
	for _, h := range resp.GetOkResponse().GetHeaders() {
		if h.GetHeader().GetKey() == "x-player-uuid" {
			subjectHeader = h.GetHeader().GetValue()
		}
	}
	if subjectHeader != "partner-player" {
		t.Errorf("expected partner subject in identity headers, got %q", subjectHeader)
	}

	// A request carrying a token from another issuer is bounced to that
	// issuer rather than answered here
	rec = do(http.MethodGet, "/my-account/game-profile", "", partnerToken)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307 redirect for foreign issuer, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://play.partner.example/my-account/game-profile" {
		t.Errorf("unexpected redirect target %q", loc)
	}
}
