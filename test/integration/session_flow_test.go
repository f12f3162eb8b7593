package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sanasol-ws/dualauth/internal/fs"
	"github.com/sanasol-ws/dualauth/internal/issuer"
	"github.com/sanasol-ws/dualauth/internal/keys"
	"github.com/sanasol-ws/dualauth/internal/server"
	"github.com/sanasol-ws/dualauth/internal/service"
	"github.com/sanasol-ws/dualauth/internal/session"
	"github.com/sanasol-ws/dualauth/internal/trust"
)

// testEnv bundles a running server and the pieces tests poke at directly.
type testEnv struct {
	httpAddr  string
	authzAddr string
	minter    *issuer.Minter
}

// startTestEnv wires a full server on the given ports and blocks until it
// accepts connections. Shutdown is registered as test cleanup.
func startTestEnv(t *testing.T, httpPort, authzPort int) *testEnv {
	t.Helper()

	keyStore, err := keys.NewDiskKeyStore(keys.DiskKeyStoreConfig{
		Path:       "/keys/signing.json",
		FileSystem: fs.NewMemFileSystem(),
	})
	if err != nil {
		t.Fatalf("failed to create key store: %v", err)
	}

	resolver := issuer.NewResolver(issuer.ResolverConfig{
		BaseDomain: "sessions.sanasol.ws",
	})
	federation, err := trust.NewFederation(trust.FederationConfig{})
	if err != nil {
		t.Fatalf("failed to create federation: %v", err)
	}
	keyring := trust.NewKeyring(trust.KeyringConfig{
		Local:      keyStore,
		Resolver:   resolver,
		Federation: federation,
	})
	verifier := trust.NewVerifier(trust.VerifierConfig{Keyring: keyring})
	minter := issuer.NewMinter(issuer.MinterConfig{Keys: keyStore})

	sessions := service.NewSessionService(service.SessionServiceConfig{
		Resolver: resolver,
		Minter:   minter,
		Verifier: verifier,
		Store:    session.NewMemoryStore(session.MemoryStoreConfig{}),
	})

	env := &testEnv{
		httpAddr:  fmt.Sprintf("localhost:%d", httpPort),
		authzAddr: fmt.Sprintf("localhost:%d", authzPort),
		minter:    minter,
	}

	srv := server.New(server.Config{
		ListenAddr:      fmt.Sprintf(":%d", httpPort),
		AuthzListenAddr: fmt.Sprintf(":%d", authzPort),
		Sessions:        sessions,
		Resolver:        resolver,
		Verifier:        verifier,
		JWKS:            server.NewJWKSHandler(server.JWKSHandlerConfig{Keyring: keyring}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("failed to start server on :%d/:%d: %v", httpPort, authzPort, err)
	}
	t.Cleanup(func() {
		_ = srv.Stop(ctx)
		cancel()
	})

	waitForServer(t, env.httpAddr, 5*time.Second)
	return env
}

// httpDo sends a request with the issuer family host header, the way a
// fronting proxy would deliver it.
func (env *testEnv) httpDo(t *testing.T, method, path, body, bearer string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, "http://"+env.httpAddr+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Host = "sessions.sanasol.ws"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, payload
}

// TestSessionLifecycle drives the full join flow over real HTTP: create a
// session, authorize against a server, exchange the grant for an access
// token, read the profile with it, then delete the session.
func TestSessionLifecycle(t *testing.T) {
	env := startTestEnv(t, 18231, 18232)

	status, body := env.httpDo(t, http.MethodPost, "/game-session/new",
		`{"uuid": "player-1", "username": "Zyla"}`, "")
	if status != http.StatusOK {
		t.Fatalf("new session: expected 200, got %d: %s", status, body)
	}
	var pair struct {
		IdentityToken string `json:"identityToken"`
		SessionToken  string `json:"sessionToken"`
	}
	if err := json.Unmarshal(body, &pair); err != nil {
		t.Fatalf("failed to decode token pair: %v", err)
	}
	if pair.IdentityToken == "" || pair.SessionToken == "" {
		t.Fatalf("token pair incomplete: %s", body)
	}

	status, body = env.httpDo(t, http.MethodPost, "/game-session/authorize",
		`{"identityToken": "`+pair.IdentityToken+`", "audience": "server-9"}`, "")
	if status != http.StatusOK {
		t.Fatalf("authorize: expected 200, got %d: %s", status, body)
	}
	var grant struct {
		AuthorizationGrant string `json:"authorizationGrant"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		t.Fatalf("failed to decode grant: %v", err)
	}

	status, body = env.httpDo(t, http.MethodPost, "/server-join/auth-token",
		`{"authorizationGrant": "`+grant.AuthorizationGrant+`"}`, "")
	if status != http.StatusOK {
		t.Fatalf("exchange: expected 200, got %d: %s", status, body)
	}
	var access struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
	}
	if err := json.Unmarshal(body, &access); err != nil {
		t.Fatalf("failed to decode access token: %v", err)
	}
	if access.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %q", access.TokenType)
	}

	status, body = env.httpDo(t, http.MethodGet, "/my-account/game-profile", "", access.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d: %s", status, body)
	}
	var profile struct {
		UUID     string `json:"uuid"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.UUID != "player-1" {
		t.Errorf("expected profile uuid player-1, got %q", profile.UUID)
	}

	status, _ = env.httpDo(t, http.MethodDelete, "/game-session", "", pair.IdentityToken)
	if status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", status)
	}
}

// TestExchangeRejectsBadGrants covers the client-error paths of the join
// endpoint over real HTTP.
func TestExchangeRejectsBadGrants(t *testing.T) {
	env := startTestEnv(t, 18241, 18242)

	status, body := env.httpDo(t, http.MethodPost, "/server-join/auth-token",
		`{"authorizationGrant": "not-a-token"}`, "")
	if status != http.StatusBadRequest {
		t.Fatalf("malformed grant: expected 400, got %d: %s", status, body)
	}

	status, body = env.httpDo(t, http.MethodPost, "/server-join/auth-token", `{}`, "")
	if status != http.StatusBadRequest {
		t.Fatalf("missing grant: expected 400, got %d: %s", status, body)
	}
}
