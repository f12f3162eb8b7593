package integration

import (
	"context"
	"testing"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sanasol-ws/dualauth/internal/issuer"
)

func checkRequest(headers map[string]string) *authv3.CheckRequest {
	return &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Headers: headers,
				},
			},
		},
	}
}

// TestExtAuthzOverGRPC verifies the Envoy adapter through a real gRPC
// connection: a token minted by this deployment passes the check and the
// identity rides downstream in headers.
func TestExtAuthzOverGRPC(t *testing.T) {
	env := startTestEnv(t, 18271, 18272)
	waitForServer(t, env.authzAddr, 5*time.Second)

	conn, err := grpc.NewClient(env.authzAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial ext_authz on %s: %v", env.authzAddr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	client := authv3.NewAuthorizationClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	minted, err := env.minter.Mint(ctx, &issuer.MintRequest{
		Issuer:   "https://sessions.sanasol.ws",
		Subject:  "player-7",
		Username: "Kael",
	})
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	resp, err := client.Check(ctx, checkRequest(map[string]string{
		"authorization": "Bearer " + minted.Token,
	}))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if resp.GetStatus().GetCode() != int32(codes.OK) {
		t.Fatalf("expected allow, got status %d: %s",
			resp.GetStatus().GetCode(), resp.GetStatus().GetMessage())
	}

	found := map[string]string{}
	for _, h := range resp.GetOkResponse().GetHeaders() {
		found[h.GetHeader().GetKey()] = h.GetHeader().GetValue()
	}
	if found["x-player-uuid"] != "player-7" {
		t.Errorf("expected x-player-uuid header, got %v", found)
	}
	if found["x-player-username"] != "Kael" {
		t.Errorf("expected x-player-username header, got %v", found)
	}

	// A request without a bearer token is denied, not errored
	resp, err = client.Check(ctx, checkRequest(nil))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if resp.GetStatus().GetCode() != int32(codes.Unauthenticated) {
		t.Errorf("expected deny, got status %d", resp.GetStatus().GetCode())
	}
}
