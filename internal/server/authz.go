package server

import (
	"context"
	"log/slog"
	"strings"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"

	"github.com/sanasol-ws/dualauth/internal/trust"
)

// AuthzServer implements Envoy's ext_authz Authorization service. A game
// server fronted by Envoy can trust this issuer's tokens without code
// changes: Envoy sends each request here, the access token is verified
// against the same keyring the HTTP surface uses, and the player identity
// travels to the backend in headers.
type AuthzServer struct {
	authv3.UnimplementedAuthorizationServer

	verifier *trust.Verifier
	logger   *slog.Logger
}

// AuthzServerConfig configures the ext_authz adapter
type AuthzServerConfig struct {
	// Verifier performs full token verification
	Verifier *trust.Verifier

	// Logger is an optional structured logger (defaults to slog.Default)
	Logger *slog.Logger
}

// NewAuthzServer creates the ext_authz adapter
func NewAuthzServer(cfg AuthzServerConfig) *AuthzServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthzServer{
		verifier: cfg.Verifier,
		logger:   logger,
	}
}

// Check implements the ext_authz check endpoint
func (s *AuthzServer) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	httpReq := req.GetAttributes().GetRequest().GetHttp()
	if httpReq == nil {
		return denyResponse("no HTTP request attributes"), nil
	}

	authHeader := httpReq.GetHeaders()["authorization"]
	bearer, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || bearer == "" {
		return denyResponse("missing bearer token"), nil
	}

	decoded, err := s.verifier.Verify(ctx, bearer)
	if err != nil {
		s.logger.Debug("authz check rejected token", "error", err)
		return denyResponse("invalid token"), nil
	}

	claims := decoded.Claims
	headers := []*corev3.HeaderValueOption{
		identityHeader("x-player-uuid", claims.Subject),
		identityHeader("x-player-username", claims.Username),
		identityHeader("x-token-scope", claims.Scope),
	}

	return &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: int32(codes.OK)},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				Headers: headers,
				// The external credential stays outside the backend
				HeadersToRemove: []string{"authorization"},
			},
		},
	}, nil
}

func identityHeader(key, value string) *corev3.HeaderValueOption {
	return &corev3.HeaderValueOption{
		Header: &corev3.HeaderValue{
			Key:   key,
			Value: value,
		},
	}
}

func denyResponse(message string) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &rpcstatus.Status{
			Code:    int32(codes.Unauthenticated),
			Message: message,
		},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{Code: typev3.StatusCode_Unauthorized},
				Body:   `{"error": "` + message + `"}`,
			},
		},
	}
}
