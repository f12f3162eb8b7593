package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sanasol-ws/dualauth/internal/request"
	"github.com/sanasol-ws/dualauth/internal/service"
	"github.com/sanasol-ws/dualauth/internal/session"
	"github.com/sanasol-ws/dualauth/internal/token"
	"github.com/sanasol-ws/dualauth/internal/trust"
)

// Handler builds the HTTP routing table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /.well-known/jwks.json", s.handleJWKS)
	mux.HandleFunc("POST /game-session/new", s.redirecting(s.handleNewSession))
	mux.HandleFunc("POST /game-session/refresh", s.redirecting(s.handleRefreshSession))
	mux.HandleFunc("POST /game-session/child", s.redirecting(s.handleChildSession))
	mux.HandleFunc("POST /game-session/authorize", s.redirecting(s.handleAuthorize))
	mux.HandleFunc("POST /server-join/auth-token", s.handleExchange)
	mux.HandleFunc("DELETE /game-session", s.handleDeleteSession)
	mux.HandleFunc("GET /my-account/game-profile", s.redirecting(s.handleProfile))
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// redirecting bounces a request whose bearer token was issued for another
// host of this deployment family to that host, so clients patched for a
// specific subdomain keep seeing their expected issuer.
func (s *Server) redirecting(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if iss := bearerIssuer(r); iss != "" && !s.resolver.MatchesRequestHost(iss, r.Host) {
			http.Redirect(w, r, strings.TrimSuffix(iss, "/")+r.URL.Path, http.StatusTemporaryRedirect)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID     string `json:"uuid"`
		Username string `json:"username"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	pair, err := s.sessions.NewSession(r.Context(), requestContext(r), body.UUID, body.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionToken string `json:"sessionToken"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	pair, err := s.sessions.RefreshSession(r.Context(), requestContext(r), body.SessionToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleChildSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scopes token.Scopes `json:"scopes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	pair, err := s.sessions.ChildSession(r.Context(), requestContext(r), body.Scopes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IdentityToken string       `json:"identityToken"`
		Audience      string       `json:"audience"`
		Scopes        token.Scopes `json:"scopes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	grant, err := s.sessions.Authorize(r.Context(), requestContext(r), body.IdentityToken, body.Audience, body.Scopes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AuthorizationGrant string `json:"authorizationGrant"`
		X509Fingerprint    string `json:"x509Fingerprint"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	access, err := s.sessions.Exchange(r.Context(), requestContext(r), body.AuthorizationGrant, body.X509Fingerprint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DeleteSession(r.Context(), requestContext(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.sessions.Profile(r.Context(), requestContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	s.jwks.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "not found"})
}

// requestContext extracts the request attributes the core consumes. The
// bearer token, when it parses, supplies the contextual subject and
// username; it is not verified here.
func requestContext(r *http.Request) *request.Context {
	reqCtx := &request.Context{
		Host:        r.Host,
		BearerToken: bearerToken(r),
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.UserAgent(),
	}
	if reqCtx.BearerToken != "" {
		if decoded, err := token.DecodeUnverified(reqCtx.BearerToken); err == nil {
			reqCtx.Subject = decoded.Claims.Subject
			reqCtx.Username = decoded.Claims.Username
		}
	}
	return reqCtx
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if value, ok := strings.CutPrefix(header, "Bearer "); ok {
		return value
	}
	return ""
}

func bearerIssuer(r *http.Request) string {
	bearer := bearerToken(r)
	if bearer == "" {
		return ""
	}
	decoded, err := token.DecodeUnverified(bearer)
	if err != nil {
		return ""
	}
	return decoded.Claims.Issuer
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// decodeBody parses an optional JSON body. An empty body is fine; invalid
// JSON is a 400. Returns false when the response has been written.
func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(into)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "invalid request body"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps error kinds to their statuses. Internal details never
// reach the client; the envelope carries only the kind.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrMalformedToken):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed token"})
	case errors.Is(err, service.ErrMissingClaim):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "missing claim"})
	case errors.Is(err, trust.ErrUnknownKey):
		writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: "unknown key"})
	case errors.Is(err, trust.ErrSignatureInvalid):
		writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: "invalid signature"})
	case errors.Is(err, trust.ErrExpiredToken):
		writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: "expired token"})
	case errors.Is(err, service.ErrPersistenceFatal), errors.Is(err, session.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: "storage unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "internal error"})
	}
}
