// Package service implements the session exchange state machine: the
// session, grant, and access token lifecycle between game clients, this
// service, and game servers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sanasol-ws/dualauth/internal/claims"
	"github.com/sanasol-ws/dualauth/internal/clock"
	"github.com/sanasol-ws/dualauth/internal/issuer"
	"github.com/sanasol-ws/dualauth/internal/request"
	"github.com/sanasol-ws/dualauth/internal/session"
	"github.com/sanasol-ws/dualauth/internal/token"
	"github.com/sanasol-ws/dualauth/internal/trust"
)

// DefaultUsername is attached to sessions created without a display name.
const DefaultUsername = "Player"

// nameChangeCooldown is how long after profile creation the next name
// change becomes available.
const nameChangeCooldown = 30 * 24 * time.Hour

// SessionService drives the per-player session state machine:
// none → identified → granted(audience) → authorized(audience).
type SessionService struct {
	resolver *issuer.Resolver
	minter   *issuer.Minter
	verifier *trust.Verifier
	bypass   *trust.BypassPolicy
	store    session.Store
	profiles ProfileSource
	mapper   EntitlementMapper
	clock    clock.Clock
	observer Observer
	logger   *slog.Logger
}

// SessionServiceConfig configures the session service
type SessionServiceConfig struct {
	// Resolver derives and classifies issuers
	Resolver *issuer.Resolver

	// Minter emits all tokens
	Minter *issuer.Minter

	// Verifier performs full verification on resource endpoints
	Verifier *trust.Verifier

	// Bypass is the self-signed exchange policy (defaults to disabled)
	Bypass *trust.BypassPolicy

	// Store is the session registry
	Store session.Store

	// Profiles is an optional profile attribute source
	Profiles ProfileSource

	// Mapper is an optional entitlement mapper
	Mapper EntitlementMapper

	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock

	// Observer receives operation events (defaults to no-op)
	Observer Observer

	// Logger is an optional structured logger (defaults to slog.Default)
	Logger *slog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(cfg SessionServiceConfig) *SessionService {
	bypass := cfg.Bypass
	if bypass == nil {
		bypass = trust.NewBypassPolicy(false)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NoOpObserver()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		resolver: cfg.Resolver,
		minter:   cfg.Minter,
		verifier: cfg.Verifier,
		bypass:   bypass,
		store:    cfg.Store,
		profiles: cfg.Profiles,
		mapper:   cfg.Mapper,
		clock:    clk,
		observer: observer,
		logger:   logger,
	}
}

// TokenPair is the response of the session-emitting operations.
type TokenPair struct {
	IdentityToken string `json:"identityToken"`
	SessionToken  string `json:"sessionToken"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// Grant is the response of the authorize operation.
type Grant struct {
	AuthorizationGrant string `json:"authorizationGrant"`
	ExpiresAt          int64  `json:"expiresAt"`
}

// Access is the response of the token exchange operation.
type Access struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	Scope        string `json:"scope"`
}

// NewSession creates a fresh identified session. Both inputs are optional:
// an absent player id falls back to the request's contextual subject or a
// generated one, an absent username to the default display name.
func (s *SessionService) NewSession(ctx context.Context, reqCtx *request.Context, playerID, username string) (*TokenPair, error) {
	ctx, probe := s.observer.OperationStarted(ctx, OpNewSession)
	defer probe.End()

	subject := firstNonEmpty(playerID, reqCtx.Subject, uuid.NewString())
	if username == "" {
		username = DefaultUsername
	}
	probe.SubjectResolved(subject)

	pair, sessionClaims, err := s.mintPair(ctx, probe, reqCtx, subject, username, token.DefaultScope)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}

	if err := s.registerSession(ctx, subject, username, sessionClaims, ""); err != nil {
		probe.Failed(err)
		return nil, err
	}
	return pair, nil
}

// RefreshSession re-emits a token pair from the claims of a presented
// session or identity token. The signature is deliberately NOT re-verified:
// refresh is an availability primitive, and a broken token must not lock a
// client out. Unparseable input falls back to the request's contextual
// subject.
func (s *SessionService) RefreshSession(ctx context.Context, reqCtx *request.Context, presented string) (*TokenPair, error) {
	ctx, probe := s.observer.OperationStarted(ctx, OpRefreshSession)
	defer probe.End()

	subject, username := s.claimsOrFallback(firstNonEmpty(presented, reqCtx.BearerToken), reqCtx)
	probe.SubjectResolved(subject)

	pair, sessionClaims, err := s.mintPair(ctx, probe, reqCtx, subject, username, token.DefaultScope)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}

	if err := s.registerSession(ctx, subject, username, sessionClaims, ""); err != nil {
		probe.Failed(err)
		return nil, err
	}
	return pair, nil
}

// ChildSession emits a scope-narrowed pair for the bearer's subject. The
// child inherits the parent TTL.
func (s *SessionService) ChildSession(ctx context.Context, reqCtx *request.Context, scopes token.Scopes) (*TokenPair, error) {
	ctx, probe := s.observer.OperationStarted(ctx, OpChildSession)
	defer probe.End()

	subject, username := s.claimsOrFallback(reqCtx.BearerToken, reqCtx)
	probe.SubjectResolved(subject)

	pair, sessionClaims, err := s.mintPair(ctx, probe, reqCtx, subject, username, scopes.Normalize())
	if err != nil {
		probe.Failed(err)
		return nil, err
	}

	if err := s.registerSession(ctx, subject, username, sessionClaims, ""); err != nil {
		probe.Failed(err)
		return nil, err
	}
	return pair, nil
}

// Authorize binds the caller's identity to an audience and emits an
// authorization grant. The identity token's claims are read without
// signature verification unless the token is self-signed and the bypass
// policy applies, in which case the embedded signature must hold.
func (s *SessionService) Authorize(ctx context.Context, reqCtx *request.Context, identityToken, audience string, scopes token.Scopes) (*Grant, error) {
	ctx, probe := s.observer.OperationStarted(ctx, OpAuthorize)
	defer probe.End()

	decoded := decodeLenient(firstNonEmpty(identityToken, reqCtx.BearerToken))

	subject := reqCtx.Subject
	if decoded != nil && decoded.Claims.Subject != "" {
		// The token is the authoritative identity carrier
		subject = decoded.Claims.Subject
	}
	if subject == "" {
		subject = uuid.NewString()
	}
	probe.SubjectResolved(subject)

	aud := captureAudience(audience, decoded)
	req := &issuer.MintRequest{
		Issuer:   s.resolver.ResolveForRequest(reqCtx.Host),
		Subject:  subject,
		Scope:    scopes.Normalize(),
		Audience: aud,
	}

	minted, err := s.mintMaybeBypassed(ctx, probe, req, decoded)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}
	probe.TokenEmitted("grant", minted.Claims.TokenID)

	record := &session.GrantRecord{
		PlayerID:  subject,
		TokenID:   minted.Claims.TokenID,
		Audience:  aud,
		IssuedAt:  minted.IssuedAt.Unix(),
		ExpiresAt: minted.ExpiresAt.Unix(),
	}
	if err := s.store.PutGrant(ctx, record); err != nil {
		// The grant token itself carries everything a later exchange
		// needs; losing the record degrades bookkeeping, not the flow.
		probe.PersistenceDegraded(err)
		s.logger.Warn("failed to register grant", "jti", record.TokenID, "error", err)
	}

	return &Grant{
		AuthorizationGrant: minted.Token,
		ExpiresAt:          minted.ExpiresAt.Unix(),
	}, nil
}

// Exchange turns an authorization grant into an audience-bound access
// token, binding the caller's transport certificate fingerprint when one
// is supplied. Grant claims are read without signature re-verification;
// a self-signed grant under the bypass policy must verify against its own
// embedded key and is answered with a token that key can verify.
func (s *SessionService) Exchange(ctx context.Context, reqCtx *request.Context, grantToken, fingerprint string) (*Access, error) {
	ctx, probe := s.observer.OperationStarted(ctx, OpExchange)
	defer probe.End()

	if grantToken == "" {
		err := fmt.Errorf("%w: authorizationGrant", ErrMissingClaim)
		probe.Failed(err)
		return nil, err
	}
	decoded, err := token.DecodeUnverified(grantToken)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}
	if decoded.Claims.Subject == "" {
		err := fmt.Errorf("%w: sub", ErrMissingClaim)
		probe.Failed(err)
		return nil, err
	}
	probe.SubjectResolved(decoded.Claims.Subject)

	aud := captureAudience("", decoded)
	scope := decoded.Claims.Scope
	if scope == "" {
		scope = token.DefaultScope
	}

	req := &issuer.MintRequest{
		Issuer:      s.resolver.ResolveForRequest(reqCtx.Host),
		Subject:     decoded.Claims.Subject,
		Username:    decoded.Claims.Username,
		Scope:       scope,
		Audience:    aud,
		Fingerprint: fingerprint,
	}
	access, err := s.mintMaybeBypassed(ctx, probe, req, decoded)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}
	probe.TokenEmitted("access", access.Claims.TokenID)

	refreshReq := *req
	refreshReq.Fingerprint = ""
	refresh, err := s.mintMaybeBypassed(ctx, probe, &refreshReq, decoded)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}
	probe.TokenEmitted("refresh", refresh.Claims.TokenID)

	record := &session.SessionRecord{
		PlayerID:  decoded.Claims.Subject,
		Username:  decoded.Claims.Username,
		TokenID:   access.Claims.TokenID,
		Audience:  aud,
		IssuedAt:  access.IssuedAt.Unix(),
		ExpiresAt: access.ExpiresAt.Unix(),
	}
	if err := s.store.PutSession(ctx, record); err != nil {
		probe.PersistenceDegraded(err)
		s.logger.Warn("failed to register authorized session", "player", record.PlayerID, "error", err)
	}

	return &Access{
		AccessToken:  access.Token,
		TokenType:    "Bearer",
		ExpiresIn:    access.ExpiresIn(),
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt.Unix(),
		Scope:        scope,
	}, nil
}

// DeleteSession removes the bearer's session record. It always succeeds:
// a missing bearer, an unparseable token, or an absent record all leave
// the registry in the same state the caller asked for.
func (s *SessionService) DeleteSession(ctx context.Context, reqCtx *request.Context) error {
	ctx, probe := s.observer.OperationStarted(ctx, OpDeleteSession)
	defer probe.End()

	decoded := decodeLenient(reqCtx.BearerToken)
	if decoded == nil || decoded.Claims.Subject == "" {
		return nil
	}
	probe.SubjectResolved(decoded.Claims.Subject)

	if err := s.store.DeleteSession(ctx, decoded.Claims.Subject); err != nil {
		probe.PersistenceDegraded(err)
		s.logger.Warn("failed to delete session", "player", decoded.Claims.Subject, "error", err)
	}
	return nil
}

// Profile verifies the bearer and assembles the game profile from its
// claims plus whatever the datasource pipeline knows about the subject.
func (s *SessionService) Profile(ctx context.Context, reqCtx *request.Context) (*Profile, error) {
	ctx, probe := s.observer.OperationStarted(ctx, OpProfile)
	defer probe.End()

	decoded, err := s.verifier.Verify(ctx, reqCtx.BearerToken)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}
	subject := decoded.Claims.Subject
	probe.SubjectResolved(subject)

	attrs := s.fetchAttributes(ctx, subject)

	entitlements := decoded.Claims.Entitlements
	if mapped := s.mapEntitlements(ctx, subject, decoded.Claims.Username, attrs); mapped != nil {
		entitlements = mapped
	}
	if entitlements == nil {
		entitlements = []string{}
	}

	createdAt := attrs.GetInt64("created_at")
	if createdAt == 0 {
		createdAt = decoded.Claims.IssuedAt
	}

	return &Profile{
		UUID:             subject,
		Username:         firstNonEmpty(decoded.Claims.Username, attrs.GetString("username"), DefaultUsername),
		Entitlements:     entitlements,
		CreatedAt:        createdAt,
		NextNameChangeAt: createdAt + int64(nameChangeCooldown.Seconds()),
		Skin:             attrs.GetString("skin"),
	}, nil
}

// mintPair emits the identity+session token pair. Entitlements, when the
// mapper yields them, ride on the identity token only.
func (s *SessionService) mintPair(ctx context.Context, probe Probe, reqCtx *request.Context, subject, username, scope string) (*TokenPair, *token.Claims, error) {
	iss := s.resolver.ResolveForRequest(reqCtx.Host)
	attrs := s.fetchAttributes(ctx, subject)

	identity, err := s.minter.Mint(ctx, &issuer.MintRequest{
		Issuer:       iss,
		Subject:      subject,
		Username:     username,
		Scope:        scope,
		Entitlements: s.mapEntitlements(ctx, subject, username, attrs),
	})
	if err != nil {
		return nil, nil, err
	}
	probe.TokenEmitted("identity", identity.Claims.TokenID)

	sess, err := s.minter.Mint(ctx, &issuer.MintRequest{
		Issuer:   iss,
		Subject:  subject,
		Username: username,
		Scope:    scope,
	})
	if err != nil {
		return nil, nil, err
	}
	probe.TokenEmitted("session", sess.Claims.TokenID)

	return &TokenPair{
		IdentityToken: identity.Token,
		SessionToken:  sess.Token,
		ExpiresAt:     identity.ExpiresAt.Unix(),
	}, sess.Claims, nil
}

// registerSession persists the session record. This write is critical: a
// session that is not visible to the next request was never created.
func (s *SessionService) registerSession(ctx context.Context, subject, username string, sessionClaims *token.Claims, audience string) error {
	record := &session.SessionRecord{
		PlayerID:  subject,
		Username:  username,
		TokenID:   sessionClaims.TokenID,
		Audience:  audience,
		IssuedAt:  sessionClaims.IssuedAt,
		ExpiresAt: sessionClaims.ExpiresAt,
	}
	if err := s.store.PutSession(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFatal, err)
	}
	return nil
}

// mintMaybeBypassed applies the self-signed substitution when the policy
// says so; the embedded signature must verify before it is honored.
func (s *SessionService) mintMaybeBypassed(ctx context.Context, probe Probe, req *issuer.MintRequest, decoded *token.Decoded) (*issuer.Minted, error) {
	if decoded != nil && s.bypass.ShouldBypassExchange(decoded) {
		if err := trust.VerifyEmbedded(decoded); err != nil {
			return nil, err
		}
		probe.BypassApplied()
		return s.minter.MintSelfSigned(ctx, req, decoded.Header.JWK)
	}
	return s.minter.Mint(ctx, req)
}

// claimsOrFallback reads subject and username from a presented token
// without verification, falling back to the request context.
func (s *SessionService) claimsOrFallback(presented string, reqCtx *request.Context) (subject, username string) {
	if decoded := decodeLenient(presented); decoded != nil {
		subject = decoded.Claims.Subject
		username = decoded.Claims.Username
	}
	subject = firstNonEmpty(subject, reqCtx.Subject, uuid.NewString())
	if username == "" {
		username = DefaultUsername
	}
	return subject, username
}

func (s *SessionService) fetchAttributes(ctx context.Context, subject string) claims.Claims {
	if s.profiles == nil {
		return nil
	}
	attrs, err := s.profiles.Fetch(ctx, subject)
	if err != nil {
		s.logger.Warn("profile datasource fetch failed", "subject", subject, "error", err)
		return nil
	}
	return attrs
}

func (s *SessionService) mapEntitlements(ctx context.Context, subject, username string, attrs claims.Claims) []string {
	if s.mapper == nil {
		return nil
	}
	entitlements, err := s.mapper.Map(ctx, &MapperInput{
		Subject:    subject,
		Username:   username,
		Attributes: attrs,
	})
	if err != nil {
		s.logger.Warn("entitlement mapping failed", "subject", subject, "error", err)
		return nil
	}
	return entitlements
}

// captureAudience picks the audience for grants and access tokens: the
// caller's explicit audience, then the presented token's aud, then its sub
// when the token is scoped to servers only, then a synthetic one.
func captureAudience(bodyAudience string, decoded *token.Decoded) string {
	if bodyAudience != "" {
		return bodyAudience
	}
	if decoded != nil {
		if decoded.Claims.Audience != "" {
			return decoded.Claims.Audience
		}
		if decoded.Claims.Scope == token.ScopeServer && decoded.Claims.Subject != "" {
			return decoded.Claims.Subject
		}
	}
	return uuid.NewString()
}

// decodeLenient parses a token, treating anything unparseable as absent.
func decodeLenient(presented string) *token.Decoded {
	if presented == "" {
		return nil
	}
	decoded, err := token.DecodeUnverified(presented)
	if err != nil {
		return nil
	}
	return decoded
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
