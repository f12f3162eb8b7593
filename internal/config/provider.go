package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sanasol-ws/dualauth/internal/issuer"
	"github.com/sanasol-ws/dualauth/internal/keys"
	"github.com/sanasol-ws/dualauth/internal/probe"
	"github.com/sanasol-ws/dualauth/internal/service"
	"github.com/sanasol-ws/dualauth/internal/session"
	"github.com/sanasol-ws/dualauth/internal/trust"
)

// Provider constructs all application components from configuration.
// Components are built lazily and cached after the first call. This is
// the main entry point for wiring a configured dualauth instance.
type Provider struct {
	config *Config

	// HTTPTransport overrides outbound HTTP for JWKS fetches and Lua
	// profile scripts, mainly for hermetic tests. Nil means the default
	// transport.
	HTTPTransport http.RoundTripper

	logger         *slog.Logger
	observer       service.Observer
	metrics        *probe.MetricsObserver
	observerBuilt  bool
	keyStore       keys.Store
	resolver       *issuer.Resolver
	minter         *issuer.Minter
	federation     *trust.Federation
	official       *trust.OfficialIssuers
	officialBuilt  bool
	keyring        *trust.Keyring
	verifier       *trust.Verifier
	store          session.Store
	profiles       service.ProfileSource
	profilesBuilt  bool
	mapper         service.EntitlementMapper
	mapperBuilt    bool
	sessionService *service.SessionService
}

// NewProvider creates a provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{config: config}
}

// Config returns the underlying configuration
func (p *Provider) Config() *Config {
	return p.config
}

// Logger returns the configured structured logger
func (p *Provider) Logger() *slog.Logger {
	if p.logger == nil {
		p.logger = NewLogger(&p.config.Observability)
	}
	return p.logger
}

// Observer returns the operation observer stack
func (p *Provider) Observer() service.Observer {
	if !p.observerBuilt {
		p.observer, p.metrics = NewObserver(&p.config.Observability, p.Logger())
		p.observerBuilt = true
	}
	return p.observer
}

// Metrics returns the metrics observer, or nil when metrics are disabled.
// The caller owns Stop on shutdown.
func (p *Provider) Metrics() *probe.MetricsObserver {
	p.Observer()
	return p.metrics
}

// KeyStore returns the signing key store
func (p *Provider) KeyStore() (keys.Store, error) {
	if p.keyStore != nil {
		return p.keyStore, nil
	}

	store, err := keys.NewDiskKeyStore(keys.DiskKeyStoreConfig{
		Path:   p.config.SigningKeyPath,
		Logger: p.Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}

	p.keyStore = store
	return store, nil
}

// Resolver returns the issuer resolver
func (p *Provider) Resolver() *issuer.Resolver {
	if p.resolver == nil {
		p.resolver = issuer.NewResolver(issuer.ResolverConfig{
			BaseDomain:    p.config.BaseDomain,
			LocalHosts:    p.config.LocalHosts,
			OfficialHosts: p.config.OfficialIssuers,
		})
	}
	return p.resolver
}

// Minter returns the token minter
func (p *Provider) Minter() (*issuer.Minter, error) {
	if p.minter != nil {
		return p.minter, nil
	}

	keyStore, err := p.KeyStore()
	if err != nil {
		return nil, err
	}

	p.minter = issuer.NewMinter(issuer.MinterConfig{
		Keys: keyStore,
		TTL:  time.Duration(p.config.SessionTTLSeconds) * time.Second,
	})
	return p.minter, nil
}

// Federation returns the foreign key discovery component
func (p *Provider) Federation() (*trust.Federation, error) {
	if p.federation != nil {
		return p.federation, nil
	}

	federation, err := trust.NewFederation(trust.FederationConfig{
		TTL:         time.Duration(p.config.ForeignKeyTTLSeconds) * time.Second,
		NegativeTTL: time.Duration(p.config.ForeignKeyNegativeTTLSeconds) * time.Second,
		HTTPClient:  p.httpClient(),
		Logger:      p.Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create federation: %w", err)
	}

	p.federation = federation
	return federation, nil
}

// Official returns the official issuer verification path, or nil when the
// allow-list is empty
func (p *Provider) Official() (*trust.OfficialIssuers, error) {
	if p.officialBuilt {
		return p.official, nil
	}

	if len(p.config.OfficialIssuers) > 0 {
		issuers := make([]string, 0, len(p.config.OfficialIssuers))
		for _, host := range p.config.OfficialIssuers {
			issuers = append(issuers, "https://"+host)
		}
		official, err := trust.NewOfficialIssuers(trust.OfficialIssuersConfig{
			Issuers:    issuers,
			HTTPClient: p.httpClient(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create official issuers: %w", err)
		}
		p.official = official
	}

	p.officialBuilt = true
	return p.official, nil
}

// Keyring returns the verification key source
func (p *Provider) Keyring() (*trust.Keyring, error) {
	if p.keyring != nil {
		return p.keyring, nil
	}

	keyStore, err := p.KeyStore()
	if err != nil {
		return nil, err
	}
	federation, err := p.Federation()
	if err != nil {
		return nil, err
	}
	official, err := p.Official()
	if err != nil {
		return nil, err
	}

	p.keyring = trust.NewKeyring(trust.KeyringConfig{
		Local:      keyStore,
		Resolver:   p.Resolver(),
		Federation: federation,
		Official:   official,
	})
	return p.keyring, nil
}

// Verifier returns the full token verifier
func (p *Provider) Verifier() (*trust.Verifier, error) {
	if p.verifier != nil {
		return p.verifier, nil
	}

	keyring, err := p.Keyring()
	if err != nil {
		return nil, err
	}

	p.verifier = trust.NewVerifier(trust.VerifierConfig{Keyring: keyring})
	return p.verifier, nil
}

// Store returns the session registry backend
func (p *Provider) Store(ctx context.Context) (session.Store, error) {
	if p.store != nil {
		return p.store, nil
	}

	switch p.config.Store.Backend {
	case "", "memory":
		p.store = session.NewMemoryStore(session.MemoryStoreConfig{})
	case "redis":
		redisCfg := p.config.Store.Redis
		store, err := session.NewRedisStore(ctx, session.RedisStoreConfig{
			Addr:      redisCfg.Addr,
			Username:  redisCfg.Username,
			Password:  redisCfg.Password,
			DB:        redisCfg.DB,
			KeyPrefix: redisCfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		p.store = store
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: memory, redis)", p.config.Store.Backend)
	}

	return p.store, nil
}

// Profiles returns the profile attribute source, or nil when unconfigured
func (p *Provider) Profiles() (service.ProfileSource, error) {
	if p.profilesBuilt {
		return p.profiles, nil
	}

	profiles, err := NewProfileSource(p.config.Profile.Source, p.HTTPTransport)
	if err != nil {
		return nil, err
	}

	p.profiles = profiles
	p.profilesBuilt = true
	return profiles, nil
}

// Mapper returns the entitlement mapper, or nil when unconfigured
func (p *Provider) Mapper() (service.EntitlementMapper, error) {
	if p.mapperBuilt {
		return p.mapper, nil
	}

	m, err := NewEntitlementMapper(p.config.Profile)
	if err != nil {
		return nil, err
	}

	p.mapper = m
	p.mapperBuilt = true
	return m, nil
}

// SessionService returns the fully wired session service
func (p *Provider) SessionService(ctx context.Context) (*service.SessionService, error) {
	if p.sessionService != nil {
		return p.sessionService, nil
	}

	minter, err := p.Minter()
	if err != nil {
		return nil, err
	}
	verifier, err := p.Verifier()
	if err != nil {
		return nil, err
	}
	store, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := p.Profiles()
	if err != nil {
		return nil, err
	}
	mapper, err := p.Mapper()
	if err != nil {
		return nil, err
	}

	p.sessionService = service.NewSessionService(service.SessionServiceConfig{
		Resolver: p.Resolver(),
		Minter:   minter,
		Verifier: verifier,
		Bypass:   trust.NewBypassPolicy(p.config.AcceptSelfSigned),
		Store:    store,
		Profiles: profiles,
		Mapper:   mapper,
		Observer: p.Observer(),
		Logger:   p.Logger(),
	})
	return p.sessionService, nil
}

// httpClient wraps the override transport, when set, for outbound fetches
func (p *Provider) httpClient() *http.Client {
	if p.HTTPTransport == nil {
		return nil
	}
	return &http.Client{Transport: p.HTTPTransport}
}
