/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/nuts-siop/auth/codec"
	"github.com/nuts-foundation/nuts-siop/auth/log"
	"github.com/nuts-foundation/nuts-siop/auth/oauth"
	"github.com/nuts-foundation/nuts-siop/auth/op"
	"github.com/nuts-foundation/nuts-siop/auth/pex"
	"github.com/nuts-foundation/nuts-siop/auth/rp"
	"github.com/nuts-foundation/nuts-siop/auth/session"
	"github.com/nuts-foundation/nuts-siop/auth/version"
	"github.com/nuts-foundation/nuts-siop/core"
	"github.com/nuts-foundation/nuts-siop/crypto"
	"github.com/nuts-foundation/nuts-siop/events"
	"github.com/nuts-foundation/nuts-siop/http/client"
	"github.com/nuts-foundation/nuts-siop/storage"
	"github.com/nuts-foundation/nuts-siop/vcr/pe"
	"github.com/nuts-foundation/nuts-siop/vcr/revocation"
	"github.com/nuts-foundation/nuts-siop/vdr"
	"github.com/nuts-foundation/nuts-siop/vdr/linkeddomains"
)

// ModuleName contains the name of this module
const ModuleName = "Auth"

// ResponsePath is the path wallets post authorization responses to, relative to the public URL.
const ResponsePath = "/siop/rp/response"

// referenceCacheTTL is how long objects fetched by reference (request objects, client metadata, presentation
// definitions) are cached, when the server allows caching.
const referenceCacheTTL = 5 * time.Minute

var _ SIOP = (*Auth)(nil)
var _ core.Injectable = (*Auth)(nil)
var _ core.Configurable = (*Auth)(nil)

// Auth is the SIOP engine. It configures the relying party and OpenID provider from the auth.* config.
type Auth struct {
	config          Config
	storageInstance *storage.Engine
	vdrInstance     *vdr.Module
	eventManager    *events.Manager
	publicURL       *url.URL
	version         version.Version
	signer          *crypto.Signer
	sessions        *session.Manager
	definitions     *pe.DefinitionStore
	rpBuilder       *rp.Builder
	relyingParty    *rp.RP
	provider        *op.OP
	fetcher         codec.Fetcher
}

// NewAuthInstance creates a new Auth engine.
func NewAuthInstance(storageInstance *storage.Engine, vdrInstance *vdr.Module, eventManager *events.Manager) *Auth {
	return &Auth{
		config:          DefaultConfig(),
		storageInstance: storageInstance,
		vdrInstance:     vdrInstance,
		eventManager:    eventManager,
	}
}

// Name returns the name of the module.
func (auth *Auth) Name() string {
	return ModuleName
}

// Config returns the actual config of the module.
func (auth *Auth) Config() interface{} {
	return &auth.config
}

// Configure the Auth struct. It must be configured after the storage, VDR and events engines.
func (auth *Auth) Configure(config core.ServerConfig) error {
	var err error
	if auth.version, err = version.Parse(auth.config.Version); err != nil {
		return fmt.Errorf("invalid auth.version: %w", err)
	}
	linkedDomainMode, err := linkeddomains.ParseMode(auth.config.LinkedDomains)
	if err != nil {
		return err
	}
	revocationMode, err := revocation.ParseMode(auth.config.Revocation)
	if err != nil {
		return err
	}
	if auth.config.Session.MaxAge < 0 {
		return errors.New("auth.session.maxage can't be negative")
	}
	if config.URL != "" {
		if auth.publicURL, err = config.ServerURL(); err != nil {
			return err
		}
	}

	httpClient := client.New(auth.config.HTTP.Timeout)
	if sessionDatabase := auth.storageInstance.GetSessionDatabase(); sessionDatabase != nil {
		httpClient = client.NewWithCache(auth.config.HTTP.Timeout, sessionDatabase.GetStore(referenceCacheTTL, "auth", "references"))
	}
	auth.fetcher = codec.NewHTTPFetcher(httpClient)

	store, err := auth.sessionStore()
	if err != nil {
		return err
	}
	auth.sessions = session.NewManager(store, time.Duration(auth.config.Session.MaxAge)*time.Second)

	auth.definitions = pe.NewDefinitionStore()
	if auth.config.Definitions != "" {
		if err = auth.definitions.LoadFromFile(auth.config.Definitions); err != nil {
			return err
		}
		log.Logger().Infof("Loaded %d presentation definitions", len(auth.definitions.IDs()))
	}

	if auth.signer, err = auth.createSigner(httpClient); err != nil {
		return err
	}

	jwtVerifier := auth.vdrInstance.JWTVerifier()
	linkedDomains := auth.vdrInstance.LinkedDomains()
	sink := auth.eventManager.Sink()
	if auth.provider, err = op.New(op.Options{
		Signer:               auth.signer,
		Verifier:             jwtVerifier,
		Fetcher:              auth.fetcher,
		LinkedDomains:        linkedDomains,
		LinkedDomainMode:     linkedDomainMode,
		PresentationVerifier: pex.NewJWTPresentationVerifier(jwtVerifier),
		HTTPClient:           httpClient,
		Sink:                 sink,
	}); err != nil {
		return err
	}

	if auth.config.ClientID == "" {
		log.Logger().Info("auth.clientid not set, relying party is disabled")
		return nil
	}
	if auth.signer == nil {
		return errors.New("auth.signer.keyfile or auth.signer.endpoint is required when auth.clientid is set")
	}
	if auth.publicURL == nil {
		return errors.New("url is required when auth.clientid is set")
	}
	redirectURI := auth.config.RedirectURI
	if redirectURI == "" {
		redirectURI = auth.publicURL.JoinPath(ResponsePath).String()
	}
	builder := rp.NewBuilder(auth.version).
		WithClientID(auth.config.ClientID, 0).
		WithScope(oauth.OpenIDScope, 0).
		WithResponseType([]string{oauth.IDTokenResponseType}, 0).
		WithRedirectURI(redirectURI, 0).
		WithResponseMode(oauth.ResponseModePost, 0).
		WithSigner(auth.signer).
		WithClientMetadata(oauth.RPRegistrationMetadata{
			ClientName:                  auth.config.ClientName,
			SubjectSyntaxTypesSupported: auth.vdrInstance.SubjectSyntaxTypes(),
			VPFormats:                   oauth.DefaultVPFormats(),
		}, oauth.ObjectBy{PassBy: oauth.PassByValue}).
		WithVerifier(jwtVerifier).
		WithPresentationVerifier(pex.NewJWTPresentationVerifier(jwtVerifier)).
		WithEvaluator(pe.NewEvaluator()).
		WithRevocation(revocationMode, revocation.NewStatusList2021Checker(httpClient, jwtVerifier)).
		WithLinkedDomains(linkedDomains, linkedDomainMode).
		WithEventSink(sink).
		WithSessionManager(auth.sessions)
	if auth.relyingParty, err = builder.Build(); err != nil {
		return fmt.Errorf("invalid relying party configuration: %w", err)
	}
	auth.rpBuilder = &builder
	log.Logger().
		WithField(core.LogFieldClientID, auth.config.ClientID).
		Infof("Relying party enabled (version=%s, redirect_uri=%s)", auth.version, redirectURI)
	return nil
}

func (auth *Auth) sessionStore() (session.Store, error) {
	switch auth.config.Session.Store {
	case "", SessionStoreMemory:
		return session.NewMemoryStore(), nil
	case SessionStoreRedis:
		redisClient := auth.storageInstance.RedisClient()
		if redisClient == nil {
			return nil, errors.New("auth.session.store is redis, but storage.redis.address is not set")
		}
		return session.NewRedisStore(redisClient, auth.storageInstance.RedisPrefix()), nil
	}
	return nil, fmt.Errorf("invalid auth.session.store: %s", auth.config.Session.Store)
}

// createSigner creates the signer from auth.signer, or returns nil when no key is configured.
func (auth *Auth) createSigner(httpClient core.HTTPRequestDoer) (*crypto.Signer, error) {
	cfg := auth.config.Signer
	did := cfg.DID
	if did == "" {
		did = auth.config.ClientID
	}
	switch {
	case cfg.KeyFile != "" && cfg.Endpoint != "":
		return nil, errors.New("auth.signer.keyfile and auth.signer.endpoint are mutually exclusive")
	case cfg.KeyFile != "":
		set, err := jwk.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read auth.signer.keyfile: %w", err)
		}
		key, ok := set.Key(0)
		if !ok || set.Len() != 1 {
			return nil, errors.New("auth.signer.keyfile must contain exactly one JWK")
		}
		return crypto.NewLocalSigner(key, did, cfg.KID)
	case cfg.Endpoint != "":
		kid := cfg.KID
		if kid == "" {
			kid = did + "#0"
		}
		return crypto.NewRemoteSigner(httpClient, cfg.Endpoint, cfg.Token, jwa.SignatureAlgorithm(cfg.Algorithm), did, kid)
	}
	return nil, nil
}

// RelyingParty returns the relying party, or nil if auth.clientid isn't set.
func (auth *Auth) RelyingParty() *rp.RP {
	return auth.relyingParty
}

// RelyingPartyBuilder returns the builder the relying party was created with, to derive relying parties that
// ask for presentations. It returns nil if auth.clientid isn't set.
func (auth *Auth) RelyingPartyBuilder() *rp.Builder {
	return auth.rpBuilder
}

// Provider returns the OpenID provider.
func (auth *Auth) Provider() *op.OP {
	return auth.provider
}

// Sessions returns the session manager that correlates the requests and responses of the relying party.
func (auth *Auth) Sessions() *session.Manager {
	return auth.sessions
}

// Definitions returns the presentation definitions the relying party can ask for.
func (auth *Auth) Definitions() *pe.DefinitionStore {
	return auth.definitions
}

// PublicURL returns the public URL of the server, or nil if it isn't configured.
func (auth *Auth) PublicURL() *url.URL {
	return auth.publicURL
}

// SupportedVersion returns the version of created authorization requests.
func (auth *Auth) SupportedVersion() version.Version {
	return auth.version
}

// Fetcher returns the fetcher for objects passed by reference.
func (auth *Auth) Fetcher() codec.Fetcher {
	return auth.fetcher
}
