// Package identity acquires Microsoft Entra tokens and reads the directory.
package identity

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"

	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/logger"
)

// GraphDefaultScope requests every Graph permission granted to the application.
const GraphDefaultScope = "https://graph.microsoft.com/.default"

// EntraConfig holds the application registration.
type EntraConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// OBOFactory builds an on-behalf-of credential for one user assertion.
type OBOFactory func(assertion string) (azcore.TokenCredential, error)

// TokenProvider implements out.TokenProvider with azidentity credentials.
type TokenProvider struct {
	app    azcore.TokenCredential
	obo    OBOFactory
	scopes []string
}

// NewTokenProvider builds client-secret and on-behalf-of credentials from cfg.
func NewTokenProvider(cfg EntraConfig) (*TokenProvider, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, apperr.ConfigError("entra tenant, client id and client secret are required")
	}

	app, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, apperr.ConfigError("invalid client secret credential").WithDetail("cause", err.Error())
	}

	obo := func(assertion string) (azcore.TokenCredential, error) {
		return azidentity.NewOnBehalfOfCredentialWithSecret(cfg.TenantID, cfg.ClientID, assertion, cfg.ClientSecret, nil)
	}

	return NewTokenProviderWithCredentials(app, obo, cfg.Scopes), nil
}

// NewTokenProviderWithCredentials wires pre-built credentials.
func NewTokenProviderWithCredentials(app azcore.TokenCredential, obo OBOFactory, scopes []string) *TokenProvider {
	if len(scopes) == 0 {
		scopes = []string{GraphDefaultScope}
	}
	return &TokenProvider{app: app, obo: obo, scopes: scopes}
}

// AppCredential returns the client-secret credential, shared with the directory client.
func (p *TokenProvider) AppCredential() azcore.TokenCredential {
	return p.app
}

// UserToken exchanges assertion for a delegated Graph token.
func (p *TokenProvider) UserToken(ctx context.Context, userID, assertion string) (*oauth2.Token, error) {
	if assertion == "" {
		return nil, apperr.AuthenticationFailed("on-behalf-of", errors.New("missing user assertion")).WithDetail("user_id", userID)
	}

	cred, err := p.obo(assertion)
	if err != nil {
		return nil, apperr.AuthenticationFailed("on-behalf-of", err).WithDetail("user_id", userID)
	}

	token, err := p.fetch(ctx, cred)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("[TokenProvider] on-behalf-of exchange failed for %s", userID)
		return nil, apperr.AuthenticationFailed("on-behalf-of", err).WithDetail("user_id", userID)
	}
	return token, nil
}

// AppToken returns an application-permission Graph token.
func (p *TokenProvider) AppToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := p.fetch(ctx, p.app)
	if err != nil {
		return nil, apperr.AuthenticationFailed("client-credentials", err)
	}
	return token, nil
}

func (p *TokenProvider) fetch(ctx context.Context, cred azcore.TokenCredential) (*oauth2.Token, error) {
	at, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		Expiry:      at.ExpiresOn,
	}, nil
}

var _ out.TokenProvider = (*TokenProvider)(nil)
