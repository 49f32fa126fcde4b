// internal/crm/token.go
package crm

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"recruitsync/internal/common/config"
	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"

	"github.com/golang-jwt/jwt/v5"
)

const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// TokenSource provides the bearer credential for CRM calls. The executor
// depends on this interface so tests can substitute a fake.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	Invalidate()
}

// TokenManager obtains and caches a bearer credential via the OAuth2
// JWT-bearer grant. The token is process-wide and mutable: any caller may
// invalidate it after a credential rejection, and concurrent re-acquisition
// is accepted (every valid token works for every caller).
type TokenManager struct {
	tokenURL     string
	clientID     string
	username     string
	audience     string
	assertionTTL time.Duration
	privateKey   *rsa.PrivateKey
	httpClient   *http.Client
	logger       logger.Logger

	mu    sync.Mutex
	token string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	InstanceURL string `json:"instance_url"`
}

// NewTokenManager parses the signing key and prepares the manager. No
// network call happens until the first GetToken.
func NewTokenManager(cfg config.CRMConfig, log logger.Logger) (*TokenManager, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRM signing key: %w", err)
	}

	aud := cfg.TokenURL
	if u, err := url.Parse(cfg.TokenURL); err == nil && u.Host != "" {
		aud = u.Scheme + "://" + u.Host
	}

	return &TokenManager{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		username:     cfg.Username,
		audience:     aud,
		assertionTTL: cfg.AssertionTTL,
		privateKey:   key,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		logger:       log.WithFields(map[string]interface{}{"component": "crm-token"}),
	}, nil
}

// GetToken returns the cached bearer token, performing a fresh exchange when
// the cache is empty. Exchange failures are fatal for the calling operation;
// retries happen at the executor layer around whole operations, never here.
func (m *TokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		return m.token, nil
	}

	assertion, err := m.signAssertion()
	if err != nil {
		return "", errors.NewCRMAuthError(fmt.Sprintf("sign assertion: %v", err))
	}

	token, err := m.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}

	m.token = token
	m.logger.Info("bearer token acquired", nil)
	return m.token, nil
}

// Invalidate clears the cached token so the next GetToken performs a fresh
// exchange.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

// signAssertion builds the short-lived signed JWT the token endpoint accepts.
func (m *TokenManager) signAssertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    m.clientID,
		Subject:   m.username,
		Audience:  jwt.ClaimStrings{m.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(m.assertionTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
}

func (m *TokenManager) exchange(ctx context.Context, assertion string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewCRMAuthError(fmt.Sprintf("build token request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", errors.NewCRMAuthError(fmt.Sprintf("token request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewCRMAuthError(fmt.Sprintf("read token response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewCRMAuthError(fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", errors.NewCRMAuthError(fmt.Sprintf("decode token response: %v", err))
	}
	if tr.AccessToken == "" {
		return "", errors.NewCRMAuthError("token response missing access_token")
	}

	return tr.AccessToken, nil
}
