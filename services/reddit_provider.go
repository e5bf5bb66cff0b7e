package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	redditAuthorizeURL = "https://www.reddit.com/api/v1/authorize"
	redditTokenURL     = "https://www.reddit.com/api/v1/access_token"
	redditIdentityURL  = "https://oauth.reddit.com/api/v1/me"
)

// RedditConfig holds the OAuth application credentials.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	UserAgent    string
}

type redditProvider struct {
	cfg    RedditConfig
	client *http.Client
}

// NewRedditProvider builds the reddit-backed identity provider.
func NewRedditProvider(cfg RedditConfig) RemoteIdentityProvider {
	return &redditProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *redditProvider) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	q.Set("duration", "permanent")
	q.Set("scope", "identity")
	return redditAuthorizeURL + "?" + q.Encode()
}

func (p *redditProvider) Exchange(ctx context.Context, code string) (*RemoteIdentity, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, redditTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no access token")
	}

	nickname, err := p.identity(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, err
	}

	return &RemoteIdentity{
		Nickname:     nickname,
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		RefreshAfter: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

func (p *redditProvider) identity(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, redditIdentityURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "bearer "+accessToken)
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}

	var me struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	if me.Name == "" {
		return "", fmt.Errorf("identity response missing account name")
	}
	return me.Name, nil
}
