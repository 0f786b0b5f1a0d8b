package kickapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultIdentityBase is Kick's OAuth host.
const DefaultIdentityBase = "https://id.kick.com"

// OAuth handles the authorization code and refresh grants against Kick's
// identity service.
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// BaseURL defaults to DefaultIdentityBase when empty.
	BaseURL string
}

func (o *OAuth) base() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return DefaultIdentityBase
}

// TokenResult is the response of both the auth code and refresh grants.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}

// BuildAuthorizeURL constructs the user authorization URL for the OAuth code grant.
func (o *OAuth) BuildAuthorizeURL(scopes, state string) (string, error) {
	if o.ClientID == "" || o.RedirectURI == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	v := url.Values{}
	v.Set("response_type", "code")
	v.Set("client_id", o.ClientID)
	v.Set("redirect_uri", o.RedirectURI)
	if scopes != "" {
		v.Set("scope", strings.TrimSpace(strings.ReplaceAll(scopes, ",", " ")))
	}
	if state != "" {
		v.Set("state", state)
	}
	return o.base() + "/oauth/authorize?" + v.Encode(), nil
}

// ExchangeAuthCode exchanges an authorization code for access and refresh tokens.
func (o *OAuth) ExchangeAuthCode(ctx context.Context, code string) (*TokenResult, error) {
	if o.ClientID == "" || o.ClientSecret == "" || code == "" || o.RedirectURI == "" {
		return nil, errors.New("missing required parameter for auth code exchange")
	}
	return o.tokenGrant(ctx, map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": o.RedirectURI,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	if o.ClientID == "" || o.ClientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientID/clientSecret/refreshToken")
	}
	return o.tokenGrant(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

func (o *OAuth) tokenGrant(ctx context.Context, form map[string]string) (*TokenResult, error) {
	form["client_id"] = o.ClientID
	form["client_secret"] = o.ClientSecret
	var res TokenResult
	resp, err := resty.New().R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&res).
		Post(o.base() + "/oauth/token")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("kick token grant failed: %s: %s", resp.Status(), resp.String())
	}
	if res.AccessToken == "" {
		return nil, errors.New("empty access_token in kick response")
	}
	return &res, nil
}

// ComputeExpiry returns absolute expiry time from seconds, defaulting to +60m when unknown.
func ComputeExpiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Now().Add(60 * time.Minute)
	}
	return time.Now().Add(time.Duration(seconds) * time.Second)
}
