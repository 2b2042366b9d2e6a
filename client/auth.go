package client

import (
	"context"
	"fmt"

	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/logger"
	"botadmin/pkg/redact"

	"go.uber.org/zap"
)

// Login exchanges credentials for a token pair and stores both tokens.
// Error responses are returned verbatim as *HTTPError.
func (c *Client) Login(ctx context.Context, username, password string) (*v1.TokenPair, error) {
	var pair v1.TokenPair
	if err := c.Post(ctx, loginPath, v1.LoginRequest{Username: username, Password: password}, &pair); err != nil {
		return nil, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, ErrMalformedTokens
	}
	if err := c.store.Set(ctx, AccessTokenKey, pair.Access); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}
	if err := c.store.Set(ctx, RefreshTokenKey, pair.Refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	c.mu.Lock()
	c.setDefaultAuth(pair.Access)
	c.mu.Unlock()

	logger.Info("logged in", zap.String("username", redact.Username(username)))
	return &pair, nil
}

// RefreshTokens calls the refresh endpoint directly. Nothing is stored.
func (c *Client) RefreshTokens(ctx context.Context, refresh string) (*v1.AccessToken, error) {
	var out v1.AccessToken
	if err := c.Post(ctx, refreshPath, v1.RefreshRequest{Refresh: refresh}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Blacklist revokes refresh on the server.
func (c *Client) Blacklist(ctx context.Context, refresh string) error {
	return c.Post(ctx, blacklistPath, v1.RefreshRequest{Refresh: refresh}, nil)
}

// Logout revokes the stored refresh token when possible and always ends
// the local session.
func (c *Client) Logout(ctx context.Context) {
	refresh, err := c.store.Get(ctx, RefreshTokenKey)
	if err != nil {
		logger.Warn("read refresh token for logout", zap.Error(err))
	}
	if refresh != "" {
		if err := c.Blacklist(ctx, refresh); err != nil {
			logger.Warn("refresh token blacklist failed", zap.Error(err))
		}
	}
	c.terminate(ctx, reasonLogout)
}

const profilePath = "auth/me/"

// Me returns the profile of the operator the access token belongs to.
func (c *Client) Me(ctx context.Context) (*v1.Profile, error) {
	var out v1.Profile
	if err := c.Get(ctx, profilePath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
