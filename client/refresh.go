package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"botadmin/internal/metrics"
	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/logger"

	"go.uber.org/zap"
)

const (
	loginPath     = "token/"
	refreshPath   = "token/refresh/"
	blacklistPath = "token/blacklist/"
)

// Session termination reasons reported to the observer.
const (
	reasonLogout         = "logout"
	reasonRetryRejected  = "retry_rejected"
	reasonNoRefreshToken = "no_refresh_token"
	reasonRefreshFailed  = "refresh_failed"
)

type refreshResult struct {
	token string
	err   error
}

// isTokenEndpoint matches the credential endpoints, where a 401 is final.
func isTokenEndpoint(path string) bool {
	return strings.Contains(path, loginPath)
}

// recoverUnauthorized handles a 401 for req, which was sent with sentToken
// while the client was at generation sentGen.
func (c *Client) recoverUnauthorized(ctx context.Context, req *Request, sentToken string, sentGen uint64, unauthorized *HTTPError) (*Response, error) {
	if isTokenEndpoint(req.Path) {
		return nil, unauthorized
	}
	if req.retried {
		c.terminate(ctx, reasonRetryRejected)
		return nil, fmt.Errorf("%w: %w", ErrSessionTerminated, unauthorized)
	}
	req.retried = true

	refresh, err := c.store.Get(ctx, RefreshTokenKey)
	if err != nil {
		return nil, fmt.Errorf("read refresh token: %w", err)
	}
	if refresh == "" {
		c.terminate(ctx, reasonNoRefreshToken)
		return nil, fmt.Errorf("%w: %w", ErrSessionTerminated, unauthorized)
	}

	c.mu.Lock()
	if c.refreshing {
		wait := make(chan refreshResult, 1)
		c.queue = append(c.queue, wait)
		c.mu.Unlock()
		return c.await(ctx, req, wait)
	}
	// A cycle of this client finished while the request was in flight. A
	// token left over from an older cycle says nothing about the stored one.
	if fresh := c.defaultAuth; c.generation != sentGen && fresh != "" && fresh != sentToken {
		c.mu.Unlock()
		return c.attempt(ctx, req, fresh)
	}
	c.refreshing = true
	c.mu.Unlock()

	// The cycle serves every queued request, so it outlives the caller's cancellation.
	token, err := c.refreshAccess(context.WithoutCancel(ctx), refresh)

	c.mu.Lock()
	if err == nil {
		c.setDefaultAuth(token)
	}
	c.refreshing = false
	waiters := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w <- refreshResult{token: token, err: err}
	}

	if err != nil {
		c.observer.RecordRefresh(metrics.RefreshFailure)
		logger.Warn("token refresh failed", zap.Error(err), zap.Int("waiters", len(waiters)))
		c.terminate(ctx, reasonRefreshFailed)
		return nil, fmt.Errorf("%w: %w", ErrSessionTerminated, err)
	}
	c.observer.RecordRefresh(metrics.RefreshSuccess)
	logger.Debug("token refreshed", zap.Int("waiters", len(waiters)))
	return c.attempt(ctx, req, token)
}

func (c *Client) await(ctx context.Context, req *Request, wait <-chan refreshResult) (*Response, error) {
	c.observer.IncQueued()
	defer c.observer.DecQueued()

	select {
	case res := <-wait:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSessionTerminated, res.err)
		}
		return c.attempt(ctx, req, res.token)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s %s: waiting for token refresh: %w", req.Method, req.Path, ctx.Err())
	}
}

// refreshAccess exchanges the refresh token for a new access token and
// persists it. It bypasses the 401 handling of Do.
func (c *Client) refreshAccess(ctx context.Context, refresh string) (string, error) {
	req, err := NewJSONRequest(http.MethodPost, refreshPath, v1.RefreshRequest{Refresh: refresh})
	if err != nil {
		return "", err
	}
	resp, err := c.send(ctx, req, "")
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newHTTPError(req, resp)
	}

	var out v1.AccessToken
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", ErrNoAccessToken
	}
	if err := c.store.Set(ctx, AccessTokenKey, out.Access); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	return out.Access, nil
}

// terminate clears both credentials and sends the operator to the login
// route, replacing the current location.
func (c *Client) terminate(ctx context.Context, reason string) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	c.defaultAuth = ""
	c.mu.Unlock()

	var errs []error
	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := c.store.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error("failed to clear credentials", zap.Error(err))
	}

	c.observer.RecordSessionEnd(reason)
	logger.Info("session terminated", zap.String("reason", reason))
	c.navigator.Replace(ctx, c.loginRoute)
}
