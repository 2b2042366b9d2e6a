package client

import (
	"context"

	"botadmin/pkg/logger"

	"go.uber.org/zap"
)

// Navigator moves the operator to route, replacing the current location so
// protected views cannot be reached again with stale credentials.
type Navigator interface {
	Replace(ctx context.Context, route string)
}

type NavigatorFunc func(ctx context.Context, route string)

func (f NavigatorFunc) Replace(ctx context.Context, route string) {
	f(ctx, route)
}

// LogNavigator only tells the operator to sign in again.
type LogNavigator struct{}

func (LogNavigator) Replace(_ context.Context, route string) {
	logger.Warn("session ended, sign in again", zap.String("route", route))
}
