package service

import "context"

type contextKey string

const operatorKey contextKey = "operator"

// OperatorInfo is the identity carried by a validated access token.
type OperatorInfo struct {
	UserID    uint64
	Name      string
	Superuser bool
}

func WithOperator(ctx context.Context, op *OperatorInfo) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// GetOperatorInfo returns nil on unauthenticated contexts.
func GetOperatorInfo(ctx context.Context) *OperatorInfo {
	val, ok := ctx.Value(operatorKey).(*OperatorInfo)
	if !ok {
		return nil
	}
	return val
}

// GetOperator returns the operator name, or "anonymous".
func GetOperator(ctx context.Context) string {
	op := GetOperatorInfo(ctx)
	if op == nil {
		return "anonymous"
	}
	return op.Name
}
