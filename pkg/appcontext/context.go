// Package appcontext carries request/invocation scoped values through context.
package appcontext

import "context"

type ContextKey string

var (
	RequestIDKey    = ContextKey("X-Request-Id")
	JobNameKey      = ContextKey("X-Job-Name")
	InvocationIDKey = ContextKey("X-Invocation-Id")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetJobName(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, JobNameKey, job)
}

func GetJobName(ctx context.Context) string {
	value, ok := ctx.Value(JobNameKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, InvocationIDKey, id)
}

func GetInvocationID(ctx context.Context) string {
	value, ok := ctx.Value(InvocationIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
