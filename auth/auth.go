package auth

import "context"

type contextKey struct {
	name string
}

var tokenKey = &contextKey{"token"}

// WithContextToken makes requests issued with ctx authenticate with token instead of the
// client's own token.
func WithContextToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tokenKey, token)
}

func ContextToken(ctx context.Context) string {
	if ctx != nil {
		if val, ok := ctx.Value(tokenKey).(string); ok {
			return val
		}

	}
	return ""
}

// BearerToken returns the token a request issued with ctx should carry, preferring the
// context's token over fallback.
func BearerToken(ctx context.Context, fallback string) string {
	if token := ContextToken(ctx); token != "" {
		return token
	}
	return fallback
}
