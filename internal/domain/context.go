package domain

import "context"

type contextKey string

const accessTokenKey = contextKey("accessToken")

// ContextWithAccessToken attaches the user's access token so row calls run
// on behalf of that user.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey, token)
}

func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey).(string)
	return token, ok && token != ""
}
