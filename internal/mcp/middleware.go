package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrUnauthorized indicates a missing or unknown bearer token.
var ErrUnauthorized = errors.New("unauthorized")

type contextKey int

const (
	profileIDKey contextKey = iota
	sessionIDKey
)

// Methods a client may call before presenting credentials.
var publicMethods = map[string]bool{
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,
}

func getProfileID(ctx context.Context) string {
	v, _ := ctx.Value(profileIDKey).(string)
	return v
}

func getSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// ProfileResolver resolves a profile ID from a bearer token.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, token string) (string, error)
}

func requestHeader(req sdkmcp.Request) http.Header {
	if extra := req.GetExtra(); extra != nil {
		return extra.Header
	}
	return nil
}

func bearerToken(h http.Header) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h.Get("Authorization"), "Bearer "))
}

// authMiddleware resolves the caller's profile from the Authorization header.
func authMiddleware(resolver ProfileResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if publicMethods[method] {
				return next(ctx, method, req)
			}

			token := bearerToken(requestHeader(req))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
			}
			profileID, err := resolver.ResolveProfile(ctx, token)
			if err != nil || profileID == "" {
				return nil, fmt.Errorf("%w: invalid bearer token", ErrUnauthorized)
			}

			return next(context.WithValue(ctx, profileIDKey, profileID), method, req)
		}
	}
}

// noAuthMiddleware assigns every call to the local profile.
func noAuthMiddleware(localProfile string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(context.WithValue(ctx, profileIDKey, localProfile), method, req)
		}
	}
}

// sessionMiddleware records the session ID from the Mcp-Session-Id header
// or, over stdio, from the request's _meta.session_id.
func sessionMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			sessionID := ""
			if h := requestHeader(req); h != nil {
				sessionID = h.Get("Mcp-Session-Id")
			}
			if sessionID == "" {
				sessionID = metaSessionID(req)
			}
			if sessionID != "" {
				ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			}
			return next(ctx, method, req)
		}
	}
}

// metaSessionID reads _meta.session_id. Notifications such as "initialized"
// may carry typed-nil params, so GetMeta is guarded.
func metaSessionID(req sdkmcp.Request) (sessionID string) {
	params := req.GetParams()
	if params == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			sessionID = ""
		}
	}()
	if sid, ok := params.GetMeta()["session_id"].(string); ok {
		return sid
	}
	return ""
}
