package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zhouzirui/mindcare/backend/internal/service/auth"
	"github.com/zhouzirui/mindcare/backend/pkg/utils"
)

// Authenticator 校验 Bearer 令牌
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Claims, error)
}

type claimsKey struct{}

// Auth 拒绝没有有效 Bearer 令牌的请求。令牌取自 Authorization 请求头，
// 无法设置请求头的客户端（EventSource、浏览器 WebSocket）可改用 token 查询参数
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "Bearer token required")
				return
			}

			claims, err := authn.Authenticate(r.Context(), token)
			switch {
			case errors.Is(err, auth.ErrTokenRevoked):
				utils.RespondError(w, http.StatusUnauthorized, "Token has been revoked")
				return
			case errors.Is(err, auth.ErrInvalidToken):
				utils.RespondError(w, http.StatusUnauthorized, "Invalid bearer token")
				return
			case err != nil:
				slog.Error("authenticate failed", "component", "auth", "error", err)
				utils.RespondError(w, http.StatusInternalServerError, "Internal server error.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return "", false
		}
		token := strings.TrimSpace(header[len("Bearer "):])
		return token, token != ""
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	return token, token != ""
}

// WithClaims 将令牌声明写入 ctx
func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom 返回 Auth 写入的令牌声明
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

// UserID 返回已认证的用户 ID，未认证时为空
func UserID(ctx context.Context) string {
	c, _ := ClaimsFrom(ctx)
	return c.UserID
}
