package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// JWTMiddleware protects the raw chi routes that bypass huma (the QR image
// endpoint). It mirrors Authorize: API key header first, cookie second.
func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input := AuthInput{APIKey: r.Header.Get("X-API-KEY")}
		if cookie, err := r.Cookie(CookieName); err == nil {
			input.Cookie = CookieName + "=" + cookie.Value
		}

		userID, err := h.Authorize(input)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Sliding session: reissue the cookie once it is past the halfway
		// point of its lifetime.
		if input.APIKey == "" {
			if exp := tokenExpiry(input.Cookie, h.cfg.JWTSecret); exp != nil {
				if time.Until(*exp) < TokenDuration/2 {
					if newToken, err := h.GenerateToken(userID); err == nil {
						http.SetCookie(w, &http.Cookie{
							Name:     CookieName,
							Value:    newToken,
							Expires:  time.Now().Add(TokenDuration),
							HttpOnly: true,
							Path:     "/",
						})
					}
				}
			}
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenExpiry(cookieHeader, secret string) *time.Time {
	tokenString := cookieValue(cookieHeader, CookieName)
	if tokenString == "" {
		return nil
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil
	}
	t := time.Unix(int64(exp), 0)
	return &t
}
