package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uniplus/uniplus-api/internal/models"
)

func TestJWTMiddleware(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := signup(t, h, "alice", "correct horse", "")
	token, err := h.GenerateToken(userID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var gotUserID uint
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = r.Context().Value(UserIDKey).(uint)
		w.WriteHeader(http.StatusOK)
	})
	protected := h.JWTMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/tickets/1/qr", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid cookie, got %d", rec.Code)
	}
	if gotUserID != userID {
		t.Errorf("context user_id = %d, want %d", gotUserID, userID)
	}

	// No credentials at all.
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tickets/1/qr", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rec.Code)
	}

	// Garbage cookie.
	req = httptest.NewRequest(http.MethodGet, "/tickets/1/qr", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad cookie, got %d", rec.Code)
	}
}

func TestJWTMiddleware_SlidingSession(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := signup(t, h, "alice", "correct horse", "")

	// Hand-roll a token past the halfway point of its lifetime.
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(TokenDuration / 4).Unix(),
	}
	oldToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	protected := h.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/tickets/1/qr", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: oldToken})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var refreshed *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			refreshed = c
		}
	}
	if refreshed == nil {
		t.Fatal("expected refreshed session cookie")
	}
	if refreshed.Value == oldToken {
		t.Error("cookie was not reissued with a new token")
	}
	if _, err := h.Authorize(AuthInput{Cookie: CookieName + "=" + refreshed.Value}); err != nil {
		t.Errorf("refreshed token did not authorize: %v", err)
	}
}

func TestJWTMiddleware_APIKey(t *testing.T) {
	h, db := newTestHandler(t)
	userID := signup(t, h, "scanner-owner", "correct horse", "organizer")

	key := models.APIKey{UserID: userID, Key: "scanner-key-1", Name: "door scanner"}
	if err := db.Create(&key).Error; err != nil {
		t.Fatalf("failed to create api key: %v", err)
	}

	var gotUserID uint
	protected := h.JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = r.Context().Value(UserIDKey).(uint)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tickets/1/qr", nil)
	req.Header.Set("X-API-KEY", "scanner-key-1")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d", rec.Code)
	}
	if gotUserID != userID {
		t.Errorf("context user_id = %d, want %d", gotUserID, userID)
	}
	// Machine clients never get session cookies.
	if len(rec.Result().Cookies()) != 0 {
		t.Error("api key request should not set cookies")
	}
}
