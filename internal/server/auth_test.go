package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func protectedEcho(secret []byte) *echo.Echo {
	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, userID(c))
	}, withAuth(secret))
	return e
}

func TestAuthMiddlewareBearer(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-42", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	e := protectedEcho(secret)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "user-42" {
		t.Fatalf("subject = %q, want user-42", rec.Body.String())
	}
}

func TestAuthMiddlewareCookie(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-7", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	e := protectedEcho(secret)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	secret := []byte("test-secret")
	e := protectedEcho(secret)

	cases := map[string]func(*http.Request){
		"missing token": func(r *http.Request) {},
		"garbage token": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.jwt")
		},
		"wrong secret": func(r *http.Request) {
			tok, _ := SignJWT("user-1", []byte("other-secret"), time.Hour)
			r.Header.Set("Authorization", "Bearer "+tok)
		},
		"expired token": func(r *http.Request) {
			tok, _ := SignJWT("user-1", secret, -time.Minute)
			r.Header.Set("Authorization", "Bearer "+tok)
		},
	}
	for name, setup := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		setup(req)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}
