package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer  = "aida"
	tokenSubject = "owner"
	tokenTTL     = 24 * time.Hour
)

type tokenRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// issueToken exchanges the owner password for a signed access token.
func (s *Server) issueToken(c echo.Context) error {
	if !s.profile.IsAuthEnabled() {
		return echo.NewHTTPError(http.StatusNotFound, "authentication is disabled")
	}
	if s.profile.APIPasswordHash == "" {
		return echo.NewHTTPError(http.StatusForbidden, "password login is not configured")
	}

	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.profile.APIPasswordHash), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}

	now := s.now()
	expires := now.Add(tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.profile.APISecret))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to sign token").SetInternal(err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: signed, ExpiresAt: expires.UTC()})
}

// requireToken rejects requests without a valid bearer token. Browsers
// cannot set headers on websocket upgrades, so ?token= is accepted too.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok {
			raw = c.QueryParam("token")
		}
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{},
			func(*jwt.Token) (any, error) { return []byte(s.profile.APISecret), nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(s.now),
		)
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
		}
		return next(c)
	}
}
