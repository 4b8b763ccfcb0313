package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

type key string

const (
	cookieName          = "session"
	cookiePath          = "/"
	userIDKey       key = "userID"
	signatureLength     = 32
	invalidCookie       = "Invalid cookie"
	forbidden           = "Forbidden"
)

func checkSignature(cookieValue string, secretKey []byte) (string, error) {
	session, err := hex.DecodeString(cookieValue)
	if err != nil {
		return "", err
	}

	if len(session) <= signatureLength {
		return "", fmt.Errorf("invalid cookie length")
	}

	userIDLength := len(session) - signatureLength
	userID := session[:userIDLength]

	key := sha256.Sum256(secretKey)
	h := hmac.New(sha256.New, key[:])
	h.Write(userID)
	sign := h.Sum(nil)

	if hmac.Equal(sign, session[userIDLength:]) {
		return string(userID), nil
	}
	return "", fmt.Errorf("invalid signature")
}

func authHandle(secretKey string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionCookie, err := r.Cookie(cookieName)
			if err != nil {
				if errors.Is(err, http.ErrNoCookie) {
					http.Error(w, invalidCredentials, http.StatusUnauthorized)
					return
				}
				http.Error(w, invalidCookie, http.StatusUnauthorized)
				return
			}

			userID, err := checkSignature(sessionCookie.Value, []byte(secretKey))
			if err != nil {
				http.Error(w, invalidCookie, http.StatusUnauthorized)
				logger.Logger.Err(err).Msg("session check")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminHandle gates admin routes on the role flag. Runs after authHandle.
func adminHandle(repo storage.Repository) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Context().Value(userIDKey).(string)
			isAdmin, err := repo.IsAdmin(userID)
			if err != nil {
				http.Error(w, forbidden, http.StatusForbidden)
				logger.Logger.Err(err).Str("userID", userID).Msg("admin check")
				return
			}
			if !isAdmin {
				http.Error(w, forbidden, http.StatusForbidden)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}
