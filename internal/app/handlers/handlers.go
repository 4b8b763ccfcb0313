package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

const (
	invalidJSON        = "Invalid JSON"
	invalidCredentials = "Invalid credentials"
	internalError      = "Internal Server Error"
	defaultCurrency    = "USD"
)

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func getPasswordHash(password string) string {
	h := sha256.New()
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

func createSession(userID string, secretKey string) string {
	userIDBytes := []byte(userID)

	key := sha256.Sum256([]byte(secretKey))
	h := hmac.New(sha256.New, key[:])
	h.Write(userIDBytes)
	sign := h.Sum(nil)

	return hex.EncodeToString(append(userIDBytes, sign...))
}

func (bh *BaseHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Err(err).Msg("response encode")
	}
}

func sessionUser(req *http.Request) string {
	return req.Context().Value(userIDKey).(string)
}

func (bh *BaseHandler) register() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var creds Credentials
		if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}
		if creds.Login == "" || creds.Password == "" {
			http.Error(w, "Login and password required", http.StatusBadRequest)
			return
		}

		userID, err := bh.repo.CreateUser(creds.Login, getPasswordHash(creds.Password))
		if err != nil {
			if errors.Is(err, storage.ErrLoginExists) {
				http.Error(w, "Login already in use", http.StatusConflict)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("register")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  cookieName,
			Value: createSession(userID, bh.secretKey),
			Path:  cookiePath,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func (bh *BaseHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var creds Credentials
		if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}

		userID, err := bh.repo.AuthUser(creds.Login, getPasswordHash(creds.Password))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, invalidCredentials, http.StatusUnauthorized)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("login")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  cookieName,
			Value: createSession(userID, bh.secretKey),
			Path:  cookiePath,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func (bh *BaseHandler) getCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		categories, err := bh.repo.GetCategories()
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("categories")
			return
		}
		bh.writeJSON(w, http.StatusOK, categories)
	}
}

func (bh *BaseHandler) listResources() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter := storage.ResourceFilter{
			CategorySlug: req.URL.Query().Get("category"),
			Query:        req.URL.Query().Get("q"),
			FeaturedOnly: req.URL.Query().Get("featured") == "true",
		}

		if resources, ok := bh.listings.Get(req.Context(), filter.CategorySlug, filter.Query, filter.FeaturedOnly); ok {
			bh.writeJSON(w, http.StatusOK, resources)
			return
		}

		resources, err := bh.repo.ListResources(filter)
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("list resources")
			return
		}
		if resources == nil {
			resources = []entity.Resource{}
		}

		bh.listings.Set(req.Context(), filter.CategorySlug, filter.Query, filter.FeaturedOnly, resources)
		bh.writeJSON(w, http.StatusOK, resources)
	}
}

func (bh *BaseHandler) getResource() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		resource, err := bh.repo.GetResourceBySlug(chi.URLParam(req, "slug"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "Resource not found", http.StatusNotFound)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("get resource")
			return
		}
		bh.writeJSON(w, http.StatusOK, resource)
	}
}

type resourceSubmission struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	CategoryID  int64  `json:"category_id"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
}

// submitResource creates a listing authored by the session user, making
// them its creator for commission purposes.
func (bh *BaseHandler) submitResource() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var sub resourceSubmission
		if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}
		if sub.Slug == "" || sub.Name == "" || sub.CategoryID == 0 {
			http.Error(w, "Slug, name and category required", http.StatusBadRequest)
			return
		}
		if sub.Price < 0 {
			http.Error(w, "Price cannot be negative", http.StatusBadRequest)
			return
		}
		if sub.Currency == "" {
			sub.Currency = defaultCurrency
		}

		authorID, _ := strconv.ParseInt(sessionUser(req), 10, 64)
		resourceID, err := bh.repo.CreateResource(entity.Resource{
			Slug:        sub.Slug,
			Name:        sub.Name,
			Description: sub.Description,
			URL:         sub.URL,
			CategoryID:  sub.CategoryID,
			AuthorID:    authorID,
			Price:       sub.Price,
			Currency:    sub.Currency,
		})
		if err != nil {
			if errors.Is(err, storage.ErrSlugExists) {
				http.Error(w, "Slug already in use", http.StatusConflict)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("submit resource")
			return
		}

		bh.listings.Invalidate(req.Context())
		bh.writeJSON(w, http.StatusCreated, map[string]int64{"id": resourceID})
	}
}
