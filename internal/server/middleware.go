package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/NgigiN/ledger/internal/apperr"
	"github.com/NgigiN/ledger/internal/auth"
	"github.com/NgigiN/ledger/internal/storage"
)

type identityKey struct{}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey{}).(auth.Identity)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth resolves the bearer token and rejects assertions whose purpose
// is not in allowed.
func (s *Server) requireAuth(next http.HandlerFunc, allowed ...storage.Purpose) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeMsg(w, http.StatusUnauthorized, "Missing Authorization Header")
			return
		}
		id, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !purposeAllowed(id.Purpose, allowed) {
			writeMsg(w, http.StatusUnauthorized, "token not valid for this operation")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	}
}

func purposeAllowed(p storage.Purpose, allowed []storage.Purpose) bool {
	if len(allowed) == 0 {
		return p == storage.PurposeLogin
	}
	for _, a := range allowed {
		if a == p {
			return true
		}
	}
	return false
}

// requireAdmin runs after requireAuth.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.IsAdmin(r.Context(), identityFrom(r.Context()).AccountID) {
			writeErr(w, apperr.ErrForbidden)
			return
		}
		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
