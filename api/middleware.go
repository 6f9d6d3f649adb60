package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/sbu-ledger/auth"
	"github.com/warp/sbu-ledger/ledger"
)

type ctxKey struct{}

// currentStaff returns the account loaded by Authenticate.
func currentStaff(ctx context.Context) *ledger.StaffMember {
	m, _ := ctx.Value(ctxKey{}).(*ledger.StaffMember)
	return m
}

// Authenticate resolves the bearer token and reloads the account so that a
// deactivation or unit change takes effect on the next request.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.deny(w, r, fmt.Errorf("%w: missing bearer token", ledger.ErrUnauthenticated))
			return
		}

		id, err := h.Tokens.Parse(token)
		if err != nil {
			h.deny(w, r, err)
			return
		}

		member, err := h.Store.GetStaff(r.Context(), id.StaffID)
		if err != nil {
			h.fail(w, r, "Failed to load account", err)
			return
		}
		if member == nil {
			h.deny(w, r, fmt.Errorf("%w: account not found", ledger.ErrUnauthenticated))
			return
		}
		if !member.Active {
			h.deny(w, r, fmt.Errorf("%w: account is deactivated", ledger.ErrUnauthenticated))
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose current role differs from role.
func (h *Handler) RequireRole(role ledger.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := currentStaff(r.Context())
			if member == nil {
				h.deny(w, r, fmt.Errorf("%w: not authenticated", ledger.ErrUnauthenticated))
				return
			}
			if err := auth.Authorize(auth.Identity{StaffID: member.ID, Role: member.Role}, role); err != nil {
				h.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Info("request denied",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	h.fail(w, r, "", err)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
