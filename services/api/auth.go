package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
)

type contextKey string

const (
	userContextKey contextKey = "sproutd.user"
	nodeContextKey contextKey = "sproutd.node"
)

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

// requireUser authenticates the request with a user bearer token and stores
// the resolved user in the request context.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, errors.New("missing token"))
			return
		}

		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		orm := a.store.ORM.WithContext(ctx)

		var tok userTokenModel
		err := orm.Where("token = ? AND expires_at > ?", token, time.Now().UTC()).First(&tok).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		var user userModel
		if err := orm.First(&user, "id = ?", tok.UserID).Error; err != nil {
			respondError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// requireNode authenticates the request with a node bearer token. Node
// tokens are issued at enrollment and do not expire.
func (a *API) requireNode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, errors.New("missing node token"))
			return
		}

		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		orm := a.store.ORM.WithContext(ctx)

		var tok nodeTokenModel
		err := orm.Where("token = ?", token).First(&tok).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			respondError(w, http.StatusUnauthorized, errors.New("invalid node token"))
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		var node nodeModel
		if err := orm.First(&node, "id = ?", tok.NodeID).Error; err != nil {
			respondError(w, http.StatusUnauthorized, errors.New("invalid node token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), nodeContextKey, node)))
	})
}

func userFrom(ctx context.Context) (userModel, bool) {
	u, ok := ctx.Value(userContextKey).(userModel)
	return u, ok
}

func nodeFrom(ctx context.Context) (nodeModel, bool) {
	n, ok := ctx.Value(nodeContextKey).(nodeModel)
	return n, ok
}
