package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 30 {
		return errors.New("username must be 3-30 characters")
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return errors.New("valid email is required")
	}
	return nil
}

// Clients submit a sha512 hex digest, never the raw password.
func validatePasswordHash(hash string) error {
	if len(hash) < 64 {
		return errors.New("password hash must be at least 64 characters")
	}
	return nil
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateUsername(req.Username); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := validatePasswordHash(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	var existing userModel
	err := orm.Where("email = ?", req.Email).First(&existing).Error
	switch {
	case err == nil:
		respondError(w, http.StatusBadRequest, errors.New("email already used"))
		return
	case !errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	model := userModel{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: req.Password,
		CreatedAt:    time.Now().UTC(),
	}
	if err := orm.Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, model.toAPI())
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	var user userModel
	err := orm.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && user.PasswordHash != req.Password) {
		respondError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	expiresAt := time.Now().UTC().Add(a.config.UserTokenTTL)
	token := userTokenModel{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: expiresAt,
	}
	if err := orm.Create(&token).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"userId":     user.ID,
		"token":      token.Token,
		"expiration": expiresAt.Format(time.RFC3339),
	})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("missing user"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"email":    user.Email,
	})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("missing user"))
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	updates := map[string]any{}
	if req.Username != "" {
		if err := validateUsername(req.Username); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		updates["username"] = req.Username
	}
	if req.Email != "" {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if err := validateEmail(email); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		updates["email"] = email
	}
	if req.Password != "" {
		if err := validatePasswordHash(req.Password); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		updates["password_hash"] = req.Password
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no updatable fields provided"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	if err := orm.Model(&userModel{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var updated userModel
	if err := orm.First(&updated, "id = ?", user.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, updated.toAPI())
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("missing user"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	if err := orm.Where("user_id = ?", user.ID).Delete(&userTokenModel{}).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.Delete(&userModel{}, "id = ?", user.ID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
