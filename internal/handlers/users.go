package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/db"
)

/* UserHandlers serves operator provisioning and operator token lifecycle */
type UserHandlers struct {
	registry      *auth.Registry
	defaultBudget float64
	fail          auth.ErrorWriter
}

/* NewUserHandlers creates new user handlers */
func NewUserHandlers(registry *auth.Registry, defaultBudget float64, fail auth.ErrorWriter) *UserHandlers {
	return &UserHandlers{registry: registry, defaultBudget: defaultBudget, fail: fail}
}

type createUserRequest struct {
	Email         string   `json:"email"`
	MonthlyBudget *float64 `json:"monthlyBudget"`
}

type issueTokenRequest struct {
	Email string `json:"email"`
}

/* UserTokenResponse carries a freshly issued operator token; it is shown once */
type UserTokenResponse struct {
	UserID        uuid.UUID  `json:"userId"`
	Email         string     `json:"email"`
	WorkspaceID   uuid.UUID  `json:"workspaceId"`
	MonthlyBudget float64    `json:"monthlyBudget"`
	UserToken     string     `json:"userToken"`
	IssuedAt      *time.Time `json:"issuedAt"`
	RotatedAt     *time.Time `json:"rotatedAt"`
}

func newUserTokenResponse(user *db.User, raw string) UserTokenResponse {
	return UserTokenResponse{
		UserID:        user.ID,
		Email:         user.Email,
		WorkspaceID:   user.WorkspaceID,
		MonthlyBudget: user.MonthlyBudget,
		UserToken:     raw,
		IssuedAt:      user.APITokenIssuedAt,
		RotatedAt:     user.APITokenLastRotatedAt,
	}
}

/* CreateUser provisions an operator in a new workspace (control plane only) */
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	budget := h.defaultBudget
	if req.MonthlyBudget != nil {
		budget = *req.MonthlyBudget
	}
	user, raw, err := h.registry.CreateUser(r.Context(), req.Email, budget)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, newUserTokenResponse(user, raw), http.StatusCreated)
}

/* IssueToken issues a token for an existing operator (control plane only) */
func (h *UserHandlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, raw, err := h.registry.IssueUserToken(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, newUserTokenResponse(user, raw), http.StatusCreated)
}

/* RotateToken replaces the calling operator's token */
func (h *UserHandlers) RotateToken(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, raw, err := h.registry.RotateUserToken(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteSuccess(w, newUserTokenResponse(updated, raw), http.StatusOK)
}

/* RevokeToken revokes the calling operator's token */
func (h *UserHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.registry.RevokeUserToken(r.Context(), user); err != nil {
		h.fail(w, r, err)
		return
	}
	WriteNoContent(w)
}
