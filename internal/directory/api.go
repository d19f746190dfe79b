package directory

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/auth"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Handler provides HTTP handlers for the user register
type Handler struct {
	repo      Repository
	evaluator *authz.Evaluator
}

// NewHandler creates a directory handler
func NewHandler(repo Repository, evaluator *authz.Evaluator) *Handler {
	return &Handler{repo: repo, evaluator: evaluator}
}

// Routes registers the user register routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{userID}", h.Get)
	r.Put("/{userID}", h.Update)
	r.Delete("/{userID}", h.Deactivate)

	return r
}

type CreateUserRequest struct {
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Role        authz.Role `json:"role"`
}

type UpdateUserRequest struct {
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Role        authz.Role `json:"role"`
	Active      *bool      `json:"active"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, authz.ActionCreate) == nil {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.DisplayName == "" || req.Email == "" {
		writeError(w, errors.Validation("display_name and email are required", nil))
		return
	}
	if !authz.ValidRole(req.Role) {
		writeError(w, errors.BadRequest("unknown role"))
		return
	}

	u := &User{
		ID:          types.NewID(),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		Active:      true,
	}
	if err := h.repo.Create(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, authz.ActionView) == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	u, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, authz.ActionEdit) == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	u, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.DisplayName != "" {
		u.DisplayName = req.DisplayName
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if req.Role != "" {
		if !authz.ValidRole(req.Role) {
			writeError(w, errors.BadRequest("unknown role"))
			return
		}
		u.Role = req.Role
	}
	if req.Active != nil {
		u.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, authz.ActionDelete) == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.authorize(w, r, authz.ActionView) == nil {
		return
	}

	filter := ListFilter{
		Role:       authz.Role(r.URL.Query().Get("role")),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Search:     r.URL.Query().Get("search"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		filter.Offset = offset
	}

	users, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  users,
		"total": total,
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) *auth.User {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil
	}

	decision, err := h.evaluator.Authorize(r.Context(), user.ID, authz.Role(user.Role), authz.ModuleUsers, action)
	if err != nil {
		writeError(w, err)
		return nil
	}
	if !decision.Allowed {
		writeError(w, errors.Unauthorized(decision.Reason))
		return nil
	}

	return user
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
