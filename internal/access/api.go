package access

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

// Handler provides HTTP handlers for group and grant administration
type Handler struct {
	repo      *Repository
	evaluator *authz.Evaluator
	source    *GrantSource
}

// NewHandler creates a new access handler
func NewHandler(repo *Repository, evaluator *authz.Evaluator, source *GrantSource) *Handler {
	return &Handler{repo: repo, evaluator: evaluator, source: source}
}

// Routes registers the access-control routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/modules", h.ListModules)
	r.Post("/modules", h.CreateModule)

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.ListGroups)
		r.Post("/", h.CreateGroup)

		r.Route("/{groupID}", func(r chi.Router) {
			r.Get("/", h.GetGroup)
			r.Put("/", h.UpdateGroup)
			r.Delete("/", h.DeleteGroup)

			r.Get("/members", h.ListMembers)
			r.Post("/members", h.AddMember)
			r.Delete("/members/{userID}", h.RemoveMember)

			r.Get("/grants", h.ListGrants)
			r.Put("/grants", h.SetGrant)
		})
	})

	return r
}

// --- Request types ---

type CreateGroupRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type AddMemberRequest struct {
	UserID types.ID `json:"user_id"`
}

type CreateModuleRequest struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	ParentID     *types.ID `json:"parent_id,omitempty"`
	DisplayOrder int       `json:"display_order"`
}

type SetGrantRequest struct {
	ModuleCode string `json:"module_code"`
	CanCreate  bool   `json:"can_create"`
	CanView    bool   `json:"can_view"`
	CanUpdate  bool   `json:"can_update"`
	CanDelete  bool   `json:"can_delete"`
	CanAdmin   bool   `json:"can_admin"`
}

// --- Handlers ---

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionView)
	if user == nil {
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	groups, total, err := h.repo.ListGroups(r.Context(), activeOnly, r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  groups,
		"total": total,
	})
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionCreate)
	if user == nil {
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Code == "" || req.Name == "" {
		writeError(w, errors.Validation("code and name are required", nil))
		return
	}

	group := &Group{
		ID:          types.NewID(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
		Version:     1,
	}

	if err := h.repo.CreateGroup(r.Context(), group); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionView)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	group, err := h.repo.GetGroup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionEdit)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	group, err := h.repo.GetGroup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.Active != nil {
		group.Active = *req.Active
	}

	if err := h.repo.UpdateGroup(r.Context(), group); err != nil {
		writeError(w, err)
		return
	}

	// Deactivating a group changes effective access immediately
	h.source.Invalidate()

	writeJSON(w, http.StatusOK, group)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionDelete)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	if err := h.repo.DeleteGroup(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.source.Invalidate()

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionView)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	members, err := h.repo.ListMembers(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  members,
		"total": len(members),
	})
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionEdit)
	if user == nil {
		return
	}

	groupID, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.UserID.IsZero() {
		writeError(w, errors.Validation("user_id is required", nil))
		return
	}

	m := &Membership{
		GroupID: groupID,
		UserID:  req.UserID,
		Active:  true,
		AddedBy: user.ID,
	}

	if err := h.repo.AddMember(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}

	h.source.Invalidate()

	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionEdit)
	if user == nil {
		return
	}

	groupID, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if err := h.repo.RemoveMember(r.Context(), groupID, userID); err != nil {
		writeError(w, err)
		return
	}

	h.source.Invalidate()

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionView)
	if user == nil {
		return
	}

	modules, err := h.repo.ListModules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  modules,
		"total": len(modules),
	})
}

func (h *Handler) CreateModule(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionAdmin)
	if user == nil {
		return
	}

	var req CreateModuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, errors.Validation("code and name are required", nil))
		return
	}

	m := &Module{
		ID:           types.NewID(),
		Code:         req.Code,
		Name:         req.Name,
		ParentID:     req.ParentID,
		DisplayOrder: req.DisplayOrder,
	}

	if err := h.repo.CreateModule(r.Context(), m); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionView)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	grants, err := h.repo.ListGrants(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  grants,
		"total": len(grants),
	})
}

func (h *Handler) SetGrant(w http.ResponseWriter, r *http.Request) {
	user := h.authorize(w, r, authz.ActionAdmin)
	if user == nil {
		return
	}

	groupID, err := types.ParseID(chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid group ID"))
		return
	}

	var req SetGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.ModuleCode == "" {
		writeError(w, errors.Validation("module_code is required", nil))
		return
	}

	module, err := h.repo.GetModuleByCode(r.Context(), req.ModuleCode)
	if err != nil {
		writeError(w, err)
		return
	}

	grant := &ModuleGrant{
		GroupID:   groupID,
		ModuleID:  module.ID,
		Module:    module.Code,
		CanCreate: req.CanCreate,
		CanView:   req.CanView,
		CanUpdate: req.CanUpdate,
		CanDelete: req.CanDelete,
		CanAdmin:  req.CanAdmin,
		GrantedBy: user.ID,
	}

	if err := h.repo.SetGrant(r.Context(), grant); err != nil {
		writeError(w, err)
		return
	}

	h.source.Invalidate()

	writeJSON(w, http.StatusOK, grant)
}

// --- Helpers ---

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) *auth.User {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil
	}

	decision, err := h.evaluator.Authorize(r.Context(), user.ID, authz.Role(user.Role), authz.ModuleGroups, action)
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
