package advice

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/auth"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Handler provides HTTP handlers for the review chain
type Handler struct {
	svc *Service
}

// NewHandler creates an advice handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the advice routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/{caseID}", func(r chi.Router) {
		r.Get("/", h.Steps)
		r.Post("/", h.Require)
		r.Post("/submit", h.Submit)
	})

	return r
}

type SubmitRequest struct {
	ReviewerRole    authz.ReviewerRole `json:"reviewer_role"`
	Commentary      string             `json:"commentary"`
	Advice          string             `json:"advice"`
	Recommendations string             `json:"recommendations"`
}

func (h *Handler) Require(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	caseID, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return
	}

	steps, err := h.svc.Require(r.Context(), user.ID, authz.Role(user.Role), caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"data":  steps,
		"total": len(steps),
	})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	caseID, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	step, err := h.svc.Submit(r.Context(), user.ID, authz.Role(user.Role), req.ReviewerRole, caseID, Submission{
		Commentary:      req.Commentary,
		Advice:          req.Advice,
		Recommendations: req.Recommendations,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, step)
}

func (h *Handler) Steps(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	caseID, err := types.ParseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid case ID"))
		return
	}

	steps, err := h.svc.Steps(r.Context(), user.ID, authz.Role(user.Role), caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  steps,
		"total": len(steps),
	})
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
