// Package api exposes the HTTP surface for notification producers and
// for operational probes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"questnotify/internal/membership"
	"questnotify/internal/notification"
	"questnotify/internal/realtime"
	logx "questnotify/pkg/logx"
)

type Handler struct {
	disp  *realtime.Dispatcher
	reg   *realtime.Registry
	stats *Collector
	log   logx.Logger
}

func NewHandler(disp *realtime.Dispatcher, reg *realtime.Registry, stats *Collector, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{disp: disp, reg: reg, stats: stats, log: log}
}

// Routes mounts the API on the given mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/notify", h.handleNotify)
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

// notifyRequest targets exactly one of user_id, school_id, clan_id or
// all. exclude_user_id is honored for group targets only.
type notifyRequest struct {
	Kind    string         `json:"kind"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`

	UserID        int64 `json:"user_id,omitempty"`
	SchoolID      int64 `json:"school_id,omitempty"`
	ClanID        int64 `json:"clan_id,omitempty"`
	All           bool  `json:"all,omitempty"`
	ExcludeUserID int64 `json:"exclude_user_id,omitempty"`
}

func (req *notifyRequest) targetCount() int {
	n := 0
	if req.UserID != 0 {
		n++
	}
	if req.SchoolID != 0 {
		n++
	}
	if req.ClanID != 0 {
		n++
	}
	if req.All {
		n++
	}
	return n
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.targetCount() != 1 {
		writeError(w, http.StatusBadRequest, "exactly one of user_id, school_id, clan_id or all must be set")
		return
	}
	kind, err := notification.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := notification.Message{
		Kind:  kind,
		Title: req.Title,
		Body:  req.Message,
		Data:  req.Data,
	}

	ctx := r.Context()
	var delivered int
	switch {
	case req.UserID != 0:
		delivered, err = h.disp.SendToUser(ctx, req.UserID, msg)
	case req.All:
		delivered, err = h.disp.SendToAll(ctx, msg)
	default:
		aud := realtime.SchoolAudience(req.SchoolID)
		if req.ClanID != 0 {
			aud = realtime.ClanAudience(req.ClanID)
		}
		aud.Exclude = req.ExcludeUserID
		delivered, err = h.disp.SendToAudience(ctx, aud, msg)
	}
	if err != nil {
		if errors.Is(err, membership.ErrSchoolNotFound) || errors.Is(err, membership.ErrClanNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("notify failed", logx.String("kind", kind.String()), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "delivery failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	users, sessions := h.reg.Stats()
	resp := map[string]any{
		"users":    users,
		"sessions": sessions,
	}
	if h.stats != nil {
		resp["counters"] = h.stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
