package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// LeagueHandler handles tag league requests.
type LeagueHandler struct {
	deps         LeagueDependencies
	defaultLimit int
}

// NewLeagueHandler creates a new league handler.
func NewLeagueHandler(deps LeagueDependencies, defaultLimit int) *LeagueHandler {
	return &LeagueHandler{deps: deps, defaultLimit: defaultLimit}
}

type leagueAck struct {
	Status    string `json:"status"`
	Tag       string `json:"tag"`
	RequestID string `json:"requestId,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// HandleRequest handles POST /league/{tag}: 202 when queued, 200 when the
// tag is already queued or running, 429 on backpressure.
func (h *LeagueHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	const op = "api.request_league"
	req, accepted, err := h.deps.RequestLeague(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, leagueAck{Status: "duplicate", Tag: req.Tag, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, leagueAck{Status: "accepted", Tag: req.Tag, RequestID: req.RequestID})
}

// HandleStop handles DELETE /league/{tag}.
func (h *LeagueHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	const op = "api.stop_league"
	tag := mux.Vars(r)["tag"]
	if err := h.deps.StopLeague(r.Context(), tag); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, leagueAck{Status: "stopping", Tag: tag})
}

// HandleTopUsers handles GET /league/{tag}?limit=N.
func (h *LeagueHandler) HandleTopUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_league"
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		limit = n
	}
	entries, err := h.deps.TopUsers(r.Context(), mux.Vars(r)["tag"], limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandlePercentile handles GET /league/{tag}/percentile?score=S.
func (h *LeagueHandler) HandlePercentile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_percentile"
	score, err := strconv.Atoi(r.URL.Query().Get("score"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.Percentile(r.Context(), mux.Vars(r)["tag"], score)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUserRank handles GET /league/{tag}/users/{id}.
func (h *LeagueHandler) HandleUserRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user_rank"
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rank, err := h.deps.UserRank(r.Context(), vars["tag"], id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}
