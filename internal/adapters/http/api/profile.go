package api

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	service "github.com/okian/soprofile/internal/app"
	"github.com/okian/soprofile/internal/render"
	"github.com/okian/soprofile/pkg/logger"
)

// ProfileHandler serves profile cards. Every response is an SVG: failures are
// drawn as an error card with status 200 so that embedding pages never show a
// broken image.
type ProfileHandler struct {
	deps         ProfileDependencies
	cacheControl string
	logger       logger.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies, cachePeriod time.Duration, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		deps:         deps,
		cacheControl: fmt.Sprintf("public, max-age=%d", int(cachePeriod.Seconds())),
		logger:       log,
	}
}

// HandleProfile handles GET /{template}/{id}?theme=&website=&location=.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", h.cacheControl)

	req, err := parseProfileRequest(r, h.deps.Templates(), h.deps.Themes())
	if err == nil {
		var svg string
		if svg, err = h.deps.Profile(r.Context(), req); err == nil {
			_, _ = w.Write([]byte(svg))
			return
		}
	}

	h.logger.Debug(r.Context(), "serving error card", logger.String("path", r.URL.Path), logger.Error(Wrap(op, err)))
	_, _ = w.Write([]byte(h.deps.ErrorCard(err)))
}

func parseProfileRequest(r *http.Request, templates, themes []string) (service.ProfileRequest, error) {
	vars := mux.Vars(r)
	q := r.URL.Query()

	req := service.ProfileRequest{Template: vars["template"], Theme: q.Get("theme")}
	if req.Theme == "" {
		req.Theme = render.DefaultTheme
	}
	if !slices.Contains(templates, req.Template) {
		return req, &paramError{fmt.Sprintf("Invalid template '%s'", req.Template)}
	}
	if !slices.Contains(themes, req.Theme) {
		return req, &paramError{fmt.Sprintf("Invalid theme '%s'", req.Theme)}
	}

	var err error
	if req.ShowWebsite, err = parseFlag(q, "website"); err != nil {
		return req, err
	}
	if req.ShowLocation, err = parseFlag(q, "location"); err != nil {
		return req, err
	}

	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil || id <= 0 {
		return req, service.ErrUserNotFound
	}
	req.UserID = id
	return req, nil
}

// parseFlag reads a "true"/"false" query flag; absent means true.
func parseFlag(q url.Values, name string) (bool, error) {
	switch v := q.Get(name); v {
	case "", "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, &paramError{fmt.Sprintf("Invalid value '%s' for the %s params", v, name)}
	}
}

// paramError is a user-facing query error printed verbatim on the card.
type paramError struct{ msg string }

func (e *paramError) Error() string        { return e.msg }
func (e *paramError) Is(target error) bool { return target == ErrBadRequest }
