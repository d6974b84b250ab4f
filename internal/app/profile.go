package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/soprofile/internal/adapters/repository"
	"github.com/okian/soprofile/internal/adapters/stackexchange"
	"github.com/okian/soprofile/internal/domain/model"
	"github.com/okian/soprofile/internal/render"
	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

// ProfileRequest selects a user and how their card is drawn.
type ProfileRequest struct {
	UserID       int64
	Template     string
	Theme        string
	ShowWebsite  bool
	ShowLocation bool
}

// Profile renders the profile card for req.UserID. Cached users younger than
// the user TTL are served without contacting Stack Exchange; an expired copy
// is served when the refresh fails.
func (s *Service) Profile(ctx context.Context, req ProfileRequest) (string, error) {
	if s.renderer == nil || s.store == nil || s.profiles == nil {
		return "", ErrMisconfigured
	}
	if !s.renderer.IsTemplate(req.Template) {
		metrics.RecordProfileRenderError("template")
		return "", fmt.Errorf("%w '%s'", render.ErrUnknownTemplate, req.Template)
	}
	if req.Theme == "" {
		req.Theme = render.DefaultTheme
	}
	if !s.renderer.IsTheme(req.Theme) {
		metrics.RecordProfileRenderError("theme")
		return "", fmt.Errorf("%w '%s'", render.ErrUnknownTheme, req.Theme)
	}

	user, avatar, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			metrics.RecordProfileRenderError("not_found")
		default:
			metrics.RecordProfileRenderError("upstream")
		}
		return "", err
	}

	svg, err := s.renderer.Profile(req.Template, render.ProfileParams{
		User:         user,
		Avatar:       avatar,
		Theme:        req.Theme,
		ShowWebsite:  req.ShowWebsite,
		ShowLocation: req.ShowLocation,
	})
	if err != nil {
		metrics.RecordProfileRenderError("render")
		return "", err
	}

	metrics.RecordProfileRender(req.Template, req.Theme)
	if err := s.store.RecordRender(context.WithoutCancel(ctx), model.Render{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Template:  req.Template,
		Theme:     req.Theme,
		CreatedAt: s.now(),
	}); err != nil {
		s.logger.Warn(ctx, "recording render failed", logger.Int64("user_id", user.ID), logger.Error(err))
	}
	return svg, nil
}

type cachedProfile struct {
	user   model.User
	avatar string
}

func (s *Service) loadUser(ctx context.Context, id int64) (model.User, string, error) {
	if id <= 0 {
		return model.User{}, "", ErrUserNotFound
	}

	cached, err := s.store.User(ctx, id)
	hasCached := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn(ctx, "loading cached user failed", logger.Int64("user_id", id), logger.Error(err))
	}
	if hasCached && !cached.Stale(s.now(), s.userTTL) {
		metrics.RecordUserCacheHit()
		return cached, s.storedAvatar(ctx, id), nil
	}
	metrics.RecordUserCacheMiss()

	// concurrent requests for one user share a single upstream refresh that
	// outlives any one caller
	v, err, _ := s.userFlight.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return s.refreshUser(context.WithoutCancel(ctx), id)
	})
	if err == nil {
		p := v.(cachedProfile)
		return p.user, p.avatar, nil
	}

	if errors.Is(err, stackexchange.ErrUserNotFound) {
		return model.User{}, "", ErrUserNotFound
	}
	metrics.RecordUpstreamError("stackexchange")
	if hasCached {
		s.logger.Warn(ctx, "serving stale user after refresh failure",
			logger.Int64("user_id", id), logger.Error(err))
		return cached, s.storedAvatar(ctx, id), nil
	}
	return model.User{}, "", fmt.Errorf("%w: %v", ErrUpstream, err)
}

func (s *Service) refreshUser(ctx context.Context, id int64) (cachedProfile, error) {
	u, err := s.profiles.User(ctx, id)
	if err != nil {
		return cachedProfile{}, err
	}
	u.ID = id
	u.UpdatedAt = s.now()
	if err := s.store.UpsertUser(ctx, u); err != nil {
		s.logger.Warn(ctx, "caching user failed", logger.Int64("user_id", id), logger.Error(err))
	}

	p := cachedProfile{user: u}
	if u.AvatarLink == "" {
		return p, nil
	}
	avatar, err := s.profiles.Avatar(ctx, u.AvatarLink)
	if err != nil {
		metrics.RecordUpstreamError("avatar")
		s.logger.Warn(ctx, "fetching avatar failed", logger.Int64("user_id", id), logger.Error(err))
		p.avatar = s.storedAvatar(ctx, id)
		return p, nil
	}
	p.avatar = avatar
	if err := s.store.SaveAvatar(ctx, model.Avatar{UserID: id, DataURI: avatar}); err != nil {
		s.logger.Warn(ctx, "caching avatar failed", logger.Int64("user_id", id), logger.Error(err))
	}
	return p, nil
}

func (s *Service) storedAvatar(ctx context.Context, id int64) string {
	a, err := s.store.Avatar(ctx, id)
	if err != nil {
		return ""
	}
	return a.DataURI
}

// ErrorCard renders err as an SVG error card.
func (s *Service) ErrorCard(err error) string {
	return s.renderer.Error(err.Error())
}

// Analytics summarizes renders, cached users and recent league activity.
func (s *Service) Analytics(ctx context.Context) (model.Analytics, error) {
	a, err := s.store.Analytics(ctx, s.recentLogs)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	return a, nil
}

// Templates lists the card templates.
func (s *Service) Templates() []string { return s.renderer.Templates() }

// Themes lists the card themes.
func (s *Service) Themes() []string { return s.renderer.Themes() }
