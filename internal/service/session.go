package service

import (
	"context"
	"log/slog"

	"github.com/mmcdole/reel/internal/cache"
	"github.com/mmcdole/reel/internal/domain"
)

// SessionService manages identity operations. Changing identity makes every
// cached entry belong to the wrong context, so each one clears the cache.
type SessionService struct {
	source domain.DataSource
	engine *cache.Engine
	logger *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(source domain.DataSource, engine *cache.Engine, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{source: source, engine: engine, logger: logger}
}

// Login starts a session with the stored credentials
func (s *SessionService) Login(ctx context.Context) error {
	return s.identityChange(ctx, domain.Request{Kind: domain.RequestPost, Component: "login"})
}

// Logout ends the current session
func (s *SessionService) Logout(ctx context.Context) error {
	return s.identityChange(ctx, domain.Request{Kind: domain.RequestPost, Component: "logout"})
}

// ActivateProfile switches to another profile of the account
func (s *SessionService) ActivateProfile(ctx context.Context, profileID string) error {
	return s.identityChange(ctx, domain.Request{
		Kind:      domain.RequestPost,
		Component: "activate_profile",
		Params:    map[string]any{"guid": profileID},
	})
}

// Profiles lists the account's profiles. Profiles are never cached.
func (s *SessionService) Profiles(ctx context.Context) ([]domain.Profile, error) {
	return fetch[[]domain.Profile](ctx, s.source, domain.Request{
		Kind:      domain.RequestGet,
		Component: "profiles",
	})
}

func (s *SessionService) identityChange(ctx context.Context, req domain.Request) error {
	if _, err := s.source.Fetch(ctx, req); err != nil {
		return err
	}
	s.logger.Info("identity changed, clearing cache", "operation", req.Component)
	s.engine.InvalidateAll()
	return nil
}
