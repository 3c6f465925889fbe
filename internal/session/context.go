// Package session holds the signed-in user shared by every screen.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-client/internal/apperr"
	"storefront-client/internal/model"
	"storefront-client/internal/repository"

	"go.uber.org/zap"
)

var ErrNoSession = apperr.New(apperr.KindAuth, "Please sign in to continue")

// Context is the current Session plus its durable copy. Writers hold writeMu
// across the swap and the store write, so the stored row always matches Current.
type Context struct {
	writeMu sync.Mutex

	mu      sync.RWMutex
	current *model.Session

	repo   repository.SessionRepository
	key    string
	logger *zap.Logger
}

func NewContext(repo repository.SessionRepository, key string, logger *zap.Logger) *Context {
	return &Context{
		repo:   repo,
		key:    key,
		logger: logger,
	}
}

// Current returns a copy of the session, or nil when signed out.
func (c *Context) Current() *model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return nil
	}
	s := *c.current
	return &s
}

func (c *Context) Token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil || c.current.Token == "" {
		return "", ErrNoSession
	}
	return c.current.Token, nil
}

func (c *Context) SignIn(ctx context.Context, s *model.Session) error {
	if s == nil || s.Token == "" {
		return apperr.New(apperr.KindValidation, "session token is required")
	}
	return c.swap(ctx, s)
}

// Replace installs the session returned by a profile update.
func (c *Context) Replace(ctx context.Context, s *model.Session) error {
	if s == nil {
		return apperr.New(apperr.KindValidation, "session is required")
	}
	return c.swap(ctx, s)
}

func (c *Context) SignOut(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if err := c.repo.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("delete stored session: %w", err)
	}
	c.logger.Info("signed out")
	return nil
}

// Rehydrate restores the stored session at startup. A missing row is not an error.
func (c *Context) Rehydrate(ctx context.Context) error {
	s, err := c.repo.Load(ctx, c.key)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("load stored session: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	c.logger.Info("session restored", zap.String("user_id", s.ID))
	return nil
}

func (c *Context) swap(ctx context.Context, s *model.Session) error {
	next := *s

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.current = &next
	c.mu.Unlock()

	if err := c.repo.Save(ctx, c.key, &next); err != nil {
		c.logger.Warn("failed to persist session", zap.String("user_id", next.ID), zap.Error(err))
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
