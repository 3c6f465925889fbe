package service

import (
	"context"

	"storefront-client/internal/model"
	"storefront-client/internal/session"
	"storefront-client/internal/viewmodel"
)

type UserService interface {
	Current() *model.Session
	SignIn(ctx context.Context, s *model.Session) error
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, form viewmodel.ProfileForm) (*model.Session, error)
}

type userServiceImpl struct {
	session *session.Context
	profile *viewmodel.ProfileUpdateViewModel
}

func NewUserService(
	session *session.Context,
	profile *viewmodel.ProfileUpdateViewModel,
) UserService {
	return &userServiceImpl{
		session: session,
		profile: profile,
	}
}

func (s *userServiceImpl) Current() *model.Session {
	return s.session.Current()
}

func (s *userServiceImpl) SignIn(ctx context.Context, sess *model.Session) error {
	return s.session.SignIn(ctx, sess)
}

func (s *userServiceImpl) SignOut(ctx context.Context) error {
	return s.session.SignOut(ctx)
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, form viewmodel.ProfileForm) (*model.Session, error) {
	return s.profile.Submit(ctx, form)
}
