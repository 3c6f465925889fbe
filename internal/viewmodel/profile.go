package viewmodel

import (
	"context"
	"errors"
	"strings"

	"storefront-client/internal/apperr"
	"storefront-client/internal/client"
	"storefront-client/internal/fetch"
	"storefront-client/internal/model"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// SessionWriter is the part of the session the profile screen needs.
type SessionWriter interface {
	TokenSource
	Replace(ctx context.Context, s *model.Session) error
}

type ProfileForm struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type ProfileUpdateViewModel struct {
	store          client.StoreClient
	session        SessionWriter
	validate       *validator.Validate
	requireConfirm bool
	logger         *zap.Logger
	submit         *fetch.Tracker[*model.Session]
}

// NewProfileUpdateViewModel builds the profile screen. With requireConfirm set, a
// non-empty password must match ConfirmPassword.
func NewProfileUpdateViewModel(store client.StoreClient, session SessionWriter, requireConfirm bool, logger *zap.Logger) *ProfileUpdateViewModel {
	return &ProfileUpdateViewModel{
		store:          store,
		session:        session,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		requireConfirm: requireConfirm,
		logger:         logger,
		submit:         fetch.NewTracker[*model.Session](),
	}
}

func (vm *ProfileUpdateViewModel) State() fetch.State[*model.Session] {
	return vm.submit.State()
}

// Submit validates form locally and, if it passes, saves it and installs the
// returned session. A rejected form never reaches the network.
func (vm *ProfileUpdateViewModel) Submit(ctx context.Context, form ProfileForm) (*model.Session, error) {
	var submitErr error
	st := vm.submit.Run(ctx, func(ctx context.Context) (*model.Session, error) {
		if err := vm.check(form); err != nil {
			submitErr = err
			return nil, err
		}

		token, err := vm.session.Token()
		if err != nil {
			submitErr = err
			return nil, err
		}

		updated, err := vm.store.UpdateProfile(ctx, token, model.ProfileUpdate{
			Name:     strings.TrimSpace(form.Name),
			Email:    strings.TrimSpace(form.Email),
			Password: form.Password,
		})
		if err != nil {
			submitErr = apperr.Normalize(err)
			return nil, err
		}

		if err := vm.session.Replace(ctx, updated); err != nil {
			vm.logger.Warn("profile saved but session not persisted", zap.String("user_id", updated.ID), zap.Error(err))
		}
		return updated, nil
	})

	if submitErr != nil {
		vm.logger.Info("profile update rejected", zap.String("kind", string(apperr.Classify(submitErr))), zap.Error(submitErr))
		return nil, submitErr
	}
	if st.Status != fetch.Success {
		return nil, apperr.New(st.Kind, st.Message)
	}

	vm.logger.Info("profile updated", zap.String("user_id", st.Value.ID))
	return st.Value, nil
}

func (vm *ProfileUpdateViewModel) check(form ProfileForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)

	if err := vm.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return apperr.Wrap(apperr.KindValidation, err)
		}
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return apperr.New(apperr.KindValidation, fe.Field()+" is required")
		case "email":
			return apperr.New(apperr.KindValidation, "Email is not valid")
		}
		return apperr.New(apperr.KindValidation, fe.Error())
	}

	if vm.requireConfirm && form.Password != "" && form.Password != form.ConfirmPassword {
		return apperr.New(apperr.KindValidation, "Passwords do not match")
	}
	return nil
}
