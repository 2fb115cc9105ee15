package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/outbox/payloads"
	redisclient "github.com/stmary/giftshop-backend/pkg/redis"
	"github.com/stmary/giftshop-backend/pkg/security"
	"github.com/stmary/giftshop-backend/pkg/validate"
)

const invalidResetTokenMessage = "reset link is invalid or has expired"

// RequestPasswordReset stores a single-use token and queues the reset email.
// Unknown or inactive emails succeed silently so accounts cannot be probed.
func (s *service) RequestPasswordReset(ctx context.Context, req ForgotPasswordRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !user.IsActive {
		return nil
	}

	token, err := security.NewResetToken()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}
	ttl := s.passwordCfg.ResetTokenTTL
	key := s.resetTokens.PasswordResetKey(token)
	if err := s.resetTokens.Set(ctx, key, user.ID.String(), ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
	}

	now := s.now().UTC()
	event := outbox.DomainEvent{
		EventType:     enums.EventPasswordResetRequested,
		AggregateType: enums.AggregateUser,
		AggregateID:   user.ID,
		Actor:         &outbox.ActorRef{UserID: user.ID, Role: user.Role},
		OccurredAt:    now,
		Data: payloads.PasswordResetRequestedEvent{
			UserID:    user.ID,
			Email:     user.Email,
			FullName:  user.FullName,
			Token:     token,
			ExpiresAt: now.Add(ttl),
		},
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	}); err != nil {
		_ = s.resetTokens.Del(ctx, key)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue reset email")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "password reset requested")
	return nil
}

// ResetPassword consumes the token and replaces the password hash.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if err := validate.Struct(req); err != nil {
		return err
	}
	raw, err := s.resetTokens.GetDel(ctx, s.resetTokens.PasswordResetKey(req.Token))
	if err != nil {
		if redisclient.IsNil(err) {
			return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reset token")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, invalidResetTokenMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "password reset completed")
	return nil
}
