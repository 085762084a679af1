package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"go-verse-auth/internal/model"
	"go-verse-auth/internal/repository"
)

// IdentityReconciler maps a verified external identity onto exactly one
// local user, creating it on first sight.
//
// The lookup is check-then-insert. Two first logins for the same identity
// racing each other can both miss the lookup; the store's unique index on
// (oauth_provider, oauth_id) rejects the loser, which is reported as
// model.ErrIdentityConflict rather than retried.
type IdentityReconciler struct {
	users repository.UserStore
}

func NewIdentityReconciler(users repository.UserStore) *IdentityReconciler {
	return &IdentityReconciler{users: users}
}

func (r *IdentityReconciler) GetOrCreate(ctx context.Context, identity model.ExternalIdentity) (user model.User, err error) {
	ctx, span := tracer.Start(ctx, "IdentityReconciler.GetOrCreate")
	span.SetAttributes(attribute.String("auth.provider", string(identity.Provider)))
	defer func() { endSpan(span, err) }()

	if !identity.Provider.Valid() || identity.SubjectID == "" || identity.Email == "" {
		return model.User{}, fmt.Errorf("%w: incomplete external identity", model.ErrVerificationFailed)
	}

	existing, err := r.users.FindByOAuthID(ctx, identity.Provider, identity.SubjectID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, storeFailure(err)
	}

	created, err := r.users.Insert(ctx, model.User{
		Username:      model.OAuthUsername(identity.Provider, identity.SubjectID),
		Email:         identity.Email,
		OAuthProvider: identity.Provider,
		OAuthID:       identity.SubjectID,
	})
	if err != nil {
		var dup *model.DuplicateError
		if errors.As(err, &dup) {
			return model.User{}, fmt.Errorf("%w: %s already in use", model.ErrIdentityConflict, dup.Field)
		}
		return model.User{}, storeFailure(err)
	}

	slog.InfoContext(ctx, "oauth account created", "provider", string(identity.Provider), "username", created.Username)
	return created, nil
}
