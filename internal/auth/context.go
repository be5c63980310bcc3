package auth

import (
	"context"

	"github.com/gorber/veckopeng/internal/model"
)

type contextKey struct{}

// Actor identifies the family member a request acts as. It is resolved by
// the family-key middleware; the core trusts it, per the household model.
type Actor struct {
	MemberID string
	Role     model.Role
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

func MemberID(ctx context.Context) string {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return a.MemberID
}

func IsParent(ctx context.Context) bool {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return false
	}
	return a.Role == model.RoleParent
}
