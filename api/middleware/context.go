package middleware

import "context"

// identity is what Auth learned about the caller.
type identity struct {
	userID string
	role   string
}

type identityKey struct{}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func withIdentity(ctx context.Context, id identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// UserIDFromContext returns "" for unauthenticated requests.
func UserIDFromContext(ctx context.Context) string { return identityFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return identityFrom(ctx).role }

// WithUserID sets the caller's user id, keeping any role already present.
func WithUserID(ctx context.Context, userID string) context.Context {
	id := identityFrom(ctx)
	id.userID = userID
	return withIdentity(ctx, id)
}

// WithRole sets the caller's role, keeping any user id already present.
func WithRole(ctx context.Context, role string) context.Context {
	id := identityFrom(ctx)
	id.role = role
	return withIdentity(ctx, id)
}
