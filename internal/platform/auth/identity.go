package auth

import "context"

const RoleAdmin = "admin"

// Identity 通过认证的调用方，管理接口用 Role 区分权限
type Identity struct {
	Subject string
	Role    string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
