package authn

import (
	"context"
	"errors"
	"net/http"
)

// User is the authenticated principal of a request. A nil *User means anonymous.
type User struct {
	Kind  string
	ID    string
	Attrs map[string]any
}

// Attr resolves "id", "kind" or a custom attribute.
func (u *User) Attr(name string) (any, bool) {
	if u == nil {
		return nil, false
	}
	switch name {
	case "id":
		return u.ID, true
	case "kind":
		return u.Kind, true
	}
	v, ok := u.Attrs[name]
	return v, ok
}

type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey int

const userKey ctxKey = iota

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok
}
