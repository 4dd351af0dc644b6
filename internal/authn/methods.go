package authn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	MethodCurrentUser = "current_user"
	MethodAnonymous   = "anonymous"
)

// CurrentUserMethod resolves the principal of the request carried by ctx.
type CurrentUserMethod func(ctx context.Context) (*User, error)

// Methods names the current-user accessors a host exposes, so the admin
// layer can be pointed at whatever the host's authentication calls it.
type Methods map[string]CurrentUserMethod

var ErrUnknownMethod = errors.New("unknown current user method")

func DefaultMethods() Methods {
	return Methods{
		MethodCurrentUser: FromContext,
		MethodAnonymous:   func(context.Context) (*User, error) { return nil, nil },
	}
}

// FromContext returns the user stored by WithUser, or nil.
func FromContext(ctx context.Context) (*User, error) {
	u, _ := UserFromContext(ctx)
	return u, nil
}

func (m Methods) Register(name string, fn CurrentUserMethod) {
	m[strings.TrimSpace(name)] = fn
}

func (m Methods) Lookup(name string) (CurrentUserMethod, error) {
	fn, ok := m[strings.TrimSpace(name)]
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownMethod, name, strings.Join(m.names(), ", "))
	}
	return fn, nil
}

func (m Methods) names() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
