package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/logging"
)

// Builder holds the app-wide settings needed to build an Adapter per request.
type Builder struct {
	Abilities ability.Registry
	// AbilityClass defaults to ability.DefaultName.
	AbilityClass string
	Methods      authn.Methods
	// CurrentUserMethod defaults to authn.MethodCurrentUser.
	CurrentUserMethod string
	Logger            *slog.Logger
}

func (b *Builder) Adapter(ctx context.Context) (*Adapter, error) {
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}

	rc := NewRequestContext(ctx, b.Methods, b.CurrentUserMethod)
	f, err := b.Abilities.Resolve(b.AbilityClass)
	if err != nil {
		logging.Error(log, "ability class not resolvable", err)
		return nil, err
	}

	ad, err := New(rc, f)
	if err != nil {
		if errors.Is(err, ability.ErrAccessDenied) {
			u, _ := rc.CurrentUser()
			log.Info("admin access denied", "user", userID(u))
		} else {
			logging.Error(log, "admin authorization failed", err)
		}
		return nil, err
	}
	return ad, nil
}

func userID(u *authn.User) string {
	if u == nil {
		return "anonymous"
	}
	return u.Kind + ":" + u.ID
}

type ctxKey int

const adapterKey ctxKey = iota

func WithAdapter(ctx context.Context, ad *Adapter) context.Context {
	return context.WithValue(ctx, adapterKey, ad)
}

func AdapterFromContext(ctx context.Context) (*Adapter, bool) {
	ad, ok := ctx.Value(adapterKey).(*Adapter)
	return ad, ok && ad != nil
}
