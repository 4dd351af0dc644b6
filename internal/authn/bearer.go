package authn

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

var errNoTokens = errors.New("no tokens")

// BearerKind is the User.Kind of bearer-authenticated users.
const BearerKind = "bearer"

// Bearer authenticates "Authorization: Bearer <token>" against a token file.
//
// The file holds either a single token, which authenticates the user "admin",
// or one user per line:
//
//	alice=a-token team=blue
//	bob:b-token
//
// Fields after the token become user attributes, available to policy
// conditions as $user.<name>. Blank lines and lines starting with # are skipped.
type Bearer struct {
	entries []bearerEntry
}

type bearerEntry struct {
	token []byte
	user  User
}

func NewBearerFromFile(path string) (*Bearer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := parseTokenFile(string(b))
	if err != nil {
		return nil, fmt.Errorf("token file %s: %w", path, err)
	}
	return &Bearer{entries: entries}, nil
}

func (a *Bearer) Authenticate(r *http.Request) (*User, error) {
	scheme, got, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || scheme != "Bearer" {
		return nil, ErrUnauthenticated
	}
	tok := []byte(strings.TrimSpace(got))
	if len(tok) == 0 {
		return nil, ErrUnauthenticated
	}

	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(tok, e.token) == 1 {
			return e.user.clone(), nil
		}
	}
	return nil, ErrUnauthenticated
}

func (u User) clone() *User {
	if u.Attrs != nil {
		attrs := make(map[string]any, len(u.Attrs))
		for k, v := range u.Attrs {
			attrs[k] = v
		}
		u.Attrs = attrs
	}
	return &u
}

func parseTokenFile(raw string) ([]bearerEntry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errNoTokens
	}
	if !strings.ContainsAny(raw, "=:\n \t") {
		return []bearerEntry{{token: []byte(raw), user: User{Kind: BearerKind, ID: "admin"}}}, nil
	}

	var out []bearerEntry
	seen := map[string]bool{}
	for n, ln := range strings.Split(raw, "\n") {
		fields := strings.Fields(ln)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		i := strings.IndexAny(fields[0], "=:")
		if i <= 0 || i == len(fields[0])-1 {
			return nil, fmt.Errorf("line %d: want <user>=<token>", n+1)
		}
		id, token := fields[0][:i], fields[0][i+1:]
		if seen[token] {
			return nil, fmt.Errorf("line %d: duplicate token", n+1)
		}
		seen[token] = true

		u := User{Kind: BearerKind, ID: id}
		for _, f := range fields[1:] {
			k, v, ok := strings.Cut(f, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("line %d: want attribute <name>=<value>, got %q", n+1, f)
			}
			if u.Attrs == nil {
				u.Attrs = map[string]any{}
			}
			u.Attrs[k] = v
		}
		out = append(out, bearerEntry{token: []byte(token), user: u})
	}
	if len(out) == 0 {
		return nil, errNoTokens
	}
	return out, nil
}
