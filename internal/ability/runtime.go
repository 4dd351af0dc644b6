package ability

import (
	"fmt"
	"sync"

	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/policy"
)

type PolicySource interface {
	Current() (*policy.Document, bool)
}

// StaticSource serves a fixed document.
type StaticSource struct {
	Doc *policy.Document
}

func (s StaticSource) Current() (*policy.Document, bool) { return s.Doc, s.Doc != nil }

// Provider builds policy abilities from a PolicySource and only recompiles
// when the source hands out a different document.
type Provider struct {
	src PolicySource

	mu       sync.RWMutex
	lastDoc  *policy.Document
	compiled *CompiledPolicy
}

func NewProvider(src PolicySource) *Provider {
	return &Provider{src: src}
}

func (p *Provider) Compiled() (*CompiledPolicy, error) {
	doc, ok := p.src.Current()
	if !ok || doc == nil {
		return nil, fmt.Errorf("no policy available")
	}

	p.mu.RLock()
	if doc == p.lastDoc && p.compiled != nil {
		cp := p.compiled
		p.mu.RUnlock()
		return cp, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	//double-check
	if doc != p.lastDoc || p.compiled == nil {
		cp, err := Compile(doc)
		if err != nil {
			return nil, err
		}
		p.lastDoc = doc
		p.compiled = cp
	}
	return p.compiled, nil
}

// New is a Factory.
func (p *Provider) New(u *authn.User) (Ability, error) {
	cp, err := p.Compiled()
	if err != nil {
		return nil, Misconfigured(err)
	}
	return cp.AbilityFor(u), nil
}
