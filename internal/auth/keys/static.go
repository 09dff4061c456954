package keys

import (
	"context"
	"sync"
	"time"
)

// Static is an in-memory Resolver. It is used by tests and by deployments
// that inject secrets through the environment.
type Static struct {
	mu      sync.RWMutex
	current string
	secrets map[string]Secret
	b2b     map[string]B2BKey
	now     func() time.Time
}

var _ Resolver = (*Static)(nil)

// NewStatic returns a resolver whose signing secret is current.
func NewStatic(current Secret) *Static {
	s := &Static{
		secrets: make(map[string]Secret),
		b2b:     make(map[string]B2BKey),
		now:     time.Now,
	}
	if current.Kid != "" {
		s.Rotate(current)
	}
	return s
}

// AddSecret registers a verification-only secret, such as one rotated out.
// Empty secrets are ignored.
func (s *Static) AddSecret(sec Secret) {
	if len(sec.Secret) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[sec.Kid] = sec
}

// Rotate makes sec the signing secret. The previous one stays verifiable.
// An empty secret leaves the resolver unchanged.
func (s *Static) Rotate(sec Secret) {
	if len(sec.Secret) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[sec.Kid] = sec
	s.current = sec.Kid
}

func (s *Static) AddB2BKey(k B2BKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b2b[k.Kid] = k
}

func (s *Static) AccessSecret(_ context.Context, kid string) (Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.secrets[kid]
	if !ok || len(sec.Secret) == 0 {
		return Secret{}, ErrNoKey
	}
	return sec, nil
}

func (s *Static) CurrentSecret(ctx context.Context) (Secret, error) {
	s.mu.RLock()
	kid := s.current
	s.mu.RUnlock()

	if kid == "" {
		return Secret{}, ErrNoCurrent
	}
	return s.AccessSecret(ctx, kid)
}

func (s *Static) B2BKey(_ context.Context, kid string) (B2BKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.b2b[kid]
	if !ok || k.Expired(s.now()) {
		return B2BKey{}, ErrNoKey
	}
	return k, nil
}
