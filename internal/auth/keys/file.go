package keys

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var (
	errSealerRequired = errors.New("keys: encrypted entry but no master key configured")
	errEmptySecret    = errors.New("keys: empty access secret")
)

// fileFormat is the on-disk layout of the secrets file.
//
//	access_secrets:
//	  current: k2
//	  keys:
//	    - kid: k1
//	      secret: <base64>
//	    - kid: k2
//	      secret: <base64 of sealed secret>
//	      encrypted: true
//	b2b_keys:
//	  - kid: partner-1
//	    channel: com.partner.app
//	    public_key: |
//	      -----BEGIN PUBLIC KEY-----
//	    expires_at: 2027-01-01T00:00:00Z
type fileFormat struct {
	AccessSecrets struct {
		Current string        `yaml:"current"`
		Keys    []secretEntry `yaml:"keys"`
	} `yaml:"access_secrets"`
	B2BKeys []b2bEntry `yaml:"b2b_keys"`
}

type secretEntry struct {
	Kid       string `yaml:"kid"`
	Secret    string `yaml:"secret"`
	Encrypted bool   `yaml:"encrypted"`
}

type b2bEntry struct {
	Kid       string    `yaml:"kid"`
	Channel   string    `yaml:"channel"`
	PublicKey string    `yaml:"public_key"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

type snapshot struct {
	current string
	secrets map[string]Secret
	b2b     map[string]B2BKey
}

// File is a Resolver backed by a YAML secrets file. Reload swaps the whole
// snapshot, so a broken file never leaves a half-applied key set behind.
type File struct {
	path   string
	sealer *cryptox.Sealer
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap *snapshot
}

var _ Resolver = (*File)(nil)

// NewFile loads path. sealer may be nil when no entry is encrypted.
func NewFile(path string, sealer *cryptox.Sealer, logger *slog.Logger) (*File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &File{path: path, sealer: sealer, logger: logger, now: time.Now}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the secrets file. On error the previous snapshot is kept.
func (f *File) Reload() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("keys: read %s: %w", f.path, err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("keys: parse %s: %w", f.path, err)
	}

	snap, err := f.build(doc)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()

	f.logger.Info("key material loaded",
		"path", f.path,
		"access_secrets", len(snap.secrets),
		"b2b_keys", len(snap.b2b),
		"current_kid", snap.current,
	)
	return nil
}

func (f *File) build(doc fileFormat) (*snapshot, error) {
	snap := &snapshot{
		current: doc.AccessSecrets.Current,
		secrets: make(map[string]Secret, len(doc.AccessSecrets.Keys)),
		b2b:     make(map[string]B2BKey, len(doc.B2BKeys)),
	}

	for _, e := range doc.AccessSecrets.Keys {
		if e.Kid == "" {
			return nil, errors.New("keys: access secret without kid")
		}
		secret, err := base64.StdEncoding.DecodeString(e.Secret)
		if err != nil {
			return nil, fmt.Errorf("keys: secret %s: %w", e.Kid, err)
		}
		if e.Encrypted {
			if f.sealer == nil {
				return nil, fmt.Errorf("%w: %s", errSealerRequired, e.Kid)
			}
			if secret, err = f.sealer.Open(secret); err != nil {
				return nil, fmt.Errorf("keys: decrypt %s: %w", e.Kid, err)
			}
		}
		if len(secret) == 0 {
			return nil, fmt.Errorf("%w: %s", errEmptySecret, e.Kid)
		}
		snap.secrets[e.Kid] = Secret{Kid: e.Kid, Secret: secret}
	}

	if snap.current != "" {
		if _, ok := snap.secrets[snap.current]; !ok {
			return nil, fmt.Errorf("keys: current kid %q has no secret", snap.current)
		}
	}

	for _, e := range doc.B2BKeys {
		if e.Kid == "" || e.Channel == "" {
			return nil, errors.New("keys: b2b key needs kid and channel")
		}
		pub, err := jwtx.ParsePublicKey([]byte(e.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("keys: b2b key %s: %w", e.Kid, err)
		}
		snap.b2b[e.Kid] = B2BKey{Kid: e.Kid, Key: pub, Channel: e.Channel, ExpiresAt: e.ExpiresAt}
	}

	return snap, nil
}

func (f *File) load() *snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

func (f *File) AccessSecret(_ context.Context, kid string) (Secret, error) {
	sec, ok := f.load().secrets[kid]
	if !ok || len(sec.Secret) == 0 {
		return Secret{}, ErrNoKey
	}
	return sec, nil
}

func (f *File) CurrentSecret(ctx context.Context) (Secret, error) {
	snap := f.load()
	if snap.current == "" {
		return Secret{}, ErrNoCurrent
	}
	return f.AccessSecret(ctx, snap.current)
}

func (f *File) B2BKey(_ context.Context, kid string) (B2BKey, error) {
	k, ok := f.load().b2b[kid]
	if !ok || k.Expired(f.now()) {
		return B2BKey{}, ErrNoKey
	}
	return k, nil
}

// Watch reloads the file whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file by rename are seen.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("keys: watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("keys: watch %s: %w", f.path, err)
	}

	go func() {
		defer func() { _ = w.Close() }()
		target := filepath.Clean(f.path)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := f.Reload(); err != nil {
					f.logger.Error("key reload failed, keeping previous keys", slog.Any("err", err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("key watcher error", slog.Any("err", err))
			}
		}
	}()
	return nil
}
