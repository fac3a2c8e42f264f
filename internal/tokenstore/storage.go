package tokenstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/and161185/feedwall/internal/crypto"
	"github.com/and161185/feedwall/internal/errs"
	"github.com/and161185/feedwall/internal/repository"
)

// Storage persists a single credential value. Load returns "" with a nil
// error when nothing is stored.
type Storage interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
	Delete(ctx context.Context) error
}

// ---- file ----

type tokenFile struct {
	Sealed  []byte    `json:"sealed"`
	SavedAt time.Time `json:"saved_at"`
}

// FileStorage keeps the credential in a JSON file, sealed under a key from a
// separate 0600 key file.
type FileStorage struct {
	path    string
	keyPath string
	name    string

	mu sync.Mutex
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage returns a file-backed storage. name binds the sealed value to its key.
func NewFileStorage(path, keyPath, name string) *FileStorage {
	return &FileStorage{path: path, keyPath: keyPath, name: name}
}

// Path returns the token file location.
func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) key() ([]byte, error) { return sealKey(f.keyPath, f.name) }

// sealKey derives the per-name credential key from the master key file.
func sealKey(keyPath, name string) ([]byte, error) {
	master, err := crypto.LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("token key: %w", err)
	}
	return crypto.DeriveKey(master, []byte(name))
}

// Load reads and unseals the stored credential.
func (f *FileStorage) Load(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", fmt.Errorf("token file: %w", err)
	}
	if len(tf.Sealed) == 0 {
		return "", nil
	}
	key, err := f.key()
	if err != nil {
		return "", err
	}
	plain, err := crypto.Open(key, []byte(f.name), tf.Sealed)
	if err != nil {
		return "", fmt.Errorf("unseal token: %w", err)
	}
	return string(plain), nil
}

// Save seals value and atomically replaces the token file.
func (f *FileStorage) Save(_ context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key, err := f.key()
	if err != nil {
		return err
	}
	sealed, err := crypto.Seal(key, []byte(f.name), []byte(value))
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{Sealed: sealed, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Delete removes the token file. A missing file is not an error.
func (f *FileStorage) Delete(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ---- memory ----

// MemoryStorage keeps the credential for the life of the process.
type MemoryStorage struct {
	mu    sync.Mutex
	value string
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty in-process storage.
func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (m *MemoryStorage) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *MemoryStorage) Save(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	return nil
}

func (m *MemoryStorage) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

// ---- repository ----

// RepoStorage binds one credential name of a shared repository. Values are
// sealed like the file backend and stored base64-encoded, so the database
// never holds the bearer token in clear.
type RepoStorage struct {
	repo    repository.CredentialRepository
	keyPath string
	name    string
}

var _ Storage = (*RepoStorage)(nil)

// NewRepoStorage adapts repo to Storage under name, sealing with the key at keyPath.
func NewRepoStorage(repo repository.CredentialRepository, keyPath, name string) *RepoStorage {
	return &RepoStorage{repo: repo, keyPath: keyPath, name: name}
}

func (r *RepoStorage) Load(ctx context.Context) (string, error) {
	v, err := r.repo.Get(ctx, r.name)
	if errors.Is(err, errs.ErrNotFound) || (err == nil && v == "") {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return "", fmt.Errorf("stored credential: %w", err)
	}
	key, err := sealKey(r.keyPath, r.name)
	if err != nil {
		return "", err
	}
	plain, err := crypto.Open(key, []byte(r.name), sealed)
	if err != nil {
		return "", fmt.Errorf("unseal token: %w", err)
	}
	return string(plain), nil
}

func (r *RepoStorage) Save(ctx context.Context, value string) error {
	key, err := sealKey(r.keyPath, r.name)
	if err != nil {
		return err
	}
	sealed, err := crypto.Seal(key, []byte(r.name), []byte(value))
	if err != nil {
		return err
	}
	return r.repo.Put(ctx, r.name, base64.StdEncoding.EncodeToString(sealed))
}

func (r *RepoStorage) Delete(ctx context.Context) error {
	return r.repo.Delete(ctx, r.name)
}
