package kvstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrStoreUnsealFailed = errors.New("unable to unseal store")
	ErrInvalidSealKey    = fmt.Errorf("seal key must be %d bytes", chacha20poly1305.KeySize)
)

// sealContext is the associated data of every sealed file. It must not
// depend on the path the file was opened with.
var sealContext = []byte("tesla-kvstore-v1")

var _ Store = (*FileStore)(nil)

// FileStore persists values as a JSON object in a single file. With a seal
// key the file content is XChaCha20-Poly1305 ciphertext prefixed by its nonce.
type FileStore struct {
	path string
	aead cipher.AEAD
	lock sync.Mutex
}

type FileStoreOption func(*fileStoreOptions)

type fileStoreOptions struct {
	sealKey []byte
}

// WithSealKey encrypts the file with a 32 byte key.
func WithSealKey(key []byte) FileStoreOption {
	return func(o *fileStoreOptions) {
		o.sealKey = key
	}
}

// NewFileStore opens the store at path. The file is created on first Set.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	var o fileStoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	fstore := &FileStore{path: path}
	if o.sealKey != nil {
		if len(o.sealKey) != chacha20poly1305.KeySize {
			return nil, ErrInvalidSealKey
		}
		aead, err := chacha20poly1305.NewX(o.sealKey)
		if err != nil {
			return nil, fmt.Errorf("[NewFileStore] cipher: %w", err)
		}
		fstore.aead = aead
	}
	return fstore, nil
}

func (f *FileStore) Get(key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (f *FileStore) Set(key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if f.aead != nil {
		if data, err = f.unseal(data); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse store %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if f.aead != nil {
		if data, err = f.seal(data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kvstore-*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace store %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, f.aead.NonceSize(), f.aead.NonceSize()+len(plaintext)+f.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return f.aead.Seal(nonce, nonce, plaintext, sealContext), nil
}

func (f *FileStore) unseal(data []byte) ([]byte, error) {
	if len(data) < f.aead.NonceSize() {
		return nil, ErrStoreUnsealFailed
	}
	nonce, ciphertext := data[:f.aead.NonceSize()], data[f.aead.NonceSize():]
	plaintext, err := f.aead.Open(nil, nonce, ciphertext, sealContext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnsealFailed, err)
	}
	return plaintext, nil
}
