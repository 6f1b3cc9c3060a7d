package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSignature = errors.New("invalid or expired signature")

// LocalStorage implements Storage on the local filesystem. Links are signed
// with HMAC-SHA256 and served by the API under the base URL.
type LocalStorage struct {
	dir     string
	baseURL string
	key     []byte
	now     func() time.Time
}

func NewLocalStorage(dir, baseURL, signingKey string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     []byte(signingKey),
		now:     time.Now,
	}, nil
}

// resolve maps an object path to a file inside dir.
func (s *LocalStorage) resolve(objectPath string) (string, error) {
	clean := filepath.Clean("/" + objectPath)
	if clean == "/" {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStorage) Upload(_ context.Context, objectPath, _ string, r io.Reader) error {
	target, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(target)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *LocalStorage) sign(objectPath string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s\n%d", objectPath, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LocalStorage) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(objectPath); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(objectPath, expires))
	return s.baseURL + "/" + objectPath + "?" + q.Encode(), nil
}

// Open checks a signed link and returns the file it points to.
func (s *LocalStorage) Open(objectPath, expires, signature string) (*os.File, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return nil, ErrInvalidSignature
	}
	want := s.sign(objectPath, exp)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return nil, ErrInvalidSignature
	}
	target, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}
