package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorage keeps objects in a Supabase Storage bucket.
type SupabaseStorage struct {
	client  *storage_go.Client
	baseURL string
	bucket  string
}

func NewSupabaseStorage(supabaseURL, serviceKey, bucket string) (*SupabaseStorage, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase storage")
	}
	baseURL := strings.TrimRight(supabaseURL, "/") + "/storage/v1"
	client := storage_go.NewClient(baseURL, serviceKey, map[string]string{"apikey": serviceKey})
	return &SupabaseStorage{client: client, baseURL: baseURL, bucket: bucket}, nil
}

func (s *SupabaseStorage) Upload(_ context.Context, objectPath, contentType string, r io.Reader) error {
	upsert := false
	_, err := s.client.UploadFile(s.bucket, objectPath, r, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

func (s *SupabaseStorage) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUrl(s.bucket, objectPath, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", objectPath, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("failed to sign %s: empty url", objectPath)
	}
	if strings.HasPrefix(resp.SignedURL, "http") {
		return resp.SignedURL, nil
	}
	return s.baseURL + "/" + strings.TrimLeft(resp.SignedURL, "/"), nil
}
