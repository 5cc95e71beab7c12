package storage

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

const rootPrefix = "user"

type Client struct {
	client *storage.Client
	bucket string
}

func NewClient(supabaseURL, serviceRoleKey, bucket string) (*Client, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &Client{
		client: client,
		bucket: bucket,
	}, nil
}

// UserRoot builds the owner-scoped key prefix. Organization members share
// an org-level subtree so brokers can manage their agents' assets.
func UserRoot(userID uuid.UUID, organizationID uuid.NullUUID) string {
	if organizationID.Valid {
		return fmt.Sprintf("%s/%s/users/%s", rootPrefix, organizationID.UUID.String(), userID.String())
	}
	return fmt.Sprintf("%s/%s", rootPrefix, userID.String())
}

// OriginalKey returns a fresh key for an uploaded original. The timestamp
// prefix keeps re-uploads of same-named files from colliding.
func OriginalKey(userID uuid.UUID, organizationID uuid.NullUUID, filename string) string {
	return fmt.Sprintf("%s/photos/originals/%d-%s", UserRoot(userID, organizationID), time.Now().UnixMilli(), filename)
}

// EnhancedKey mirrors the original's basename under the enhanced prefix.
func EnhancedKey(userID uuid.UUID, organizationID uuid.NullUUID, originalPath string) string {
	return fmt.Sprintf("%s/photos/enhanced/%s", UserRoot(userID, organizationID), path.Base(originalPath))
}

// ReprocessedKey returns a timestamped key for a reprocess output so a new
// attempt never overwrites the previous artifact.
func ReprocessedKey(userID uuid.UUID, organizationID uuid.NullUUID, originalPath string) string {
	base := path.Base(originalPath)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s/photos/enhanced/%d-reprocessed-%s.png", UserRoot(userID, organizationID), time.Now().UnixMilli(), stem)
}

func (c *Client) Upload(storagePath string, data []byte, contentType string) error {
	upsert := true
	_, err := c.client.UploadFile(c.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (c *Client) Download(storagePath string) ([]byte, error) {
	data, err := c.client.DownloadFile(c.bucket, storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	return data, nil
}

// SignedURL returns a time-limited download URL for a stored object.
func (c *Client) SignedURL(storagePath string, ttl time.Duration) (string, error) {
	resp, err := c.client.CreateSignedUrl(c.bucket, storagePath, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to create signed url: %w", err)
	}
	return resp.SignedURL, nil
}

func (c *Client) Delete(storagePath string) error {
	_, err := c.client.RemoveFile(c.bucket, []string{storagePath})
	return err
}
