// Package backup snapshots the local feed into object storage. Snapshots are
// encrypted with the same crypto gate as remote mirrors, so the bucket never
// sees plaintext.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/feedvault/internal/config"
	"github.com/dmitrijs2005/feedvault/internal/cryptox"
	"github.com/dmitrijs2005/feedvault/internal/localstore"
	"github.com/dmitrijs2005/feedvault/internal/logging"
	"github.com/dmitrijs2005/feedvault/internal/models"
)

// ObjectStore is the subset of *s3.Client the snapshotter needs.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewClient builds an S3 client from the runtime configuration. Static
// credentials and a base endpoint are optional; without them the default
// AWS credential chain applies.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
	}), nil
}

// Snapshotter uploads and restores encrypted snapshots of a local store.
type Snapshotter struct {
	objects ObjectStore
	store   *localstore.Store
	gate    *cryptox.Gate
	bucket  string
	userID  string
	log     logging.Logger
}

func NewSnapshotter(objects ObjectStore, store *localstore.Store, gate *cryptox.Gate, bucket, userID string, log logging.Logger) *Snapshotter {
	return &Snapshotter{
		objects: objects,
		store:   store,
		gate:    gate,
		bucket:  bucket,
		userID:  userID,
		log:     log.With("component", "backup"),
	}
}

func (s *Snapshotter) key(ts time.Time) string {
	return fmt.Sprintf("%s/feed-%d.snap", s.userID, ts.Unix())
}

// Upload serializes the whole local feed, encrypts it, and puts it under
// <userID>/feed-<unix>.snap. Returns the object key.
func (s *Snapshotter) Upload(ctx context.Context) (string, error) {
	items, err := s.store.Query().ToArray(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot read failed: %w", err)
	}

	plaintext, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("snapshot serialization failed: %w", err)
	}
	sealed, err := s.gate.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("snapshot encryption failed: %w", err)
	}

	key := s.key(time.Now())
	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(sealed),
	})
	if err != nil {
		return "", fmt.Errorf("snapshot upload failed: %w", err)
	}

	s.log.Info(ctx, "snapshot uploaded", "key", key, "items", len(items))
	return key, nil
}

// Restore downloads the snapshot at key, decrypts it, and merges its items
// into the local store. Returns the number of restored items.
func (s *Snapshotter) Restore(ctx context.Context, key string) (int, error) {
	out, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("snapshot download failed: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("snapshot read failed: %w", err)
	}
	plaintext, err := s.gate.Decrypt(sealed)
	if err != nil {
		return 0, fmt.Errorf("snapshot decryption failed: %w", err)
	}

	var items []models.FeedItem
	if err := json.Unmarshal(plaintext, &items); err != nil {
		return 0, fmt.Errorf("snapshot deserialization failed: %w", err)
	}

	batch := make([]*models.FeedItem, 0, len(items))
	for i := range items {
		batch = append(batch, &items[i])
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("snapshot merge failed: %w", err)
	}

	s.log.Info(ctx, "snapshot restored", "key", key, "items", len(items))
	return len(items), nil
}
