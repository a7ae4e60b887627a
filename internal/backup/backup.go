package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MinPassphraseLen is the shortest passphrase accepted for new backups.
const MinPassphraseLen = 8

// Latest selects the newest backup in Restore.
const Latest = "latest"

var (
	ErrNotConfigured  = errors.New("backup storage not configured")
	ErrNotFound       = errors.New("backup not found")
	ErrWeakPassphrase = fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLen)
)

// Source produces and accepts opaque snapshots of the inventory.
type Source interface {
	Snapshot(ctx context.Context) ([]byte, error)
	Restore(ctx context.Context, data []byte) error
}

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Object describes one stored backup.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Manager writes encrypted inventory snapshots to S3-compatible storage.
type Manager struct {
	mu     sync.Mutex
	cfg    S3Config
	source Source
	client s3Client
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a backup manager. Without bucket credentials every
// operation returns ErrNotConfigured.
func NewManager(cfg S3Config, source Source, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		source: source,
		now:    time.Now,
		logger: logger.With("component", "backup"),
	}
	if cfg.configured() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether backups can be taken.
func (m *Manager) Configured() bool {
	return m.client != nil
}

func (m *Manager) prefix() string {
	p := strings.Trim(m.cfg.Prefix, "/")
	if p == "" {
		return "backup-"
	}
	return p + "/backup-"
}

// Run snapshots the source, seals it with passphrase and uploads it.
func (m *Manager) Run(ctx context.Context, passphrase string) (Object, error) {
	if m.client == nil {
		return Object{}, ErrNotConfigured
	}
	if len(passphrase) < MinPassphraseLen {
		return Object{}, ErrWeakPassphrase
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.now()
	plain, err := m.source.Snapshot(ctx)
	if err != nil {
		return Object{}, fmt.Errorf("snapshot: %w", err)
	}
	sealed, err := Seal(plain, passphrase)
	if err != nil {
		return Object{}, fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := m.prefix() + start.UTC().Format("2006-01-02T150405.000Z") + ".enc"
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload backup: %w", err)
	}

	m.logger.Info("backup completed", "key", key, "size", len(sealed), "duration", time.Since(start))
	return Object{Key: key, Size: int64(len(sealed)), LastModified: start.UTC()}, nil
}

// List returns stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}

	objects := []Object{}
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(m.prefix()),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, o := range out.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	// Keys embed a sortable UTC timestamp.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Restore downloads the backup at key (or Latest), decrypts it and hands the
// snapshot to the source.
func (m *Manager) Restore(ctx context.Context, key, passphrase string) (Object, error) {
	if m.client == nil {
		return Object{}, ErrNotConfigured
	}

	obj := Object{Key: key}
	if key == "" || key == Latest {
		objects, err := m.List(ctx)
		if err != nil {
			return Object{}, err
		}
		if len(objects) == 0 {
			return Object{}, ErrNotFound
		}
		obj = objects[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return Object{}, fmt.Errorf("%w: %s", ErrNotFound, obj.Key)
		}
		return Object{}, fmt.Errorf("download backup: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return Object{}, fmt.Errorf("read backup: %w", err)
	}
	obj.Size = int64(len(sealed))

	plain, err := Open(sealed, passphrase)
	if err != nil {
		return Object{}, err
	}
	if err := m.source.Restore(ctx, plain); err != nil {
		return Object{}, fmt.Errorf("restore snapshot: %w", err)
	}

	m.logger.Info("backup restored", "key", obj.Key)
	return obj, nil
}

// Cleanup deletes all but the newest keep backups and returns how many were
// removed.
func (m *Manager) Cleanup(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1")
	}
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(objects) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, o := range objects[keep:] {
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(o.Key),
		})
		if err != nil {
			m.logger.Error("delete old backup", "key", o.Key, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		m.logger.Info("old backups removed", "count", deleted)
	}
	return deleted, nil
}
