package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dukerupert/freshmate/internal/model"
	"github.com/dukerupert/freshmate/internal/store"
)

// mockS3Client implements s3Client for testing. pageSize > 0 splits listings
// into pages.
type mockS3Client struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	putErr   error
	getErr   error
	delErr   error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(input.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if input.ContinuationToken != nil {
		start, _ = strconv.Atoi(*input.ContinuationToken)
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(m.objects[k]))),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

type memSource struct {
	data     []byte
	restored []byte
	snapErr  error
}

func (s *memSource) Snapshot(ctx context.Context) ([]byte, error) {
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	return s.data, nil
}

func (s *memSource) Restore(ctx context.Context, data []byte) error {
	s.restored = data
	return nil
}

const testPass = "correct horse battery"

// newTestManager builds a manager whose clock advances one second per call.
func newTestManager(source Source) (*Manager, *mockS3Client) {
	mock := newMockS3()
	m := NewManager(S3Config{Bucket: "b", Prefix: "freshmate"}, source, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.client = mock
	clock := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return m, mock
}

func TestManagerNotConfigured(t *testing.T) {
	m := NewManager(S3Config{Bucket: "b"}, &memSource{}, slog.Default())
	if m.Configured() {
		t.Fatal("manager without credentials should not be configured")
	}
	if _, err := m.Run(context.Background(), testPass); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Run err = %v, want ErrNotConfigured", err)
	}
	if _, err := m.List(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("List err = %v, want ErrNotConfigured", err)
	}
	if _, err := m.Restore(context.Background(), Latest, testPass); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Restore err = %v, want ErrNotConfigured", err)
	}

	configured := NewManager(S3Config{Bucket: "b", AccessKey: "ak", SecretKey: "sk", Region: "us-east-1"}, &memSource{}, slog.Default())
	if !configured.Configured() {
		t.Error("manager with credentials should be configured")
	}
}

func TestManagerWeakPassphrase(t *testing.T) {
	m, mock := newTestManager(&memSource{data: []byte("x")})
	if _, err := m.Run(context.Background(), "short"); !errors.Is(err, ErrWeakPassphrase) {
		t.Errorf("err = %v, want ErrWeakPassphrase", err)
	}
	if len(mock.objects) != 0 {
		t.Error("nothing should be uploaded")
	}
}

func TestManagerRunAndRestoreLatest(t *testing.T) {
	src := &memSource{data: []byte("first")}
	m, mock := newTestManager(src)
	ctx := context.Background()

	first, err := m.Run(ctx, testPass)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(first.Key, "freshmate/backup-") || !strings.HasSuffix(first.Key, ".enc") {
		t.Errorf("key = %q", first.Key)
	}
	if bytes.Contains(mock.objects[first.Key], []byte("first")) {
		t.Error("uploaded object must be encrypted")
	}

	src.data = []byte("second")
	second, err := m.Run(ctx, testPass)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := m.Restore(ctx, Latest, testPass)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.Key != second.Key {
		t.Errorf("restored %q, want newest %q", got.Key, second.Key)
	}
	if string(src.restored) != "second" {
		t.Errorf("restored data = %q", src.restored)
	}

	if _, err := m.Restore(ctx, first.Key, testPass); err != nil {
		t.Fatalf("Restore by key: %v", err)
	}
	if string(src.restored) != "first" {
		t.Errorf("restored data = %q", src.restored)
	}
}

func TestManagerRestoreErrors(t *testing.T) {
	src := &memSource{data: []byte("inventory")}
	m, _ := newTestManager(src)
	ctx := context.Background()

	if _, err := m.Restore(ctx, Latest, testPass); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty bucket err = %v, want ErrNotFound", err)
	}
	if _, err := m.Restore(ctx, "freshmate/backup-missing.enc", testPass); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key err = %v, want ErrNotFound", err)
	}

	if _, err := m.Run(ctx, testPass); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Restore(ctx, Latest, "not the passphrase"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("wrong passphrase err = %v, want ErrBadPassphrase", err)
	}
	if src.restored != nil {
		t.Error("source must not be touched when decryption fails")
	}
}

func TestManagerRunUploadError(t *testing.T) {
	m, mock := newTestManager(&memSource{data: []byte("x")})
	mock.putErr = errors.New("connection refused")
	if _, err := m.Run(context.Background(), testPass); err == nil {
		t.Fatal("expected upload error")
	}

	m2, _ := newTestManager(&memSource{snapErr: errors.New("disk gone")})
	if _, err := m2.Run(context.Background(), testPass); err == nil {
		t.Fatal("expected snapshot error")
	}
}

func TestManagerListPagesNewestFirst(t *testing.T) {
	m, mock := newTestManager(&memSource{data: []byte("x")})
	mock.pageSize = 2
	mock.objects["other/unrelated"] = []byte("y")
	ctx := context.Background()

	var keys []string
	for i := 0; i < 5; i++ {
		obj, err := m.Run(ctx, testPass)
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, obj.Key)
	}

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("len = %d, want 5", len(list))
	}
	for i, o := range list {
		if want := keys[len(keys)-1-i]; o.Key != want {
			t.Errorf("list[%d] = %q, want %q", i, o.Key, want)
		}
	}
}

func TestManagerCleanup(t *testing.T) {
	m, mock := newTestManager(&memSource{data: []byte("x")})
	ctx := context.Background()

	var keys []string
	for i := 0; i < 4; i++ {
		obj, err := m.Run(ctx, testPass)
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, obj.Key)
	}

	n, err := m.Cleanup(ctx, 2)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	for _, k := range keys[:2] {
		if _, ok := mock.objects[k]; ok {
			t.Errorf("old backup %q should be deleted", k)
		}
	}
	for _, k := range keys[2:] {
		if _, ok := mock.objects[k]; !ok {
			t.Errorf("recent backup %q should be kept", k)
		}
	}

	if _, err := m.Cleanup(ctx, 0); err == nil {
		t.Error("keep 0 should be rejected")
	}
}

func TestManagerCSVSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	csvFile := store.NewCSVFile(path)
	ctx := context.Background()

	expiry, err := model.ParseDate("2026-10-20")
	if err != nil {
		t.Fatal(err)
	}
	original := []model.Item{{Owner: "a@example.com", Name: "Milk", Quantity: 1, Unit: model.UnitLitre, Category: "Dairy", Expiry: expiry}}
	if err := csvFile.Save(ctx, original); err != nil {
		t.Fatal(err)
	}

	m, _ := newTestManager(csvFile)
	if _, err := m.Run(ctx, testPass); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := csvFile.Save(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Restore(ctx, Latest, testPass); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	items, err := csvFile.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "Milk" || !items[0].Expiry.Equal(expiry) {
		t.Errorf("items after restore = %+v", items)
	}
}
