package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get() = %q, %v, %v; want a miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, _ := c.Get(ctx, "region:a"); hit {
		t.Fatal("empty cache reported a hit")
	}
	if err := c.Set(ctx, "region:a", []byte(`{"area":"16"}`), time.Hour); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "region:a")
	if err != nil || !hit || string(data) != `{"area":"16"}` {
		t.Fatalf("Get() = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "region:a"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "region:a"); hit {
		t.Error("deleted entry still present")
	}
	if err := c.Delete(ctx, "region:a"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry file not removed")
	}

	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl missing")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("Clear() = %d, want 5", n)
	}
	left, _ := os.ReadDir(c.Dir())
	if len(left) != 0 {
		t.Errorf("%d entries left after Clear", len(left))
	}
}

func TestHash(t *testing.T) {
	h := Hash([]byte("hello"))
	if h != Hash([]byte("hello")) {
		t.Error("Hash is not deterministic")
	}
	if h == Hash([]byte("world")) {
		t.Error("different inputs share a hash")
	}
	if len(h) != 64 {
		t.Errorf("len(Hash) = %d, want 64", len(h))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	tests := []struct {
		name string
		a, b string
	}{
		{"observer",
			k.RegionKey("scene", "(1, 1)", RegionKeyOpts{}),
			k.RegionKey("scene", "(1, 2)", RegionKeyOpts{})},
		{"scene",
			k.RegionKey("scene-a", "(1, 1)", RegionKeyOpts{}),
			k.RegionKey("scene-b", "(1, 1)", RegionKeyOpts{})},
		{"regularize",
			k.RegionKey("scene", "(1, 1)", RegionKeyOpts{}),
			k.RegionKey("scene", "(1, 1)", RegionKeyOpts{Regularize: true})},
		{"format",
			k.ArtifactKey("result", ArtifactKeyOpts{Format: "svg"}),
			k.ArtifactKey("result", ArtifactKeyOpts{Format: "png"})},
		{"size",
			k.ArtifactKey("result", ArtifactKeyOpts{Format: "svg", Width: 800}),
			k.ArtifactKey("result", ArtifactKeyOpts{Format: "svg", Width: 400})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a == tt.b {
				t.Errorf("keys differing in %s collide: %s", tt.name, tt.a)
			}
		})
	}

	if got := k.StatsKey("abc"); got != "stats:abc" {
		t.Errorf("StatsKey() = %q", got)
	}
	if !strings.HasPrefix(k.RegionKey("s", "o", RegionKeyOpts{}), "region:") {
		t.Error("RegionKey lacks its prefix")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(nil, "staging:")
	if got := scoped.StatsKey("abc"); got != "staging:stats:abc" {
		t.Errorf("StatsKey() = %q", got)
	}
	inner := NewDefaultKeyer().RegionKey("s", "o", RegionKeyOpts{StepLimit: 3})
	if got := scoped.RegionKey("s", "o", RegionKeyOpts{StepLimit: 3}); got != "staging:"+inner {
		t.Errorf("RegionKey() = %q", got)
	}
	if got := scoped.ArtifactKey("r", ArtifactKeyOpts{}); !strings.HasPrefix(got, "staging:artifact:") {
		t.Errorf("ArtifactKey() = %q", got)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) != nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) || !errors.Is(err, ErrNetwork) {
		t.Errorf("Retryable(ErrNetwork) = %v", err)
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("message changed: %q", err.Error())
	}
	if IsRetryable(ErrNetwork) {
		t.Error("plain error reported retryable")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = 100 * time.Millisecond })
	ctx := context.Background()
	permanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"first try", 0, nil, 1, nil},
		{"permanent error", 1, permanent, 1, permanent},
		{"recovers", 2, Retryable(ErrNetwork), 3, nil},
		{"gives up", 5, Retryable(ErrNetwork), 3, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(ctx, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithBackoff(ctx, func() error { return Retryable(ErrNetwork) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRedisConfig(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisConfig{}); err == nil {
		t.Error("NewRedisCache without address succeeded")
	}

	c := newRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "sightline:")
	defer c.Close()
	if got := c.key("stats:abc"); got != "sightline:stats:abc" {
		t.Errorf("key() = %q", got)
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
	if IsRetryable(classify(context.DeadlineExceeded)) {
		t.Error("deadline errors must not be retried")
	}
	if err := classify(errors.New("dial tcp: connection refused")); !IsRetryable(err) || !errors.Is(err, ErrNetwork) {
		t.Errorf("connection failure = %v, want retryable network error", err)
	}
}
