package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

func TestJWTRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now()
	token, err := GenerateJWT(42, "0123456789abcdef", time.Hour, now)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	got, err := ParseJWT(token, "0123456789abcdef")
	if err != nil {
		t.Fatalf("ParseJWT() error = %v", err)
	}
	if got != 42 {
		t.Fatalf("user id = %d, want 42", got)
	}
}

func TestParseJWTRejects(t *testing.T) {
	t.Parallel()

	valid, _ := GenerateJWT(1, "secret-a-secret-a", time.Hour, time.Now())
	expired, _ := GenerateJWT(1, "secret-a-secret-a", time.Minute, time.Now().Add(-time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: valid + "x"},
		{name: "expired", token: expired},
		{name: "garbage", token: "not-a-token"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseJWT(tt.token, "secret-a-secret-a"); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("ParseJWT() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
		"abc":         "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Fatal("CheckPassword() = false for the right password")
	}
	if CheckPassword("hunter3", hash) {
		t.Fatal("CheckPassword() = true for the wrong password")
	}
}

type fakeRedis struct {
	seen map[string]bool
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ any, _ time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if f.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if f.seen[k] {
			delete(f.seen, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestDeduperAcquireOnce(t *testing.T) {
	t.Parallel()

	d := NewDeduper(&fakeRedis{seen: map[string]bool{}}, "activity", time.Hour, nil)
	ctx := context.Background()
	if !d.AcquireOnce(ctx, "evt-1") {
		t.Fatal("first acquire = false, want true")
	}
	if d.AcquireOnce(ctx, "evt-1") {
		t.Fatal("second acquire = true, want false")
	}
}

func TestDeduperReleaseAllowsReclaim(t *testing.T) {
	t.Parallel()

	d := NewDeduper(&fakeRedis{seen: map[string]bool{}}, "idem", time.Hour, nil)
	ctx := context.Background()
	if ok, err := d.Claim(ctx, "7:k1"); err != nil || !ok {
		t.Fatalf("first Claim() = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := d.Claim(ctx, "7:k1"); ok {
		t.Fatal("second Claim() = true before release")
	}
	if err := d.Release(ctx, "7:k1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, err := d.Claim(ctx, "7:k1"); err != nil || !ok {
		t.Fatalf("Claim() after release = %v, %v; want true, nil", ok, err)
	}
}

func TestDeduperFailsOpen(t *testing.T) {
	t.Parallel()

	d := NewDeduper(&fakeRedis{err: errors.New("dial tcp: refused")}, "activity", time.Hour, nil)
	if !d.AcquireOnce(context.Background(), "evt-1") {
		t.Fatal("acquire with redis down = false, want true")
	}
	if _, err := d.Claim(context.Background(), "evt-1"); err == nil {
		t.Fatal("Claim() should surface the redis error")
	}
	if err := d.Release(context.Background(), "evt-1"); err == nil {
		t.Fatal("Release() should surface the redis error")
	}
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	var syntaxErr error
	if err := json.Unmarshal([]byte("{"), &struct{}{}); err != nil {
		syntaxErr = err
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{name: "json", err: fmt.Errorf("decode: %w", syntaxErr), retryable: false, kind: "json_decode_error"},
		{name: "permanent", err: fmt.Errorf("bad event: %w", ErrPermanent), retryable: false, kind: "permanent"},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, retryable: false, kind: "duplicate_key"},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, retryable: true, kind: "db_transient"},
		{name: "deadline", err: context.DeadlineExceeded, retryable: true, kind: "timeout"},
		{name: "canceled", err: context.Canceled, retryable: false, kind: "context_canceled"},
		{name: "unknown", err: errors.New("boom"), retryable: false, kind: "unknown_error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			retryable, kind := IsRetryableError(tt.err)
			if retryable != tt.retryable || kind != tt.kind {
				t.Fatalf("IsRetryableError() = (%v, %q), want (%v, %q)", retryable, kind, tt.retryable, tt.kind)
			}
		})
	}
	if ShouldRetry(4, 3, true) {
		t.Fatal("ShouldRetry(4, 3) = true, want false")
	}
}
