package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) LockKey(name string) string { return "dv:lock:" + name }

func TestRedisLockerLeasePerName(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	locker, err := NewRedisLocker(store, "prod")
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "import-job-retention", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if _, ok := store.values["dv:lock:cron:prod:import-job-retention"]; !ok {
		t.Fatalf("unexpected lock keys %v", store.values)
	}
	if _, ok, _ := locker.Acquire(ctx, "import-job-retention", time.Hour); ok {
		t.Fatal("expected second acquire to fail while leased")
	}
	if _, ok, _ := locker.Acquire(ctx, "subscription-expiry", time.Hour); !ok {
		t.Fatal("expected other job names to lease independently")
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := locker.Acquire(ctx, "import-job-retention", time.Hour); !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestRedisLockerReleaseIgnoresForeignOwner(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	locker, _ := NewRedisLocker(store, "")
	release, ok, err := locker.Acquire(context.Background(), "job", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	store.values["dv:lock:cron:local:job"] = "someone-else"
	if err := release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["dv:lock:cron:local:job"] != "someone-else" {
		t.Fatal("release must not delete a lease it no longer owns")
	}
}

func TestNewRedisLockerRequiresClient(t *testing.T) {
	if _, err := NewRedisLocker(nil, "prod"); err == nil {
		t.Fatal("expected nil client to fail")
	}
}
