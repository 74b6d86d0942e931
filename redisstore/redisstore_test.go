package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/bluescreen10/httpstate/redisstore"
)

func TestWriteRead(t *testing.T) {
	id := "abc123"
	expectedData := []byte("hello world")

	_, rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	if err := s.Write(id, expectedData); err != nil {
		t.Fatal(err)
	}
	data, err := s.Read(id)

	if err != nil {
		t.Fatal(err)
	}

	if string(data) != string(expectedData) {
		t.Fatalf("expected '%s' got '%s'", expectedData, data)
	}
}

func TestEmptyRead(t *testing.T) {
	_, rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	data, err := s.Read("abc123")

	if err != nil {
		t.Fatal(err)
	}

	if len(data) != 0 {
		t.Fatalf("expected empty data got '%s'", data)
	}
}

func TestReadExpired(t *testing.T) {
	id := "abc123"

	mr, rdb := getRedisDB(t)

	s := redisstore.New(rdb, redisstore.WithLifetime(time.Minute))
	if err := s.Write(id, []byte("hello world")); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)
	data, err := s.Read(id)

	if err != nil {
		t.Fatal(err)
	}

	if len(data) != 0 {
		t.Fatalf("expected empty data got '%s'", data)
	}
}

func TestDestroy(t *testing.T) {
	id := "abc123"

	_, rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	s.Write(id, []byte("hello world"))
	if err := s.Destroy(id); err != nil {
		t.Fatal(err)
	}

	ok, err := s.ValidateID(id)
	if err != nil {
		t.Fatal(err)
	}

	if ok {
		t.Fatalf("expected 'false' got '%v'", ok)
	}
}

func TestKeyPrefix(t *testing.T) {
	mr, rdb := getRedisDB(t)

	s := redisstore.New(rdb, redisstore.WithPrefix("app:"))
	s.Write("abc123", []byte("hello world"))

	if !mr.Exists("app:abc123") {
		t.Fatalf("expected key 'app:abc123' to exist, keys: %v", mr.Keys())
	}
}

func TestValidateID(t *testing.T) {
	_, rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	s.Write("known", []byte("x"))

	if ok, err := s.ValidateID("known"); err != nil || !ok {
		t.Fatalf("expected 'true' got '%v' (%v)", ok, err)
	}

	if ok, err := s.ValidateID("unknown"); err != nil || ok {
		t.Fatalf("expected 'false' got '%v' (%v)", ok, err)
	}
}

func TestUpdateTimestamp(t *testing.T) {
	id := "abc123"

	mr, rdb := getRedisDB(t)

	s := redisstore.New(rdb, redisstore.WithLifetime(time.Minute))
	s.Write(id, []byte("original"))

	mr.FastForward(50 * time.Second)
	if err := s.UpdateTimestamp(id, []byte("ignored")); err != nil {
		t.Fatal(err)
	}

	if ttl := mr.TTL(redisstore.DefaultPrefix + id); ttl != time.Minute {
		t.Fatalf("expected ttl '%v' got '%v'", time.Minute, ttl)
	}

	data, _ := s.Read(id)
	if string(data) != "original" {
		t.Fatalf("expected 'original' got '%s'", data)
	}
}

func TestUpdateTimestampMissingRecord(t *testing.T) {
	_, rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	if err := s.UpdateTimestamp("abc123", []byte("data")); err != nil {
		t.Fatal(err)
	}

	data, _ := s.Read("abc123")
	if string(data) != "data" {
		t.Fatalf("expected 'data' got '%s'", data)
	}
}

func TestGC(t *testing.T) {
	_, rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	if n, err := s.GC(time.Minute); err != nil || n != 0 {
		t.Fatalf("expected no-op garbage collection, got %d (%v)", n, err)
	}
}

func getRedisDB(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}
	return mr, client
}
