package memstore

import (
	"testing"
	"time"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newWithClock(opts ...Option) (*Memstore, *clock) {
	c := &clock{now: time.Unix(1700000000, 0)}
	m := New(opts...)
	m.now = c.Now
	return m, c
}

func TestWriteRead(t *testing.T) {
	id := "abc123"
	expectedData := []byte("hello world")

	s := New()
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
	s := New()
	data, err := s.Read("abc123")

	if err != nil {
		t.Fatal(err)
	}

	if data == nil || len(data) != 0 {
		t.Fatalf("expected empty data got '%v'", data)
	}
}

func TestReadExpired(t *testing.T) {
	id := "abc123"

	s, c := newWithClock(WithLifetime(time.Minute))
	s.Write(id, []byte("hello world"))
	c.advance(2 * time.Minute)

	data, err := s.Read(id)
	if err != nil {
		t.Fatal(err)
	}

	if len(data) != 0 {
		t.Fatalf("expected empty data got '%s'", data)
	}

	if count := s.Count(); count != 0 {
		t.Fatalf("expected expired record to be deleted, got %d records", count)
	}
}

func TestDestroy(t *testing.T) {
	id := "abc123"

	s := New()
	s.Write(id, []byte("hello world"))
	if err := s.Destroy(id); err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.ValidateID(id); ok {
		t.Fatalf("expected 'false' got '%v'", ok)
	}

	if err := s.Destroy("missing"); err != nil {
		t.Fatal(err)
	}
}

func TestValidateID(t *testing.T) {
	s := New()
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

	s, c := newWithClock(WithLifetime(time.Minute))
	s.Write(id, []byte("original"))

	c.advance(50 * time.Second)
	if err := s.UpdateTimestamp(id, []byte("ignored")); err != nil {
		t.Fatal(err)
	}

	c.advance(50 * time.Second)
	data, err := s.Read(id)
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "original" {
		t.Fatalf("expected 'original' got '%s'", data)
	}
}

func TestUpdateTimestampMissingRecord(t *testing.T) {
	s := New()
	if err := s.UpdateTimestamp("abc123", []byte("data")); err != nil {
		t.Fatal(err)
	}

	data, _ := s.Read("abc123")
	if string(data) != "data" {
		t.Fatalf("expected 'data' got '%s'", data)
	}
}

func TestGC(t *testing.T) {
	s, c := newWithClock(WithLifetime(time.Hour))
	s.Write("old", []byte("x"))
	c.advance(30 * time.Minute)
	s.Write("new", []byte("x"))
	c.advance(time.Minute)

	removed, err := s.GC(10 * time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if removed != 1 {
		t.Fatalf("expected 1 removed record but got '%d'", removed)
	}

	if ok, _ := s.ValidateID("new"); !ok {
		t.Fatal("expected 'new' to survive garbage collection")
	}
}

func TestPeriodicCleanup(t *testing.T) {
	id1 := "abc123"
	id2 := "abc1234"
	expectedData := []byte("hello world")

	s := New(WithLifetime(time.Hour))
	s.Write(id1, expectedData)
	s.Write(id2, expectedData)
	s.sessions.Store(id2, record{expiresAt: time.Now().Add(10 * time.Millisecond), data: expectedData})

	stop := make(chan (struct{}))
	go s.PeriodicCleanUp(20*time.Millisecond, stop)
	time.Sleep(50 * time.Millisecond)
	stop <- struct{}{}
	if count := s.Count(); count != 1 {
		t.Fatalf("expected 1 item but got '%d'", count)
	}
}
