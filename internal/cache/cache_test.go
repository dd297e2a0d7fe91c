package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
)

type fakeConn struct {
	mu    *sync.Mutex
	data  map[string][]byte
	calls *[]string
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd == "" {
		return nil, nil
	}
	parts := []string{cmd}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	*c.calls = append(*c.calls, strings.Join(parts, " "))
	switch strings.ToUpper(cmd) {
	case "GET":
		v, ok := c.data[args[0].(string)]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "SET":
		c.data[args[0].(string)] = args[1].([]byte)
		return "OK", nil
	case "PING":
		return "PONG", nil
	}
	return nil, errors.New("unsupported command " + cmd)
}

func (c *fakeConn) Send(string, ...interface{}) error { return nil }
func (c *fakeConn) Flush() error                      { return nil }
func (c *fakeConn) Receive() (interface{}, error)     { return nil, nil }

func newFakeRedis(prefix string) (*Redis, *[]string) {
	var mu sync.Mutex
	data := make(map[string][]byte)
	calls := []string{}
	pool := &redis.Pool{
		MaxIdle: 1,
		Dial: func() (redis.Conn, error) {
			return &fakeConn{mu: &mu, data: data, calls: &calls}, nil
		},
	}
	return NewRedis(pool, prefix), &calls
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	c, calls := newFakeRedis("praxos:")

	if _, ok, err := c.Get(ctx, "vaults"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "vaults", []byte(`[1]`), 15*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "vaults")
	if err != nil || !ok || string(got) != "[1]" {
		t.Fatalf("Get mismatch: %q ok=%v err=%v", got, ok, err)
	}

	var sawTTL bool
	for _, call := range *calls {
		if strings.HasPrefix(call, "SET praxos:vaults") && strings.HasSuffix(call, "PX 15000") {
			sawTTL = true
		}
	}
	if !sawTTL {
		t.Fatalf("expected SET with PX ttl, calls: %v", *calls)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(MemoryConfig{})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer m.Close()

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected miss")
	}
	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get mismatch: %q ok=%v err=%v", got, ok, err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c, _ := newFakeRedis("")

	type item struct {
		Name string `json:"name"`
	}
	if err := SetJSON(ctx, c, "item", item{Name: "vault"}, 0); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out item
	ok, err := GetJSON(ctx, c, "item", &out)
	if err != nil || !ok || out.Name != "vault" {
		t.Fatalf("GetJSON mismatch: %+v ok=%v err=%v", out, ok, err)
	}
	if ok, err := GetJSON(ctx, c, "missing", &out); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}
