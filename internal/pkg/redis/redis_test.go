package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	c := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "relay:")
	defer c.Close()
	if got := c.Key("lock:bind:u-1"); got != "relay:lock:bind:u-1" {
		t.Errorf("Key = %q", got)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	if _, err := Connect("not-a-redis-url", "relay:"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
