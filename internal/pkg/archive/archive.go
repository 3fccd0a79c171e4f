// Package archive persists the message history of reaped identities.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const stampLayout = "20060102T150405Z"

// Entry is one archived message.
type Entry struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Writer stores one snapshot per call and returns where it went.
type Writer interface {
	Write(ctx context.Context, address string, entries []Entry, at time.Time) (string, error)
}

// ObjectName builds "<address>.<UTC stamp>.json". Each reap gets its own
// object so earlier snapshots for the same address are kept.
func ObjectName(address string, at time.Time) string {
	return sanitize(address) + "." + at.UTC().Format(stampLayout) + ".json"
}

func sanitize(address string) string {
	name := strings.ToLower(strings.TrimSpace(address))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, ".")
	if name == "" {
		name = "unknown"
	}
	return name
}

func encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// Local writes snapshots into a directory.
type Local struct {
	dir string
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Write(ctx context.Context, address string, entries []Entry, at time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := encode(entries)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}

	path := filepath.Join(l.dir, ObjectName(address, at))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return path, nil
}
