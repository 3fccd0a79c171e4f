// Package proctitle renames the running process for process listings.
package proctitle

import (
	"errors"
	"strings"
)

// ErrEmpty is returned for a blank title.
var ErrEmpty = errors.New("empty process title")

func normalize(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmpty
	}
	return title, nil
}
