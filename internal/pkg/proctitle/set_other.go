//go:build !linux

package proctitle

// Set only validates title outside Linux.
func Set(title string) error {
	_, err := normalize(title)
	return err
}
