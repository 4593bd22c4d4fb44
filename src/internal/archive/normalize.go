package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Vendor-specific wrapper folders that some archives nest their payload in
// even when other top-level entries exist alongside them.
var vendorWrappers = []string{
	"Apache24",
	"mailpit",
}

// wrapperPrefixes match versioned release folders (mysql-8.0.37-winx64,
// php-8.3.8, nginx-1.26.1, httpd-2.4.59).
var wrapperPrefixes = []string{"mysql-", "php-", "nginx-", "httpd-", "redis-"}

// normalizeLayout collapses a single wrapping directory so the installed tree
// always has the executable at a predictable depth, then flattens known
// vendor wrapper folders.
func normalizeLayout(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("%w: cannot inspect extracted tree: %v", ErrExtraction, err)
	}

	if len(entries) == 1 && entries[0].IsDir() {
		if err := hoistDir(dest, entries[0].Name()); err != nil {
			return err
		}
		entries, err = os.ReadDir(dest)
		if err != nil {
			return fmt.Errorf("%w: cannot inspect extracted tree: %v", ErrExtraction, err)
		}
	}

	for _, entry := range entries {
		if entry.IsDir() && isKnownWrapper(entry.Name()) {
			if err := hoistDir(dest, entry.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

func isKnownWrapper(name string) bool {
	for _, wrapper := range vendorWrappers {
		if strings.EqualFold(name, wrapper) {
			return true
		}
	}
	for _, prefix := range wrapperPrefixes {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			return true
		}
	}
	return false
}

// hoistDir moves the contents of dest/name up into dest and removes the
// then-empty wrapper.
func hoistDir(dest, name string) error {
	wrapper := filepath.Join(dest, name)
	children, err := os.ReadDir(wrapper)
	if err != nil {
		return fmt.Errorf("%w: cannot read wrapper folder %s: %v", ErrExtraction, name, err)
	}

	for _, child := range children {
		from := filepath.Join(wrapper, child.Name())
		to := filepath.Join(dest, child.Name())
		if _, err := os.Stat(to); err == nil {
			// A sibling with the same name already exists at the top level;
			// leave the wrapper copy where it is.
			continue
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("%w: cannot move %s out of wrapper: %v", ErrExtraction, child.Name(), err)
		}
	}

	if remaining, err := os.ReadDir(wrapper); err == nil && len(remaining) == 0 {
		_ = os.Remove(wrapper)
	}
	return nil
}
