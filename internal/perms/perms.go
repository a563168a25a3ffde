// Package perms holds the file modes payinit creates files and directories with.
package perms

import "os"

const (
	// RegularFile is used for the config skeleton and log files: 0644.
	RegularFile os.FileMode = 0o644

	// RegularDir is used for generated documentation directories: 0755.
	RegularDir os.FileMode = 0o755
)
