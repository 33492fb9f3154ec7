package virtual

import (
	"time"
)

const (
	defaultFilePermissions      = "rw-r--r--"
	defaultDirectoryPermissions = "rwxr-xr-x"
)

// FileInfo contains the metadata of a file or directory.
type FileInfo struct {
	Name        string
	Permissions string
	IsDirectory bool
	// For files the length of the contents. For directories the
	// total size of all files contained within, recursively.
	SizeBytes  int
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// DirectoryEntry is returned by FileStore.ListDirectory().
type DirectoryEntry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
	SizeBytes   int    `json:"size_bytes"`
}

// Node contains the methods shared by files and directories.
type Node interface {
	GetName() string
	GetInfo() FileInfo
}
