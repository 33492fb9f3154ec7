package virtual

import (
	"time"
)

// File is a leaf of the file system tree that holds textual contents.
type File struct {
	name        string
	permissions string
	content     []byte
	createdAt   time.Time
	modifiedAt  time.Time
}

var _ Node = (*File)(nil)

func newFile(name string, content []byte, now time.Time) *File {
	return &File{
		name:        name,
		permissions: defaultFilePermissions,
		content:     content,
		createdAt:   now,
		modifiedAt:  now,
	}
}

// GetName returns the name of the file, as it was spelled when the
// file was created.
func (f *File) GetName() string {
	return f.name
}

// GetInfo returns the metadata of the file.
func (f *File) GetInfo() FileInfo {
	return FileInfo{
		Name:        f.name,
		Permissions: f.permissions,
		SizeBytes:   len(f.content),
		CreatedAt:   f.createdAt,
		ModifiedAt:  f.modifiedAt,
	}
}

func (f *File) write(content []byte, now time.Time) {
	f.content = content
	f.modifiedAt = now
}
