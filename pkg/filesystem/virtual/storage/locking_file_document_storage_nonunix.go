//go:build !unix

package storage

import (
	"io"

	"github.com/buildbarn/bb-storage/pkg/filesystem"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"
)

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}

// NewLockingFileDocumentStorage is identical to NewFileDocumentStorage.
// Advisory locking is not supported on this platform.
func NewLockingFileDocumentStorage(directory filesystem.Directory, name path.Component, uuidGenerator util.UUIDGenerator) (DocumentStorage, io.Closer, error) {
	return NewFileDocumentStorage(directory, name, uuidGenerator), nopCloser{}, nil
}
