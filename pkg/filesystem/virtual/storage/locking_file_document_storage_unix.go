//go:build unix

package storage

import (
	"io"

	"github.com/buildbarn/bb-storage/pkg/filesystem"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewLockingFileDocumentStorage is identical to NewFileDocumentStorage,
// except that it places an exclusive advisory lock on a file next to
// the document. This prevents multiple terminals from overwriting each
// other's changes. The lock is released by closing the returned
// io.Closer.
func NewLockingFileDocumentStorage(directory filesystem.Directory, name path.Component, uuidGenerator util.UUIDGenerator) (DocumentStorage, io.Closer, error) {
	lockName := path.MustNewComponent(name.String() + ".lock")
	lockFile, err := directory.OpenAppend(lockName, filesystem.CreateReuse(0o644))
	if err != nil {
		return nil, nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to open lock file %#v", lockName.String())
	}
	fdProvider, ok := lockFile.(interface{ Fd() uintptr })
	if !ok {
		lockFile.Close()
		return nil, nil, status.Errorf(codes.Unimplemented, "Lock file %#v does not have a file descriptor", lockName.String())
	}
	if err := unix.Flock(int(fdProvider.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		if err == unix.EWOULDBLOCK {
			return nil, nil, status.Errorf(codes.FailedPrecondition, "Document %#v is in use by another process", name.String())
		}
		return nil, nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to lock %#v", lockName.String())
	}
	return NewFileDocumentStorage(directory, name, uuidGenerator), lockFile, nil
}
