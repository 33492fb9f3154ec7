package storage

import (
	"fmt"
	"os"

	"github.com/buildbarn/bb-storage/pkg/filesystem"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fileDocumentStorage struct {
	directory     filesystem.Directory
	name          path.Component
	uuidGenerator util.UUIDGenerator
}

// NewFileDocumentStorage creates a DocumentStorage that stores the
// document in a file contained in a directory on the host file system.
//
// Documents are first written to a temporary file in the same
// directory, which is renamed on top of the original file once it has
// been synchronized. This ensures that a crash while writing leaves
// the previous version of the document intact.
func NewFileDocumentStorage(directory filesystem.Directory, name path.Component, uuidGenerator util.UUIDGenerator) DocumentStorage {
	return &fileDocumentStorage{
		directory:     directory,
		name:          name,
		uuidGenerator: uuidGenerator,
	}
}

func (ds *fileDocumentStorage) Get() ([]byte, error) {
	f, err := ds.directory.OpenRead(ds.name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.Errorf(codes.NotFound, "Document %#v does not exist", ds.name.String())
		}
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to open document %#v", ds.name.String())
	}
	defer f.Close()

	size, err := f.Len()
	if err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to obtain size of document %#v", ds.name.String())
	}
	document := make([]byte, size)
	if n, err := f.ReadAt(document, 0); n != len(document) {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to read document %#v", ds.name.String())
	}
	return document, nil
}

func (ds *fileDocumentStorage) Put(document []byte) error {
	id, err := ds.uuidGenerator()
	if err != nil {
		return util.StatusWrapWithCode(err, codes.Internal, "Failed to generate name of temporary file")
	}
	temporaryName := path.MustNewComponent(fmt.Sprintf(".%s.%s.tmp", ds.name.String(), id.String()))
	if err := ds.writeTemporaryFile(temporaryName, document); err != nil {
		ds.directory.Remove(temporaryName)
		return util.StatusWrapfWithCode(err, codes.Internal, "Failed to write temporary file %#v", temporaryName.String())
	}
	if err := ds.directory.Rename(temporaryName, ds.directory, ds.name); err != nil {
		ds.directory.Remove(temporaryName)
		return util.StatusWrapfWithCode(err, codes.Internal, "Failed to replace document %#v", ds.name.String())
	}
	if err := ds.directory.Sync(); err != nil {
		return util.StatusWrapfWithCode(err, codes.Internal, "Failed to synchronize directory containing document %#v", ds.name.String())
	}
	return nil
}

func (ds *fileDocumentStorage) writeTemporaryFile(name path.Component, document []byte) error {
	f, err := ds.directory.OpenWrite(name, filesystem.CreateExcl(0o644))
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(document, 0); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
