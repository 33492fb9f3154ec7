package storage

import (
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type inMemoryDocumentStorage struct {
	lock     sync.Mutex
	document []byte
}

// NewInMemoryDocumentStorage creates a DocumentStorage that only keeps
// the document in memory. It is used when no data file is configured,
// causing all state to be lost upon termination.
func NewInMemoryDocumentStorage() DocumentStorage {
	return &inMemoryDocumentStorage{}
}

func (ds *inMemoryDocumentStorage) Get() ([]byte, error) {
	ds.lock.Lock()
	defer ds.lock.Unlock()

	if ds.document == nil {
		return nil, status.Error(codes.NotFound, "No document has been stored")
	}
	return append([]byte(nil), ds.document...), nil
}

func (ds *inMemoryDocumentStorage) Put(document []byte) error {
	ds.lock.Lock()
	defer ds.lock.Unlock()

	ds.document = append(make([]byte, 0, len(document)), document...)
	return nil
}
