package storage

// DocumentStorage stores a single serialized document, such as the
// JSON representation of a file system tree. Every call to Put()
// replaces the document as a whole.
type DocumentStorage interface {
	// Get the current contents of the document. NotFound is
	// returned if no document has been stored yet.
	Get() ([]byte, error)
	Put(document []byte) error
}
