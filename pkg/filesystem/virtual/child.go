package virtual

// DirectoryChild is a variant type that either contains a directory or
// a file. Call sites are expected to use GetPair() and handle both
// cases explicitly.
type DirectoryChild struct {
	directory *Directory
	file      *File
}

// FromDirectory creates a DirectoryChild that contains a directory.
func (DirectoryChild) FromDirectory(directory *Directory) DirectoryChild {
	return DirectoryChild{directory: directory}
}

// FromFile creates a DirectoryChild that contains a file.
func (DirectoryChild) FromFile(file *File) DirectoryChild {
	return DirectoryChild{file: file}
}

// IsSet returns true if the DirectoryChild contains either a directory
// or a file.
func (c DirectoryChild) IsSet() bool {
	return c.directory != nil || c.file != nil
}

// GetNode returns the value of the child as a single object, making it
// possible to call into methods that are provided by both directories
// and files.
func (c DirectoryChild) GetNode() Node {
	switch {
	case c.directory != nil:
		return c.directory
	case c.file != nil:
		return c.file
	default:
		panic("DirectoryChild is not set")
	}
}

// GetPair returns the value of the child as a directory or file,
// making it possible to call into methods specific to either type.
// Exactly one of the return values is non-nil if the child is set.
func (c DirectoryChild) GetPair() (*Directory, *File) {
	return c.directory, c.file
}
