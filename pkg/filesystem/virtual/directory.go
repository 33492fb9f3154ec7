package virtual

import (
	"fmt"
	"time"
)

// directoryEntry is a child of a directory, stored in
// directoryContents.
type directoryEntry struct {
	child DirectoryChild

	key      NormalizedComponent
	previous *directoryEntry
	next     *directoryEntry
}

// directoryContents contains the children of a directory. Entries are
// stored both in a map and a list. The latter is needed to let
// listings and serialization follow insertion order.
type directoryContents struct {
	entriesMap  map[NormalizedComponent]*directoryEntry
	entriesList directoryEntry
}

// initialize the directory contents by making it empty.
func (c *directoryContents) initialize() {
	c.entriesMap = map[NormalizedComponent]*directoryEntry{}
	c.entriesList.previous = &c.entriesList
	c.entriesList.next = &c.entriesList
}

func (c *directoryContents) lookup(key NormalizedComponent) (*directoryEntry, bool) {
	entry, ok := c.entriesMap[key]
	return entry, ok
}

// attach a directory or file at the end of the directory contents.
func (c *directoryContents) attach(key NormalizedComponent, child DirectoryChild) {
	if _, ok := c.entriesMap[key]; ok {
		panic(fmt.Sprintf("Directory already contains an entry with key %#v", key))
	}
	entry := &directoryEntry{
		child: child,

		key:      key,
		previous: c.entriesList.previous,
		next:     &c.entriesList,
	}
	c.entriesMap[key] = entry
	entry.previous.next = entry
	entry.next.previous = entry
}

// detach an entry from the directory contents. Any subtree below it
// becomes unreachable.
func (c *directoryContents) detach(entry *directoryEntry) {
	delete(c.entriesMap, entry.key)
	entry.previous.next = entry.next
	entry.next.previous = entry.previous
	entry.previous = nil
	entry.next = nil
}

// getChildren returns all children in insertion order.
func (c *directoryContents) getChildren() []DirectoryChild {
	children := make([]DirectoryChild, 0, len(c.entriesMap))
	for entry := c.entriesList.next; entry != &c.entriesList; entry = entry.next {
		children = append(children, entry.child)
	}
	return children
}

// Directory is a node of the file system tree that contains other
// files and directories.
type Directory struct {
	name        string
	permissions string
	createdAt   time.Time
	modifiedAt  time.Time
	contents    directoryContents
}

var _ Node = (*Directory)(nil)

func newDirectory(name string, now time.Time) *Directory {
	d := &Directory{
		name:        name,
		permissions: defaultDirectoryPermissions,
		createdAt:   now,
		modifiedAt:  now,
	}
	d.contents.initialize()
	return d
}

// GetName returns the name of the directory. The root directory is
// named "/".
func (d *Directory) GetName() string {
	return d.name
}

// GetInfo returns the metadata of the directory.
func (d *Directory) GetInfo() FileInfo {
	return FileInfo{
		Name:        d.name,
		Permissions: d.permissions,
		IsDirectory: true,
		SizeBytes:   d.getSizeBytes(),
		CreatedAt:   d.createdAt,
		ModifiedAt:  d.modifiedAt,
	}
}

func (d *Directory) getSizeBytes() int {
	size := 0
	for _, child := range d.contents.getChildren() {
		switch directory, file := child.GetPair(); {
		case directory != nil:
			size += directory.getSizeBytes()
		case file != nil:
			size += len(file.content)
		}
	}
	return size
}
