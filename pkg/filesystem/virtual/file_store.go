package virtual

import (
	"strings"
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/simos-project/simos/pkg/filesystem/virtual/storage"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FileStore is a hierarchical namespace of files and directories,
// rooted at "/". Paths may either be absolute, or relative to the
// current directory of the store. Names are single path components.
type FileStore interface {
	CreateFile(dirPath, name, content string) (FileInfo, error)
	CreateDirectory(parentPath, name string) (FileInfo, error)
	ReadFile(dirPath, name string) (string, error)
	WriteFile(dirPath, name, content string) error
	Delete(dirPath, name string) error
	ListDirectory(path string) ([]DirectoryEntry, error)
	// ChangeDirectory resolves target relative to current, and
	// makes it the current directory of the store. The canonical
	// form of the new current directory is returned.
	ChangeDirectory(current, target string) (string, error)
	GetCurrentDirectory() string
	Stat(path string) (FileInfo, error)
	// Save writes the full tree to storage. This is done
	// automatically after every modification.
	Save() error
}

type fileStore struct {
	documentStorage storage.DocumentStorage
	clock           clock.Clock
	normalizer      ComponentNormalizer

	lock    sync.Mutex
	root    *Directory
	current []string
}

// NewFileStore creates a FileStore that keeps the file system tree in
// memory, writing it to a DocumentStorage after every change.
//
// The initial tree is loaded from the DocumentStorage. If no document
// has been stored yet, a tree containing the initial directories is
// created. A document that cannot be read or parsed is reported through
// the ErrorLogger. In that case a new tree containing the initial
// directories is used, which will replace the document upon the first
// modification.
func NewFileStore(documentStorage storage.DocumentStorage, clock clock.Clock, errorLogger util.ErrorLogger, normalizer ComponentNormalizer, initialDirectories []path.Component) FileStore {
	fs := &fileStore{
		documentStorage: documentStorage,
		clock:           clock,
		normalizer:      normalizer,
	}

	document, err := documentStorage.Get()
	if err == nil {
		root, err := unmarshalTree(document, normalizer)
		if err == nil {
			fs.root = root
			return fs
		}
		errorLogger.Log(util.StatusWrap(err, "Failed to parse file system, starting with a new file system"))
		fs.root = newSeededDirectory(clock.Now(), normalizer, initialDirectories)
		return fs
	} else if status.Code(err) != codes.NotFound {
		errorLogger.Log(util.StatusWrap(err, "Failed to load file system, starting with a new file system"))
		fs.root = newSeededDirectory(clock.Now(), normalizer, initialDirectories)
		return fs
	}

	fs.root = newSeededDirectory(clock.Now(), normalizer, initialDirectories)
	if err := fs.save(); err != nil {
		errorLogger.Log(err)
	}
	return fs
}

// newSeededDirectory creates a root directory that contains a set of
// empty subdirectories.
func newSeededDirectory(now time.Time, normalizer ComponentNormalizer, initialDirectories []path.Component) *Directory {
	root := newDirectory("/", now)
	for _, name := range initialDirectories {
		key := normalizer(name)
		if _, ok := root.contents.lookup(key); !ok {
			root.contents.attach(key, DirectoryChild{}.FromDirectory(newDirectory(name.String(), now)))
		}
	}
	return root
}

func formatPath(names []string) string {
	return "/" + strings.Join(names, "/")
}

// getCurrentStack returns the directories from the root up to and
// including the current directory, and their names.
func (fs *fileStore) getCurrentStack() ([]*Directory, []string) {
	stack := []*Directory{fs.root}
	names := make([]string, 0, len(fs.current))
	for _, name := range fs.current {
		entry, ok := stack[len(stack)-1].contents.lookup(fs.normalizer(path.MustNewComponent(name)))
		if !ok {
			break
		}
		directory, _ := entry.child.GetPair()
		if directory == nil {
			break
		}
		stack = append(stack, directory)
		names = append(names, directory.name)
	}
	return stack, names
}

// resolve a path, starting at the root directory if the path is
// absolute, or the current directory otherwise. The final component of
// the path may refer to a file. Along with the resulting node, the
// names of all nodes traversed are returned, so that the canonical
// form of the path can be reconstructed.
//
// "." components are ignored, while ".." components move to the parent
// directory. Moving up from the root directory is a no-op.
func (fs *fileStore) resolve(p string) (DirectoryChild, []string) {
	var stack []*Directory
	var names []string
	if strings.HasPrefix(p, "/") {
		stack = []*Directory{fs.root}
	} else {
		stack, names = fs.getCurrentStack()
	}

	components := strings.Split(p, "/")
	for i, c := range components {
		switch c {
		case "", ".":
			continue
		case "..":
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
				names = names[:len(names)-1]
			}
			continue
		}
		component, ok := path.NewComponent(c)
		if !ok {
			return DirectoryChild{}, nil
		}
		entry, ok := stack[len(stack)-1].contents.lookup(fs.normalizer(component))
		if !ok {
			return DirectoryChild{}, nil
		}
		switch directory, file := entry.child.GetPair(); {
		case directory != nil:
			stack = append(stack, directory)
			names = append(names, directory.name)
		case file != nil:
			// Files can only be the final component,
			// optionally followed by trailing slashes.
			for _, remaining := range components[i+1:] {
				if remaining != "" {
					return DirectoryChild{}, nil
				}
			}
			return DirectoryChild{}.FromFile(file), append(names, file.name)
		}
	}
	return DirectoryChild{}.FromDirectory(stack[len(stack)-1]), names
}

func (fs *fileStore) resolveDirectory(p string) (*Directory, []string, error) {
	child, names := fs.resolve(p)
	if directory, _ := child.GetPair(); directory != nil {
		return directory, names, nil
	}
	return nil, nil, status.Errorf(codes.NotFound, "Directory %#v does not exist", p)
}

func newComponent(name string) (path.Component, error) {
	component, ok := path.NewComponent(name)
	if !ok {
		return path.Component{}, status.Errorf(codes.InvalidArgument, "Invalid name %#v", name)
	}
	return component, nil
}

// lookupEntry obtains an existing entry in a directory.
func (fs *fileStore) lookupEntry(dirPath, name string) (*Directory, *directoryEntry, error) {
	parent, _, err := fs.resolveDirectory(dirPath)
	if err != nil {
		return nil, nil, err
	}
	component, err := newComponent(name)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := parent.contents.lookup(fs.normalizer(component))
	if !ok {
		return nil, nil, status.Errorf(codes.NotFound, "%#v does not exist in directory %#v", name, dirPath)
	}
	return parent, entry, nil
}

// lookupFile obtains an existing file in a directory.
func (fs *fileStore) lookupFile(dirPath, name string) (*Directory, *File, error) {
	parent, entry, err := fs.lookupEntry(dirPath, name)
	if err != nil {
		return nil, nil, err
	}
	switch directory, file := entry.child.GetPair(); {
	case directory != nil:
		return nil, nil, status.Errorf(codes.FailedPrecondition, "%#v in directory %#v is a directory", name, dirPath)
	default:
		return parent, file, nil
	}
}

// attachNew adds a new file or directory to a directory, after
// checking that the name is not in use.
func (fs *fileStore) attachNew(dirPath, name string, create func(name string, now time.Time) DirectoryChild) (FileInfo, error) {
	parent, _, err := fs.resolveDirectory(dirPath)
	if err != nil {
		return FileInfo{}, err
	}
	component, err := newComponent(name)
	if err != nil {
		return FileInfo{}, err
	}
	key := fs.normalizer(component)
	if _, ok := parent.contents.lookup(key); ok {
		return FileInfo{}, status.Errorf(codes.AlreadyExists, "%#v already exists in directory %#v", name, dirPath)
	}

	now := fs.clock.Now()
	child := create(component.String(), now)
	parent.contents.attach(key, child)
	parent.modifiedAt = now
	if err := fs.save(); err != nil {
		return FileInfo{}, err
	}
	return child.GetNode().GetInfo(), nil
}

func (fs *fileStore) CreateFile(dirPath, name, content string) (FileInfo, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.attachNew(dirPath, name, func(name string, now time.Time) DirectoryChild {
		return DirectoryChild{}.FromFile(newFile(name, []byte(content), now))
	})
}

func (fs *fileStore) CreateDirectory(parentPath, name string) (FileInfo, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.attachNew(parentPath, name, func(name string, now time.Time) DirectoryChild {
		return DirectoryChild{}.FromDirectory(newDirectory(name, now))
	})
}

func (fs *fileStore) ReadFile(dirPath, name string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	_, file, err := fs.lookupFile(dirPath, name)
	if err != nil {
		return "", err
	}
	return string(file.content), nil
}

func (fs *fileStore) WriteFile(dirPath, name, content string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	parent, file, err := fs.lookupFile(dirPath, name)
	if err != nil {
		return err
	}
	now := fs.clock.Now()
	file.write([]byte(content), now)
	parent.modifiedAt = now
	return fs.save()
}

func (fs *fileStore) Delete(dirPath, name string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	parent, entry, err := fs.lookupEntry(dirPath, name)
	if err != nil {
		return err
	}
	parent.contents.detach(entry)
	parent.modifiedAt = fs.clock.Now()

	// The current directory may have been part of the subtree that
	// got removed. Move to the closest directory that still exists.
	_, fs.current = fs.getCurrentStack()
	return fs.save()
}

func (fs *fileStore) ListDirectory(p string) ([]DirectoryEntry, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	directory, _, err := fs.resolveDirectory(p)
	if err != nil {
		return nil, err
	}
	children := directory.contents.getChildren()
	entries := make([]DirectoryEntry, 0, len(children))
	for _, child := range children {
		info := child.GetNode().GetInfo()
		entries = append(entries, DirectoryEntry{
			Name:        info.Name,
			IsDirectory: info.IsDirectory,
			SizeBytes:   info.SizeBytes,
		})
	}
	return entries, nil
}

func (fs *fileStore) ChangeDirectory(current, target string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if !strings.HasPrefix(target, "/") {
		if current == "" {
			_, names := fs.getCurrentStack()
			current = formatPath(names)
		}
		target = current + "/" + target
	}
	_, names, err := fs.resolveDirectory(cleanPath(target))
	if err != nil {
		return "", err
	}
	fs.current = names
	return formatPath(names), nil
}

// cleanPath removes "." and ".." components from an absolute path
// lexically. ".." always removes the preceding component, even if that
// component does not refer to an existing directory.
func cleanPath(p string) string {
	var names []string
	for _, component := range strings.Split(p, "/") {
		switch component {
		case "", ".":
		case "..":
			if len(names) > 0 {
				names = names[:len(names)-1]
			}
		default:
			names = append(names, component)
		}
	}
	return formatPath(names)
}

func (fs *fileStore) GetCurrentDirectory() string {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	_, names := fs.getCurrentStack()
	return formatPath(names)
}

func (fs *fileStore) Stat(p string) (FileInfo, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	child, _ := fs.resolve(p)
	if !child.IsSet() {
		return FileInfo{}, status.Errorf(codes.NotFound, "Path %#v does not exist", p)
	}
	return child.GetNode().GetInfo(), nil
}

func (fs *fileStore) Save() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.save()
}

func (fs *fileStore) save() error {
	document, err := marshalTree(fs.root)
	if err != nil {
		return util.StatusWrap(err, "Failed to serialize file system")
	}
	if err := fs.documentStorage.Put(document); err != nil {
		return util.StatusWrap(err, "Failed to save file system")
	}
	return nil
}
