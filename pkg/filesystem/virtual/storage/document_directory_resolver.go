package storage

import (
	"strings"
	"syscall"

	"github.com/buildbarn/bb-storage/pkg/filesystem"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// documentDirectoryResolver is an implementation of path.ScopeWalker
// and path.ComponentWalker that is used by OpenDocumentDirectory() to
// traverse to the directory containing a document on the host file
// system.
type documentDirectoryResolver struct {
	stack []filesystem.DirectoryCloser
	name  *path.Component

	// Number of ".." components that have been applied to the
	// working directory, if the path is relative.
	relative        bool
	parentDirectory int
}

func (r *documentDirectoryResolver) openBase(p string) (path.ComponentWalker, error) {
	d, err := filesystem.NewLocalDirectory(path.LocalFormat.NewParser(p))
	if err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to open directory %#v", p)
	}
	r.closeAll()
	r.stack = []filesystem.DirectoryCloser{d}
	return r, nil
}

func (r *documentDirectoryResolver) OnAbsolute() (path.ComponentWalker, error) {
	r.relative = false
	r.parentDirectory = 0
	return r.openBase("/")
}

func (r *documentDirectoryResolver) OnRelative() (path.ComponentWalker, error) {
	r.relative = true
	return r.openBase(".")
}

func (r *documentDirectoryResolver) OnDriveLetter(drive rune) (path.ComponentWalker, error) {
	return nil, status.Error(codes.InvalidArgument, "Paths containing drive letters are not supported")
}

func (r *documentDirectoryResolver) OnShare(server, share string) (path.ComponentWalker, error) {
	return nil, status.Error(codes.InvalidArgument, "Paths referring to network shares are not supported")
}

func (r *documentDirectoryResolver) OnDirectory(name path.Component) (path.GotDirectoryOrSymlink, error) {
	d := r.stack[len(r.stack)-1]
	child, err := d.EnterDirectory(name)
	if err == syscall.ENOTDIR {
		if target, err := d.Readlink(name); err == nil {
			return path.GotSymlink{
				Parent: symlinkScopeWalker{resolver: r},
				Target: target,
			}, nil
		}
	}
	if err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Internal, "Failed to enter directory %#v", name.String())
	}
	r.stack = append(r.stack, child)
	return path.GotDirectory{
		Child:        r,
		IsReversible: true,
	}, nil
}

func (r *documentDirectoryResolver) OnTerminal(name path.Component) (*path.GotSymlink, error) {
	r.name = &name
	return nil, nil
}

func (r *documentDirectoryResolver) OnUp() (path.ComponentWalker, error) {
	if len(r.stack) > 1 {
		if err := r.stack[len(r.stack)-1].Close(); err != nil {
			return nil, err
		}
		r.stack = r.stack[:len(r.stack)-1]
		return r, nil
	}
	if !r.relative {
		// The parent of the root directory is the root
		// directory itself.
		return r, nil
	}
	r.parentDirectory++
	return r.openBase(strings.Repeat("../", r.parentDirectory))
}

// symlinkScopeWalker resolves the target of a symbolic link. Relative
// targets are resolved against the directory containing the symbolic
// link.
type symlinkScopeWalker struct {
	resolver *documentDirectoryResolver
}

func (w symlinkScopeWalker) OnAbsolute() (path.ComponentWalker, error) {
	return w.resolver.OnAbsolute()
}

func (w symlinkScopeWalker) OnRelative() (path.ComponentWalker, error) {
	return w.resolver, nil
}

func (w symlinkScopeWalker) OnDriveLetter(drive rune) (path.ComponentWalker, error) {
	return w.resolver.OnDriveLetter(drive)
}

func (w symlinkScopeWalker) OnShare(server, share string) (path.ComponentWalker, error) {
	return w.resolver.OnShare(server, share)
}

func (r *documentDirectoryResolver) closeAll() {
	for _, d := range r.stack {
		d.Close()
	}
	r.stack = nil
}

// OpenDocumentDirectory opens the directory on the host file system
// that contains the document at a given path. The directory and the
// filename of the document are returned, so that they may be provided
// to NewFileDocumentStorage().
func OpenDocumentDirectory(documentPath path.Parser) (filesystem.DirectoryCloser, path.Component, error) {
	resolver := documentDirectoryResolver{}
	if err := path.Resolve(documentPath, &resolver); err != nil {
		resolver.closeAll()
		return nil, path.Component{}, util.StatusWrap(err, "Failed to resolve document path")
	}
	if resolver.name == nil {
		resolver.closeAll()
		return nil, path.Component{}, status.Error(codes.InvalidArgument, "Document path resolves to a directory")
	}

	// Only retain the directory containing the document.
	for _, d := range resolver.stack[:len(resolver.stack)-1] {
		d.Close()
	}
	return resolver.stack[len(resolver.stack)-1], *resolver.name, nil
}
