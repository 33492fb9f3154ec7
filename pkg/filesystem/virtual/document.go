package virtual

import (
	"bytes"
	"encoding/json"

	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"
	re_util "github.com/simos-project/simos/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// nodeDocument is the JSON representation of a single file or
// directory. Files have their contents set, while directories have
// their items set.
type nodeDocument struct {
	Name        string            `json:"name"`
	CreatedAt   re_util.Timestamp `json:"created_at"`
	ModifiedAt  re_util.Timestamp `json:"modified_at"`
	Permissions string            `json:"permissions"`
	Content     *string           `json:"content,omitempty"`
	Size        *int              `json:"size,omitempty"`
	Items       *itemsDocument    `json:"items,omitempty"`
}

type itemDocument struct {
	name string
	node *nodeDocument
}

// itemsDocument is the JSON representation of the children of a
// directory. It is encoded as an object keyed by filename. The order
// of the keys matches the order in which the children were created,
// which encoding/json does not preserve for maps.
type itemsDocument struct {
	items []itemDocument
}

func (d *itemsDocument) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, item := range d.items {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(item.name)
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteByte(':')
		node, err := json.Marshal(item.node)
		if err != nil {
			return nil, err
		}
		b.Write(node)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (d *itemsDocument) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if token, err := decoder.Token(); err != nil {
		return err
	} else if token != json.Delim('{') {
		return status.Error(codes.InvalidArgument, "Items must be an object")
	}
	d.items = nil
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		name, ok := token.(string)
		if !ok {
			return status.Error(codes.InvalidArgument, "Item names must be strings")
		}
		var node nodeDocument
		if err := decoder.Decode(&node); err != nil {
			return util.StatusWrapfWithCode(err, codes.InvalidArgument, "Item %#v", name)
		}
		d.items = append(d.items, itemDocument{name: name, node: &node})
	}
	_, err := decoder.Token()
	return err
}

func marshalNode(child DirectoryChild) *nodeDocument {
	switch directory, file := child.GetPair(); {
	case directory != nil:
		children := directory.contents.getChildren()
		items := &itemsDocument{
			items: make([]itemDocument, 0, len(children)),
		}
		for _, child := range children {
			items.items = append(items.items, itemDocument{
				name: child.GetNode().GetName(),
				node: marshalNode(child),
			})
		}
		return &nodeDocument{
			Name:        directory.name,
			CreatedAt:   re_util.Timestamp{Time: directory.createdAt},
			ModifiedAt:  re_util.Timestamp{Time: directory.modifiedAt},
			Permissions: directory.permissions,
			Items:       items,
		}
	case file != nil:
		content := string(file.content)
		size := len(file.content)
		return &nodeDocument{
			Name:        file.name,
			CreatedAt:   re_util.Timestamp{Time: file.createdAt},
			ModifiedAt:  re_util.Timestamp{Time: file.modifiedAt},
			Permissions: file.permissions,
			Content:     &content,
			Size:        &size,
		}
	default:
		panic("DirectoryChild is not set")
	}
}

// marshalTree converts a file system tree to a JSON document.
func marshalTree(root *Directory) ([]byte, error) {
	return json.MarshalIndent(marshalNode(DirectoryChild{}.FromDirectory(root)), "", "    ")
}

func permissionsOrDefault(permissions, defaultPermissions string) string {
	if permissions == "" {
		return defaultPermissions
	}
	return permissions
}

func unmarshalDirectory(document *nodeDocument, name string, normalizer ComponentNormalizer) (*Directory, error) {
	directory := &Directory{
		name:        name,
		permissions: permissionsOrDefault(document.Permissions, defaultDirectoryPermissions),
		createdAt:   document.CreatedAt.Time,
		modifiedAt:  document.ModifiedAt.Time,
	}
	directory.contents.initialize()
	for _, item := range document.Items.items {
		component, ok := path.NewComponent(item.name)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "Invalid name %#v", item.name)
		}
		key := normalizer(component)
		if _, ok := directory.contents.lookup(key); ok {
			return nil, status.Errorf(codes.InvalidArgument, "Duplicate entry %#v", item.name)
		}

		if item.node.Items != nil {
			child, err := unmarshalDirectory(item.node, item.name, normalizer)
			if err != nil {
				return nil, util.StatusWrapf(err, "In directory %#v", item.name)
			}
			directory.contents.attach(key, DirectoryChild{}.FromDirectory(child))
		} else {
			file := &File{
				name:        item.name,
				permissions: permissionsOrDefault(item.node.Permissions, defaultFilePermissions),
				createdAt:   item.node.CreatedAt.Time,
				modifiedAt:  item.node.ModifiedAt.Time,
			}
			if item.node.Content != nil {
				file.content = []byte(*item.node.Content)
			}
			directory.contents.attach(key, DirectoryChild{}.FromFile(file))
		}
	}
	return directory, nil
}

// unmarshalTree converts a JSON document back to a file system tree.
// Names of directory entries are taken from the keys of the "items"
// objects.
func unmarshalTree(data []byte, normalizer ComponentNormalizer) (*Directory, error) {
	var document nodeDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Malformed document")
	}
	if document.Items == nil {
		return nil, status.Error(codes.InvalidArgument, "Root of the document is not a directory")
	}
	return unmarshalDirectory(&document, "/", normalizer)
}
