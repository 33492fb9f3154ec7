package virtual_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/simos-project/simos/internal/mock"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/filesystem/virtual/storage"
	"github.com/stretchr/testify/require"

	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// newTestFileStore creates a FileStore backed by volatile storage
// without any initial directories.
func newTestFileStore(ctrl *gomock.Controller) (virtual.FileStore, storage.DocumentStorage) {
	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0)).AnyTimes()
	documentStorage := storage.NewInMemoryDocumentStorage()
	fileStore := virtual.NewFileStore(
		documentStorage,
		clock,
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseSensitiveComponentNormalizer,
		nil)
	return fileStore, documentStorage
}

func TestFileStoreExample(t *testing.T) {
	ctrl := gomock.NewController(t)

	fileStore, _ := newTestFileStore(ctrl)

	_, err := fileStore.CreateDirectory("/", "docs")
	require.NoError(t, err)
	_, err = fileStore.CreateFile("/docs", "a.txt", "hi")
	require.NoError(t, err)

	content, err := fileStore.ReadFile("/docs", "a.txt")
	require.NoError(t, err)
	require.Equal(t, "hi", content)

	entries, err := fileStore.ListDirectory("/docs")
	require.NoError(t, err)
	require.Equal(t, []virtual.DirectoryEntry{
		{Name: "a.txt", SizeBytes: 2},
	}, entries)

	newPath, err := fileStore.ChangeDirectory("/docs", "..")
	require.NoError(t, err)
	require.Equal(t, "/", newPath)
}

func TestFileStoreInitialDirectories(t *testing.T) {
	ctrl := gomock.NewController(t)

	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0))
	documentStorage := mock.NewMockDocumentStorage(ctrl)
	documentStorage.EXPECT().Get().Return(nil, status.Error(codes.NotFound, "Document \"file_system.json\" does not exist"))
	documentStorage.EXPECT().Put(gomock.Any())
	fileStore := virtual.NewFileStore(
		documentStorage,
		clock,
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseSensitiveComponentNormalizer,
		[]path.Component{
			path.MustNewComponent("bin"),
			path.MustNewComponent("etc"),
			path.MustNewComponent("home"),
			path.MustNewComponent("bin"),
		})

	entries, err := fileStore.ListDirectory("/")
	require.NoError(t, err)
	require.Equal(t, []virtual.DirectoryEntry{
		{Name: "bin", IsDirectory: true},
		{Name: "etc", IsDirectory: true},
		{Name: "home", IsDirectory: true},
	}, entries)
	require.Equal(t, "/", fileStore.GetCurrentDirectory())
}

func TestFileStoreCreate(t *testing.T) {
	ctrl := gomock.NewController(t)

	fileStore, _ := newTestFileStore(ctrl)
	_, err := fileStore.CreateDirectory("/", "docs")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		info, err := fileStore.CreateFile("/docs", "notes.txt", "Hello")
		require.NoError(t, err)
		require.Equal(t, virtual.FileInfo{
			Name:        "notes.txt",
			Permissions: "rw-r--r--",
			SizeBytes:   5,
			CreatedAt:   time.Unix(1000, 0),
			ModifiedAt:  time.Unix(1000, 0),
		}, info)

		info, err = fileStore.CreateDirectory("/docs", "drafts")
		require.NoError(t, err)
		require.Equal(t, virtual.FileInfo{
			Name:        "drafts",
			Permissions: "rwxr-xr-x",
			IsDirectory: true,
			CreatedAt:   time.Unix(1000, 0),
			ModifiedAt:  time.Unix(1000, 0),
		}, info)
	})

	t.Run("AlreadyExists", func(t *testing.T) {
		// Names collide regardless of the type of the existing
		// entry.
		_, err := fileStore.CreateFile("/docs", "notes.txt", "")
		testutil.RequireEqualStatus(t, status.Error(codes.AlreadyExists, "\"notes.txt\" already exists in directory \"/docs\""), err)
		_, err = fileStore.CreateDirectory("/docs", "notes.txt")
		testutil.RequireEqualStatus(t, status.Error(codes.AlreadyExists, "\"notes.txt\" already exists in directory \"/docs\""), err)
		_, err = fileStore.CreateFile("/docs", "drafts", "")
		testutil.RequireEqualStatus(t, status.Error(codes.AlreadyExists, "\"drafts\" already exists in directory \"/docs\""), err)
	})

	t.Run("DirectoryNotFound", func(t *testing.T) {
		_, err := fileStore.CreateFile("/nonexistent", "a.txt", "")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Directory \"/nonexistent\" does not exist"), err)
		_, err = fileStore.CreateDirectory("/docs/notes.txt", "sub")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Directory \"/docs/notes.txt\" does not exist"), err)
	})

	t.Run("InvalidName", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "a/b"} {
			_, err := fileStore.CreateFile("/docs", name, "")
			require.Equal(t, codes.InvalidArgument, status.Code(err), name)
		}
	})
}

func TestFileStoreReadWrite(t *testing.T) {
	ctrl := gomock.NewController(t)

	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0)).Times(3)
	fileStore := virtual.NewFileStore(
		storage.NewInMemoryDocumentStorage(),
		clock,
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseSensitiveComponentNormalizer,
		nil)

	_, err := fileStore.CreateDirectory("/", "docs")
	require.NoError(t, err)
	_, err = fileStore.CreateFile("/docs", "a.txt", "")
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		clock.EXPECT().Now().Return(time.Unix(1100, 0))
		require.NoError(t, fileStore.WriteFile("/docs", "a.txt", "Hello, world"))

		content, err := fileStore.ReadFile("/docs", "a.txt")
		require.NoError(t, err)
		require.Equal(t, "Hello, world", content)

		// Both the file and its parent directory should have
		// their modification time updated.
		info, err := fileStore.Stat("/docs/a.txt")
		require.NoError(t, err)
		require.Equal(t, virtual.FileInfo{
			Name:        "a.txt",
			Permissions: "rw-r--r--",
			SizeBytes:   12,
			CreatedAt:   time.Unix(1000, 0),
			ModifiedAt:  time.Unix(1100, 0),
		}, info)
		info, err = fileStore.Stat("/docs")
		require.NoError(t, err)
		require.Equal(t, time.Unix(1100, 0), info.ModifiedAt)
		require.Equal(t, 12, info.SizeBytes)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := fileStore.ReadFile("/docs", "b.txt")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "\"b.txt\" does not exist in directory \"/docs\""), err)
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.NotFound, "\"b.txt\" does not exist in directory \"/docs\""),
			fileStore.WriteFile("/docs", "b.txt", "x"))
	})

	t.Run("DirectoryNotFound", func(t *testing.T) {
		_, err := fileStore.ReadFile("/nonexistent", "a.txt")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Directory \"/nonexistent\" does not exist"), err)
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.NotFound, "Directory \"/nonexistent\" does not exist"),
			fileStore.WriteFile("/nonexistent", "a.txt", "x"))
	})

	t.Run("NotAFile", func(t *testing.T) {
		_, err := fileStore.ReadFile("/", "docs")
		testutil.RequireEqualStatus(t, status.Error(codes.FailedPrecondition, "\"docs\" in directory \"/\" is a directory"), err)
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.FailedPrecondition, "\"docs\" in directory \"/\" is a directory"),
			fileStore.WriteFile("/", "docs", "x"))
	})
}

func TestFileStoreDelete(t *testing.T) {
	ctrl := gomock.NewController(t)

	fileStore, _ := newTestFileStore(ctrl)
	_, err := fileStore.CreateDirectory("/", "a")
	require.NoError(t, err)
	_, err = fileStore.CreateDirectory("/a", "b")
	require.NoError(t, err)
	_, err = fileStore.CreateFile("/a/b", "c.txt", "c")
	require.NoError(t, err)
	_, err = fileStore.CreateFile("/", "top.txt", "top")
	require.NoError(t, err)

	t.Run("File", func(t *testing.T) {
		require.NoError(t, fileStore.Delete("/", "top.txt"))
		_, err := fileStore.ReadFile("/", "top.txt")
		require.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("NotFound", func(t *testing.T) {
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.NotFound, "\"top.txt\" does not exist in directory \"/\""),
			fileStore.Delete("/", "top.txt"))
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.NotFound, "Directory \"/x\" does not exist"),
			fileStore.Delete("/x", "top.txt"))
	})

	t.Run("DirectoryContainingCurrentDirectory", func(t *testing.T) {
		newPath, err := fileStore.ChangeDirectory("/", "a/b")
		require.NoError(t, err)
		require.Equal(t, "/a/b", newPath)

		// Removing a directory also removes its contents. The
		// current directory must move to the closest directory
		// that still exists.
		require.NoError(t, fileStore.Delete("/a", "b"))
		require.Equal(t, "/a", fileStore.GetCurrentDirectory())
		_, err = fileStore.ReadFile("/a/b", "c.txt")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Directory \"/a/b\" does not exist"), err)

		entries, err := fileStore.ListDirectory("/a")
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestFileStoreChangeDirectory(t *testing.T) {
	ctrl := gomock.NewController(t)

	fileStore, _ := newTestFileStore(ctrl)
	_, err := fileStore.CreateDirectory("/", "home")
	require.NoError(t, err)
	_, err = fileStore.CreateDirectory("/home", "user")
	require.NoError(t, err)
	_, err = fileStore.CreateFile("/home/user", "profile", "x")
	require.NoError(t, err)

	t.Run("Relative", func(t *testing.T) {
		newPath, err := fileStore.ChangeDirectory("/home", "user")
		require.NoError(t, err)
		require.Equal(t, "/home/user", newPath)
		require.Equal(t, "/home/user", fileStore.GetCurrentDirectory())
	})

	t.Run("ParentAtRoot", func(t *testing.T) {
		newPath, err := fileStore.ChangeDirectory("/", "..")
		require.NoError(t, err)
		require.Equal(t, "/", newPath)
	})

	t.Run("Absolute", func(t *testing.T) {
		newPath, err := fileStore.ChangeDirectory("/", "/home/user/")
		require.NoError(t, err)
		require.Equal(t, "/home/user", newPath)
	})

	t.Run("Normalization", func(t *testing.T) {
		newPath, err := fileStore.ChangeDirectory("/home/user", "./../../home//./user/..")
		require.NoError(t, err)
		require.Equal(t, "/home", newPath)
	})

	t.Run("FailureLeavesCurrentDirectoryUnchanged", func(t *testing.T) {
		_, err := fileStore.ChangeDirectory("/home", "nonexistent")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Directory \"/home/nonexistent\" does not exist"), err)
		require.Equal(t, "/home", fileStore.GetCurrentDirectory())

		// Files can't be entered.
		_, err = fileStore.ChangeDirectory("/home/user", "profile")
		testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Directory \"/home/user/profile\" does not exist"), err)
		require.Equal(t, "/home", fileStore.GetCurrentDirectory())
	})

	t.Run("ParentOfNonexistentDirectory", func(t *testing.T) {
		// ".." removes the last component of the current
		// directory, even if that directory no longer exists.
		newPath, err := fileStore.ChangeDirectory("/ghost", "..")
		require.NoError(t, err)
		require.Equal(t, "/", newPath)

		newPath, err = fileStore.ChangeDirectory("/home/ghost/deeper", "../../user")
		require.NoError(t, err)
		require.Equal(t, "/home/user", newPath)

		_, err = fileStore.ChangeDirectory("/ghost", "../nonexistent/..")
		require.NoError(t, err)
	})

	t.Run("RelativePathsUseCurrentDirectory", func(t *testing.T) {
		_, err := fileStore.ChangeDirectory("/", "/home/user")
		require.NoError(t, err)

		content, err := fileStore.ReadFile(".", "profile")
		require.NoError(t, err)
		require.Equal(t, "x", content)

		entries, err := fileStore.ListDirectory("")
		require.NoError(t, err)
		require.Equal(t, []virtual.DirectoryEntry{
			{Name: "profile", SizeBytes: 1},
		}, entries)

		entries, err = fileStore.ListDirectory("..")
		require.NoError(t, err)
		require.Equal(t, []virtual.DirectoryEntry{
			{Name: "user", IsDirectory: true, SizeBytes: 1},
		}, entries)
	})
}

func TestFileStoreStat(t *testing.T) {
	ctrl := gomock.NewController(t)

	fileStore, _ := newTestFileStore(ctrl)
	_, err := fileStore.CreateFile("/", "a.txt", "abc")
	require.NoError(t, err)

	info, err := fileStore.Stat("/")
	require.NoError(t, err)
	require.Equal(t, "/", info.Name)
	require.True(t, info.IsDirectory)

	_, err = fileStore.Stat("/a.txt/b")
	testutil.RequireEqualStatus(t, status.Error(codes.NotFound, "Path \"/a.txt/b\" does not exist"), err)
}

func TestFileStorePersistence(t *testing.T) {
	ctrl := gomock.NewController(t)

	fileStore, documentStorage := newTestFileStore(ctrl)
	for _, name := range []string{"zeta", "alpha", "mu"} {
		_, err := fileStore.CreateDirectory("/", name)
		require.NoError(t, err)
	}
	_, err := fileStore.CreateFile("/alpha", "a.txt", "hi")
	require.NoError(t, err)
	_, err = fileStore.CreateFile("/", "empty", "")
	require.NoError(t, err)

	t.Run("Format", func(t *testing.T) {
		document, err := documentStorage.Get()
		require.NoError(t, err)

		var root map[string]any
		require.NoError(t, json.Unmarshal(document, &root))
		require.Equal(t, "/", root["name"])
		require.Equal(t, "rwxr-xr-x", root["permissions"])
		createdAt, err := time.Parse(time.RFC3339Nano, root["created_at"].(string))
		require.NoError(t, err)
		require.True(t, createdAt.Equal(time.Unix(1000, 0)))
		require.NotContains(t, root, "content")

		items := root["items"].(map[string]any)
		file := items["alpha"].(map[string]any)["items"].(map[string]any)["a.txt"].(map[string]any)
		require.Equal(t, "hi", file["content"])
		require.Equal(t, float64(2), file["size"])
		require.NotContains(t, file, "items")
		require.Equal(t, "", items["empty"].(map[string]any)["content"])
	})

	t.Run("Reload", func(t *testing.T) {
		// A store loaded from the same document should contain
		// the same tree, with children in the same order.
		reloaded := virtual.NewFileStore(
			documentStorage,
			mock.NewMockClock(ctrl),
			mock.NewMockErrorLogger(ctrl),
			virtual.CaseSensitiveComponentNormalizer,
			[]path.Component{path.MustNewComponent("ignored")})

		entries, err := reloaded.ListDirectory("/")
		require.NoError(t, err)
		require.Equal(t, []virtual.DirectoryEntry{
			{Name: "zeta", IsDirectory: true},
			{Name: "alpha", IsDirectory: true, SizeBytes: 2},
			{Name: "mu", IsDirectory: true},
			{Name: "empty"},
		}, entries)

		content, err := reloaded.ReadFile("/alpha", "a.txt")
		require.NoError(t, err)
		require.Equal(t, "hi", content)

		original, err := fileStore.Stat("/alpha/a.txt")
		require.NoError(t, err)
		loaded, err := reloaded.Stat("/alpha/a.txt")
		require.NoError(t, err)
		require.True(t, original.CreatedAt.Equal(loaded.CreatedAt))
		require.Equal(t, original.Permissions, loaded.Permissions)
	})
}

func TestFileStoreLoadLocalTimestamps(t *testing.T) {
	ctrl := gomock.NewController(t)

	// Documents may contain timestamps in local time without a
	// time zone. These should be accepted, instead of causing the
	// document to be discarded.
	documentStorage := mock.NewMockDocumentStorage(ctrl)
	documentStorage.EXPECT().Get().Return([]byte(`{
    "name": "/",
    "created_at": "2024-05-01T10:00:00.123456",
    "modified_at": "2024-05-01T10:00:00.123456",
    "permissions": "rwxr-xr-x",
    "items": {
        "notes.txt": {
            "name": "notes.txt",
            "created_at": "2024-05-01T10:00:00",
            "modified_at": "2024-05-02 11:30:00",
            "permissions": "rw-r--r--",
            "content": "keep me",
            "size": 7
        }
    }
}`), nil)
	fileStore := virtual.NewFileStore(
		documentStorage,
		mock.NewMockClock(ctrl),
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseSensitiveComponentNormalizer,
		[]path.Component{path.MustNewComponent("tmp")})

	content, err := fileStore.ReadFile("/", "notes.txt")
	require.NoError(t, err)
	require.Equal(t, "keep me", content)

	info, err := fileStore.Stat("/notes.txt")
	require.NoError(t, err)
	require.True(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local).Equal(info.CreatedAt))
	require.True(t, time.Date(2024, 5, 2, 11, 30, 0, 0, time.Local).Equal(info.ModifiedAt))

	info, err = fileStore.Stat("/")
	require.NoError(t, err)
	require.True(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.Local).Equal(info.CreatedAt))
}

func TestFileStoreLoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("Corrupt", func(t *testing.T) {
		documentStorage := mock.NewMockDocumentStorage(ctrl)
		documentStorage.EXPECT().Get().Return([]byte(`{"name": "/"`), nil)
		clock := mock.NewMockClock(ctrl)
		clock.EXPECT().Now().Return(time.Unix(1000, 0))
		errorLogger := mock.NewMockErrorLogger(ctrl)
		errorLogger.EXPECT().Log(gomock.Any()).Do(func(err error) {
			require.Equal(t, codes.InvalidArgument, status.Code(err))
		})

		// The corrupt document should not be overwritten until
		// the first modification.
		fileStore := virtual.NewFileStore(
			documentStorage,
			clock,
			errorLogger,
			virtual.CaseSensitiveComponentNormalizer,
			[]path.Component{path.MustNewComponent("tmp")})
		entries, err := fileStore.ListDirectory("/")
		require.NoError(t, err)
		require.Equal(t, []virtual.DirectoryEntry{
			{Name: "tmp", IsDirectory: true},
		}, entries)
	})

	t.Run("RootIsFile", func(t *testing.T) {
		documentStorage := mock.NewMockDocumentStorage(ctrl)
		documentStorage.EXPECT().Get().Return([]byte(`{"name": "/", "content": "x"}`), nil)
		clock := mock.NewMockClock(ctrl)
		clock.EXPECT().Now().Return(time.Unix(1000, 0))
		errorLogger := mock.NewMockErrorLogger(ctrl)
		errorLogger.EXPECT().Log(gomock.Any()).Do(func(err error) {
			testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to parse file system, starting with a new file system: Root of the document is not a directory"), err)
		})

		virtual.NewFileStore(documentStorage, clock, errorLogger, virtual.CaseSensitiveComponentNormalizer, nil)
	})

	t.Run("InvalidName", func(t *testing.T) {
		documentStorage := mock.NewMockDocumentStorage(ctrl)
		documentStorage.EXPECT().Get().Return([]byte(`{"name": "/", "items": {"..": {"name": "..", "items": {}}}}`), nil)
		clock := mock.NewMockClock(ctrl)
		clock.EXPECT().Now().Return(time.Unix(1000, 0))
		errorLogger := mock.NewMockErrorLogger(ctrl)
		errorLogger.EXPECT().Log(gomock.Any()).Do(func(err error) {
			testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Failed to parse file system, starting with a new file system: Invalid name \"..\""), err)
		})

		virtual.NewFileStore(documentStorage, clock, errorLogger, virtual.CaseSensitiveComponentNormalizer, nil)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		documentStorage := mock.NewMockDocumentStorage(ctrl)
		documentStorage.EXPECT().Get().Return(nil, status.Error(codes.Internal, "Permission denied"))
		clock := mock.NewMockClock(ctrl)
		clock.EXPECT().Now().Return(time.Unix(1000, 0))
		errorLogger := mock.NewMockErrorLogger(ctrl)
		errorLogger.EXPECT().Log(gomock.Any()).Do(func(err error) {
			testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to load file system, starting with a new file system: Permission denied"), err)
		})

		virtual.NewFileStore(documentStorage, clock, errorLogger, virtual.CaseSensitiveComponentNormalizer, nil)
	})
}

func TestFileStoreSaveFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	documentStorage := mock.NewMockDocumentStorage(ctrl)
	documentStorage.EXPECT().Get().Return(nil, status.Error(codes.NotFound, "No document has been stored"))
	documentStorage.EXPECT().Put(gomock.Any())
	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0)).AnyTimes()
	fileStore := virtual.NewFileStore(documentStorage, clock, mock.NewMockErrorLogger(ctrl), virtual.CaseSensitiveComponentNormalizer, nil)

	documentStorage.EXPECT().Put(gomock.Any()).Return(status.Error(codes.Internal, "Disk full"))
	_, err := fileStore.CreateFile("/", "a.txt", "")
	testutil.RequireEqualStatus(t, status.Error(codes.Internal, "Failed to save file system: Disk full"), err)
}

func TestFileStoreCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)

	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0)).AnyTimes()
	fileStore := virtual.NewFileStore(
		storage.NewInMemoryDocumentStorage(),
		clock,
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseInsensitiveComponentNormalizer,
		nil)

	_, err := fileStore.CreateDirectory("/", "Documents")
	require.NoError(t, err)
	_, err = fileStore.CreateDirectory("/", "DOCUMENTS")
	testutil.RequireEqualStatus(t, status.Error(codes.AlreadyExists, "\"DOCUMENTS\" already exists in directory \"/\""), err)

	// The canonical path uses the original spelling.
	newPath, err := fileStore.ChangeDirectory("/", "documents")
	require.NoError(t, err)
	require.Equal(t, "/Documents", newPath)
}
