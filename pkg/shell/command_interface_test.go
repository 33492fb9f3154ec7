package shell_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/simos-project/simos/internal/mock"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/filesystem/virtual/storage"
	"github.com/simos-project/simos/pkg/memory"
	"github.com/simos-project/simos/pkg/process"
	"github.com/simos-project/simos/pkg/shell"
	"github.com/simos-project/simos/pkg/user"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
)

func newTestCommandInterface(ctrl *gomock.Controller) *shell.CommandInterface {
	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0)).AnyTimes()
	fileStore := virtual.NewFileStore(
		storage.NewInMemoryDocumentStorage(),
		clock,
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseSensitiveComponentNormalizer,
		nil)
	allocator := memory.NewBestFitAllocator(1024, clock)
	return shell.NewCommandInterface(
		fileStore,
		process.NewTable(allocator, clock),
		allocator,
		user.NewManager(storage.NewInMemoryDocumentStorage(), fileStore, clock, mock.NewMockErrorLogger(ctrl), ""),
		noop.NewTracerProvider())
}

// requireOutputs executes a sequence of commands, checking the output
// of each of them.
func requireOutputs(ctx context.Context, t *testing.T, commandInterface *shell.CommandInterface, steps [][2]string) {
	for _, step := range steps {
		require.Equal(t, shell.Result{Output: step[1]}, commandInterface.Execute(ctx, step[0]), step[0])
	}
}

func TestCommandInterfaceParsing(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	commandInterface := newTestCommandInterface(ctrl)

	t.Run("Empty", func(t *testing.T) {
		require.Equal(t, shell.Result{}, commandInterface.Execute(ctx, ""))
		require.Equal(t, shell.Result{}, commandInterface.Execute(ctx, "   \t"))
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		require.Equal(
			t,
			shell.Result{Output: "Command not found: format\nRun \"help\" to list the available commands"},
			commandInterface.Execute(ctx, "format c:"))
	})

	t.Run("UnterminatedQuote", func(t *testing.T) {
		result := commandInterface.Execute(ctx, "echo \"hello")
		require.True(t, strings.HasPrefix(result.Output, "Error: Failed to parse command line: "), result.Output)
	})

	t.Run("MissingArguments", func(t *testing.T) {
		requireOutputs(ctx, t, commandInterface, [][2]string{
			{"mkdir", "Usage: mkdir <name>"},
			{"malloc 1", "Usage: malloc <pid> <size>"},
		})
	})

	t.Run("CaseInsensitiveCommands", func(t *testing.T) {
		require.Equal(t, shell.Result{Output: "/"}, commandInterface.Execute(ctx, "PWD"))
	})

	t.Run("Help", func(t *testing.T) {
		result := commandInterface.Execute(ctx, "help")
		require.True(t, strings.HasPrefix(result.Output, "Available commands:\n  help "), result.Output)
		require.Contains(t, result.Output, "mkdir <name>")
		require.Contains(t, result.Output, "Create a directory")
		require.Contains(t, result.Output, "malloc <pid> <size>")
	})

	t.Run("Exit", func(t *testing.T) {
		require.Equal(t, shell.Result{Exit: true}, commandInterface.Execute(ctx, "exit"))
	})
}

func TestCommandInterfaceFileSystem(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	commandInterface := newTestCommandInterface(ctrl)

	requireOutputs(ctx, t, commandInterface, [][2]string{
		{"ls", "Directory is empty"},
		{"mkdir docs", "Created directory \"docs\""},
		{"cd docs", "Current directory: /docs"},
		{"pwd", "/docs"},
		{"echo \"hello world\" > a.txt", "Wrote 11 bytes to \"a.txt\""},
		{"cat a.txt", "hello world"},
		{"echo bye >a.txt", "Wrote 3 bytes to \"a.txt\""},
		{"cat a.txt", "bye"},
		{"touch b.txt", "Created file \"b.txt\""},
		{"cat b.txt", ""},
		{"echo plain text", "plain text"},
		{"echo a >", "Error: Redirection requires exactly one file name"},
		{"echo a > b c", "Error: Redirection requires exactly one file name"},
		{"cd ..", "Current directory: /"},
		{"touch docs", "Error: \"docs\" already exists in directory \"/\""},
		{"cat docs", "Error: \"docs\" in directory \"/\" is a directory"},
		{"cat missing", "Error: \"missing\" does not exist in directory \"/\""},
		{"cd nowhere", "Error: Directory \"/nowhere\" does not exist"},
		{"ls /nowhere", "Error: Directory \"/nowhere\" does not exist"},
		{"mkdir ..", "Error: Invalid name \"..\""},
	})

	t.Run("List", func(t *testing.T) {
		result := commandInterface.Execute(ctx, "ls /docs")
		lines := strings.Split(result.Output, "\n")
		require.Len(t, lines, 2)
		require.True(t, strings.HasPrefix(lines[0], "a.txt "), lines[0])
		require.True(t, strings.HasSuffix(lines[0], " 3"), lines[0])
		require.True(t, strings.HasPrefix(lines[1], "b.txt "), lines[1])

		result = commandInterface.Execute(ctx, "ls")
		require.True(t, strings.HasPrefix(result.Output, "docs/ "), result.Output)
		require.Contains(t, result.Output, "<DIR>")
	})

	t.Run("Stat", func(t *testing.T) {
		result := commandInterface.Execute(ctx, "stat /docs/a.txt")
		require.Contains(t, result.Output, "Name:        a.txt\n")
		require.Contains(t, result.Output, "Type:        file\n")
		require.Contains(t, result.Output, "Size:        3\n")
		require.Contains(t, result.Output, "Permissions: rw-r--r--\n")
	})

	t.Run("Remove", func(t *testing.T) {
		requireOutputs(ctx, t, commandInterface, [][2]string{
			{"rm docs", "Removed \"docs\""},
			{"ls", "Directory is empty"},
			{"rm docs", "Error: \"docs\" does not exist in directory \"/\""},
		})
	})
}

func TestCommandInterfaceProcesses(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	commandInterface := newTestCommandInterface(ctrl)

	requireOutputs(ctx, t, commandInterface, [][2]string{
		{"ps", "No processes"},
		{"run editor 100", "Started process 1 (editor) with 100 units of memory at address 0"},
		{"run shell", "Started process 2 (shell)"},
		{"malloc 2 50", "Allocated 50 units at address 100 for process 2"},
		{"malloc 2 abc", "Error: Invalid size \"abc\""},
		{"malloc 7 10", "Error: Process 7 does not exist"},
		{"run big 5000", "Error: Failed to allocate memory for process 3: Allocation size 5000 is not within range (0, 1024]"},
		{"run foo -5", "Error: Failed to allocate memory for process 4: Allocation size -5 is not within range (0, 1024]"},
		{"run foo 0", "Error: Failed to allocate memory for process 5: Allocation size 0 is not within range (0, 1024]"},
		{"run foo x", "Error: Invalid size \"x\""},
	})

	t.Run("ProcessList", func(t *testing.T) {
		lines := strings.Split(commandInterface.Execute(ctx, "ps").Output, "\n")
		require.Len(t, lines, 3)
		require.Equal(t, []string{"PID", "NAME", "STATE", "MEMORY"}, strings.Fields(lines[0]))
		require.Equal(t, []string{"1", "editor", "ready", "0"}, strings.Fields(lines[1]))
		require.Equal(t, []string{"2", "shell", "running", "100"}, strings.Fields(lines[2]))
	})

	t.Run("Memory", func(t *testing.T) {
		lines := strings.Split(commandInterface.Execute(ctx, "mem").Output, "\n")
		require.Equal(t, []string{
			"Total: 1024, used: 150, free: 874",
			"Blocks: 2 allocated, 1 free, largest free block: 874",
		}, lines[:2])
		require.Equal(t, []string{"START", "SIZE", "OWNER"}, strings.Fields(lines[2]))
		require.Equal(t, []string{"0", "100", "1"}, strings.Fields(lines[3]))
		require.Equal(t, []string{"100", "50", "2"}, strings.Fields(lines[4]))
		require.Equal(t, []string{"150", "874", "free"}, strings.Fields(lines[5]))
	})

	requireOutputs(ctx, t, commandInterface, [][2]string{
		{"kill 1", "Terminated process 1 (editor)"},
		{"kill 1", "Error: Process 1 does not exist"},
		{"kill x", "Error: Invalid process ID \"x\""},
		{"free 2", "Released memory of process 2"},
		{"free 2", "Error: Failed to release memory of process 2: Owner 2 does not hold any memory"},
	})

	t.Run("MemoryReleased", func(t *testing.T) {
		lines := strings.Split(commandInterface.Execute(ctx, "mem").Output, "\n")
		require.Equal(t, "Total: 1024, used: 0, free: 1024", lines[0])
		require.Equal(t, []string{"0", "1024", "free"}, strings.Fields(lines[3]))
	})
}

func TestCommandInterfaceTracing(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	clock := mock.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Unix(1000, 0)).AnyTimes()
	allocator := memory.NewBestFitAllocator(1024, clock)
	spanRecorder := tracetest.NewSpanRecorder()
	fileStore := virtual.NewFileStore(
		storage.NewInMemoryDocumentStorage(),
		clock,
		mock.NewMockErrorLogger(ctrl),
		virtual.CaseSensitiveComponentNormalizer,
		nil)
	commandInterface := shell.NewCommandInterface(
		fileStore,
		process.NewTable(allocator, clock),
		allocator,
		user.NewManager(storage.NewInMemoryDocumentStorage(), fileStore, clock, mock.NewMockErrorLogger(ctrl), ""),
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))

	commandInterface.Execute(ctx, "mkdir docs")
	commandInterface.Execute(ctx, "cat missing")
	commandInterface.Execute(ctx, "unknown")

	// Unknown commands don't create a span.
	spans := spanRecorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "shell.mkdir", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, "shell.cat", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Equal(t, "\"missing\" does not exist in directory \"/\"", spans[1].Status().Description)
}

func TestCommandInterfaceUsers(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	commandInterface := newTestCommandInterface(ctrl)

	requireOutputs(ctx, t, commandInterface, [][2]string{
		{"users", "No users"},
		{"useradd admin admin", "Created admin \"admin\" with home directory \"/home/admin\""},
		{"useradd alice", "Created user \"alice\" with home directory \"/home/alice\""},
		{"useradd alice", "Error: User \"alice\" already exists"},
		{"useradd al", "Error: User name \"al\" must be at least 3 characters long"},
		{"useradd bob root", "Error: Invalid role \"root\""},
		{"usermod alice role=admin active=false", "Updated user \"alice\": role admin, active false"},
		{"usermod alice active=maybe", "Error: Invalid boolean value \"maybe\""},
		{"usermod alice shell=/bin/sh", "Error: Unknown user field \"shell\""},
		{"usermod alice admin", "Error: Field assignment \"admin\" is not of the form <field>=<value>"},
		{"usermod alice", "Usage: usermod <name> <field>=<value>..."},
		{"userdel admin", "Error: User \"admin\" is the last active administrator"},
		{"usermod alice active=true", "Updated user \"alice\": role admin, active true"},
		{"userdel admin", "Removed user \"admin\""},
		{"userdel admin", "Error: User \"admin\" does not exist"},
	})

	t.Run("UserList", func(t *testing.T) {
		lines := strings.Split(commandInterface.Execute(ctx, "users").Output, "\n")
		require.Len(t, lines, 2)
		require.Equal(t, []string{"NAME", "ROLE", "ACTIVE", "HOME"}, strings.Fields(lines[0]))
		require.Equal(t, []string{"alice", "admin", "true", "/home/alice"}, strings.Fields(lines[1]))
	})

	t.Run("HomeDirectories", func(t *testing.T) {
		// Home directories are retained when users are removed.
		lines := strings.Split(commandInterface.Execute(ctx, "ls /home").Output, "\n")
		require.Len(t, lines, 2)
		require.Equal(t, []string{"admin/", "<DIR>", "0"}, strings.Fields(lines[0]))
		require.Equal(t, []string{"alice/", "<DIR>", "0"}, strings.Fields(lines[1]))
	})
}
