package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/memory"
	"github.com/simos-project/simos/pkg/process"
	"github.com/simos-project/simos/pkg/user"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Result of executing a single command line.
type Result struct {
	Output string
	// Exit is set if the terminal session should be terminated.
	Exit bool
}

type command struct {
	name        string
	arguments   string
	description string
	minimumArgs int
	run         func(ci *CommandInterface, args []string) (Result, error)
}

func (c *command) getUsage() string {
	if c.arguments == "" {
		return c.name
	}
	return c.name + " " + c.arguments
}

// commands that can be executed, in the order in which they are
// listed by "help".
var commands = []*command{
	{name: "help", description: "List the available commands", run: (*CommandInterface).help},
	{name: "mkdir", arguments: "<name>", description: "Create a directory", minimumArgs: 1, run: (*CommandInterface).makeDirectory},
	{name: "cd", arguments: "<path>", description: "Change the current directory", minimumArgs: 1, run: (*CommandInterface).changeDirectory},
	{name: "ls", arguments: "[path]", description: "List the contents of a directory", run: (*CommandInterface).listDirectory},
	{name: "touch", arguments: "<name>", description: "Create an empty file", minimumArgs: 1, run: (*CommandInterface).createFile},
	{name: "cat", arguments: "<name>", description: "Print the contents of a file", minimumArgs: 1, run: (*CommandInterface).readFile},
	{name: "echo", arguments: "<text...> [> <name>]", description: "Print text, or write it to a file", run: (*CommandInterface).echo},
	{name: "rm", arguments: "<name>", description: "Remove a file or directory", minimumArgs: 1, run: (*CommandInterface).remove},
	{name: "pwd", description: "Print the current directory", run: (*CommandInterface).printWorkingDirectory},
	{name: "stat", arguments: "<path>", description: "Print metadata of a file or directory", minimumArgs: 1, run: (*CommandInterface).stat},
	{name: "ps", description: "List processes", run: (*CommandInterface).listProcesses},
	{name: "run", arguments: "<name> [size]", description: "Start a process, optionally allocating memory for it", minimumArgs: 1, run: (*CommandInterface).runProcess},
	{name: "kill", arguments: "<pid>", description: "Terminate a process and release its memory", minimumArgs: 1, run: (*CommandInterface).killProcess},
	{name: "malloc", arguments: "<pid> <size>", description: "Allocate memory for a process", minimumArgs: 2, run: (*CommandInterface).allocate},
	{name: "free", arguments: "<pid>", description: "Release all memory of a process", minimumArgs: 1, run: (*CommandInterface).free},
	{name: "mem", description: "Print memory usage and the block map", run: (*CommandInterface).memory},
	{name: "users", description: "List user accounts", run: (*CommandInterface).listUsers},
	{name: "useradd", arguments: "<name> [role]", description: "Create a user account and its home directory", minimumArgs: 1, run: (*CommandInterface).addUser},
	{name: "userdel", arguments: "<name>", description: "Remove a user account, retaining its home directory", minimumArgs: 1, run: (*CommandInterface).deleteUser},
	{name: "usermod", arguments: "<name> <field>=<value>...", description: "Change the role or active state of a user account", minimumArgs: 2, run: (*CommandInterface).modifyUser},
	{name: "exit", description: "Close the terminal", run: (*CommandInterface).exit},
}

var commandsByName = func() map[string]*command {
	m := make(map[string]*command, len(commands))
	for _, c := range commands {
		m[c.name] = c
	}
	return m
}()

// CommandInterface translates lines of text entered into a terminal to
// operations against the file store, the process table, the memory
// allocator and the user manager.
type CommandInterface struct {
	fileStore    virtual.FileStore
	processTable *process.Table
	allocator    memory.Allocator
	userManager  user.Manager
	tracer       trace.Tracer
	commands     []*command
}

// NewCommandInterface creates a CommandInterface. An OpenTelemetry span
// is created for every command that is executed.
func NewCommandInterface(fileStore virtual.FileStore, processTable *process.Table, allocator memory.Allocator, userManager user.Manager, tracerProvider trace.TracerProvider) *CommandInterface {
	return &CommandInterface{
		fileStore:    fileStore,
		processTable: processTable,
		allocator:    allocator,
		userManager:  userManager,
		tracer:       tracerProvider.Tracer("github.com/simos-project/simos/pkg/shell"),
		commands:     commands,
	}
}

// Execute a single command line. Failures are never returned as
// errors. They are rendered into the output instead.
func (ci *CommandInterface) Execute(ctx context.Context, line string) Result {
	if strings.TrimSpace(line) == "" {
		return Result{}
	}
	args, err := shellquote.Split(line)
	if err != nil {
		return Result{Output: fmt.Sprintf("Error: Failed to parse command line: %s", err)}
	}
	if len(args) == 0 {
		return Result{}
	}

	name := strings.ToLower(args[0])
	c, ok := commandsByName[name]
	if !ok {
		return Result{Output: fmt.Sprintf("Command not found: %s\nRun \"help\" to list the available commands", args[0])}
	}
	args = args[1:]
	if len(args) < c.minimumArgs {
		return Result{Output: "Usage: " + c.getUsage()}
	}

	_, span := ci.tracer.Start(ctx, "shell."+c.name, trace.WithAttributes(
		attribute.StringSlice("arguments", args),
	))
	defer span.End()

	result, err := c.run(ci, args)
	if err != nil {
		s := status.Convert(err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, s.Message())
		return Result{Output: "Error: " + s.Message()}
	}
	return result
}

func output(format string, args ...any) (Result, error) {
	return Result{Output: fmt.Sprintf(format, args...)}, nil
}

func (ci *CommandInterface) help(args []string) (Result, error) {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	w := tabwriter.NewWriter(&sb, 0, 8, 2, ' ', 0)
	for _, c := range ci.commands {
		fmt.Fprintf(w, "  %s\t%s\n", c.getUsage(), c.description)
	}
	w.Flush()
	return Result{Output: strings.TrimSuffix(sb.String(), "\n")}, nil
}

func (ci *CommandInterface) makeDirectory(args []string) (Result, error) {
	if _, err := ci.fileStore.CreateDirectory(ci.fileStore.GetCurrentDirectory(), args[0]); err != nil {
		return Result{}, err
	}
	return output("Created directory %#v", args[0])
}

func (ci *CommandInterface) changeDirectory(args []string) (Result, error) {
	newPath, err := ci.fileStore.ChangeDirectory(ci.fileStore.GetCurrentDirectory(), args[0])
	if err != nil {
		return Result{}, err
	}
	return output("Current directory: %s", newPath)
}

func (ci *CommandInterface) listDirectory(args []string) (Result, error) {
	p := ci.fileStore.GetCurrentDirectory()
	if len(args) > 0 {
		p = args[0]
	}
	entries, err := ci.fileStore.ListDirectory(p)
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return output("Directory is empty")
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 8, 2, ' ', 0)
	for _, entry := range entries {
		if entry.IsDirectory {
			fmt.Fprintf(w, "%s/\t<DIR>\t%d\n", entry.Name, entry.SizeBytes)
		} else {
			fmt.Fprintf(w, "%s\t\t%d\n", entry.Name, entry.SizeBytes)
		}
	}
	w.Flush()
	return Result{Output: strings.TrimSuffix(sb.String(), "\n")}, nil
}

func (ci *CommandInterface) createFile(args []string) (Result, error) {
	if _, err := ci.fileStore.CreateFile(ci.fileStore.GetCurrentDirectory(), args[0], ""); err != nil {
		return Result{}, err
	}
	return output("Created file %#v", args[0])
}

func (ci *CommandInterface) readFile(args []string) (Result, error) {
	content, err := ci.fileStore.ReadFile(ci.fileStore.GetCurrentDirectory(), args[0])
	if err != nil {
		return Result{}, err
	}
	return Result{Output: content}, nil
}

// echo prints its arguments. When the arguments contain a redirection
// of the form "> name" or ">name", the text is written to a file in the
// current directory instead. The file is created if it does not exist.
func (ci *CommandInterface) echo(args []string) (Result, error) {
	var text []string
	var target string
	for i, arg := range args {
		if strings.HasPrefix(arg, ">") {
			target = strings.TrimPrefix(arg, ">")
			rest := args[i+1:]
			if target == "" && len(rest) > 0 {
				target, rest = rest[0], rest[1:]
			}
			if target == "" || len(rest) > 0 {
				return Result{}, status.Error(codes.InvalidArgument, "Redirection requires exactly one file name")
			}
			break
		}
		text = append(text, arg)
	}
	content := strings.Join(text, " ")
	if target == "" {
		return Result{Output: content}, nil
	}

	currentDirectory := ci.fileStore.GetCurrentDirectory()
	if err := ci.fileStore.WriteFile(currentDirectory, target, content); err != nil {
		if status.Code(err) != codes.NotFound {
			return Result{}, err
		}
		if _, err := ci.fileStore.CreateFile(currentDirectory, target, content); err != nil {
			return Result{}, err
		}
	}
	return output("Wrote %d bytes to %#v", len(content), target)
}

func (ci *CommandInterface) remove(args []string) (Result, error) {
	if err := ci.fileStore.Delete(ci.fileStore.GetCurrentDirectory(), args[0]); err != nil {
		return Result{}, err
	}
	return output("Removed %#v", args[0])
}

func (ci *CommandInterface) printWorkingDirectory(args []string) (Result, error) {
	return Result{Output: ci.fileStore.GetCurrentDirectory()}, nil
}

func (ci *CommandInterface) stat(args []string) (Result, error) {
	info, err := ci.fileStore.Stat(args[0])
	if err != nil {
		return Result{}, err
	}
	fileType := "file"
	if info.IsDirectory {
		fileType = "directory"
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", info.Name)
	fmt.Fprintf(w, "Type:\t%s\n", fileType)
	fmt.Fprintf(w, "Size:\t%d\n", info.SizeBytes)
	fmt.Fprintf(w, "Permissions:\t%s\n", info.Permissions)
	fmt.Fprintf(w, "Created:\t%s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Modified:\t%s\n", info.ModifiedAt.Format(time.RFC3339))
	w.Flush()
	return Result{Output: strings.TrimSuffix(sb.String(), "\n")}, nil
}

func (ci *CommandInterface) listProcesses(args []string) (Result, error) {
	infos := ci.processTable.List()
	if len(infos) == 0 {
		return output("No processes")
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "PID\tNAME\tSTATE\tMEMORY\n")
	for _, info := range infos {
		addresses := make([]string, 0, len(info.MemoryAddresses))
		for _, address := range info.MemoryAddresses {
			addresses = append(addresses, strconv.Itoa(address))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", info.PID, info.Name, info.State, strings.Join(addresses, ","))
	}
	w.Flush()
	return Result{Output: strings.TrimSuffix(sb.String(), "\n")}, nil
}

func parsePID(s string) (uint32, error) {
	pid, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "Invalid process ID %#v", s)
	}
	return uint32(pid), nil
}

func parseSize(s string) (int, error) {
	size, err := strconv.Atoi(s)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "Invalid size %#v", s)
	}
	return size, nil
}

func (ci *CommandInterface) runProcess(args []string) (Result, error) {
	size := 0
	if len(args) > 1 {
		var err error
		if size, err = parseSize(args[1]); err != nil {
			return Result{}, err
		}
	}

	pid, err := ci.processTable.Create(args[0])
	if err != nil {
		return Result{}, err
	}
	if len(args) > 1 {
		// Any explicitly provided size is validated by the
		// allocator, so that zero and negative sizes are rejected.
		address, err := ci.processTable.Allocate(pid, size)
		if err != nil {
			if _, terminateErr := ci.processTable.Terminate(pid); terminateErr != nil {
				return Result{}, terminateErr
			}
			return Result{}, err
		}
		if err := ci.processTable.Start(pid); err != nil {
			return Result{}, err
		}
		return output("Started process %d (%s) with %d units of memory at address %d", pid, args[0], size, address)
	}
	if err := ci.processTable.Start(pid); err != nil {
		return Result{}, err
	}
	return output("Started process %d (%s)", pid, args[0])
}

func (ci *CommandInterface) killProcess(args []string) (Result, error) {
	pid, err := parsePID(args[0])
	if err != nil {
		return Result{}, err
	}
	info, err := ci.processTable.Terminate(pid)
	if err != nil {
		return Result{}, err
	}
	return output("Terminated process %d (%s)", info.PID, info.Name)
}

func (ci *CommandInterface) allocate(args []string) (Result, error) {
	pid, err := parsePID(args[0])
	if err != nil {
		return Result{}, err
	}
	size, err := parseSize(args[1])
	if err != nil {
		return Result{}, err
	}
	address, err := ci.processTable.Allocate(pid, size)
	if err != nil {
		return Result{}, err
	}
	return output("Allocated %d units at address %d for process %d", size, address, pid)
}

func (ci *CommandInterface) free(args []string) (Result, error) {
	pid, err := parsePID(args[0])
	if err != nil {
		return Result{}, err
	}
	if err := ci.processTable.Free(pid); err != nil {
		return Result{}, err
	}
	return output("Released memory of process %d", pid)
}

func (ci *CommandInterface) memory(args []string) (Result, error) {
	usage := ci.allocator.GetUsage()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total: %d, used: %d, free: %d\n", usage.TotalMemory, usage.UsedMemory, usage.FreeMemory)
	fmt.Fprintf(&sb, "Blocks: %d allocated, %d free, largest free block: %d\n", usage.AllocatedBlocks, usage.FreeBlocks, usage.LargestFreeBlock)
	w := tabwriter.NewWriter(&sb, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "START\tSIZE\tOWNER\n")
	for _, block := range ci.allocator.GetBlocks() {
		if block.IsFree {
			fmt.Fprintf(w, "%d\t%d\tfree\n", block.Start, block.Size)
		} else {
			fmt.Fprintf(w, "%d\t%d\t%d\n", block.Start, block.Size, block.Owner)
		}
	}
	w.Flush()
	return Result{Output: strings.TrimSuffix(sb.String(), "\n")}, nil
}

func (ci *CommandInterface) exit(args []string) (Result, error) {
	return Result{Exit: true}, nil
}

func (ci *CommandInterface) listUsers(args []string) (Result, error) {
	users := ci.userManager.List()
	if len(users) == 0 {
		return output("No users")
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tROLE\tACTIVE\tHOME\n")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.Name, u.Role, u.IsActive, u.HomeDirectory)
	}
	w.Flush()
	return Result{Output: strings.TrimSuffix(sb.String(), "\n")}, nil
}

func (ci *CommandInterface) addUser(args []string) (Result, error) {
	role := user.RoleUser
	if len(args) > 1 {
		var err error
		if role, err = user.ParseRole(args[1]); err != nil {
			return Result{}, err
		}
	}
	u, err := ci.userManager.Create(args[0], role)
	if err != nil {
		return Result{}, err
	}
	return output("Created %s %#v with home directory %#v", u.Role, u.Name, u.HomeDirectory)
}

func (ci *CommandInterface) deleteUser(args []string) (Result, error) {
	if err := ci.userManager.Delete(args[0]); err != nil {
		return Result{}, err
	}
	return output("Removed user %#v", args[0])
}

// modifyUser applies a list of field assignments to a user account,
// such as "role=admin" or "active=false".
func (ci *CommandInterface) modifyUser(args []string) (Result, error) {
	var update user.Update
	for _, assignment := range args[1:] {
		field, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return Result{}, status.Errorf(codes.InvalidArgument, "Field assignment %#v is not of the form <field>=<value>", assignment)
		}
		switch field {
		case "role":
			role, err := user.ParseRole(value)
			if err != nil {
				return Result{}, err
			}
			update.Role = &role
		case "active":
			isActive, err := strconv.ParseBool(value)
			if err != nil {
				return Result{}, status.Errorf(codes.InvalidArgument, "Invalid boolean value %#v", value)
			}
			update.IsActive = &isActive
		default:
			return Result{}, status.Errorf(codes.InvalidArgument, "Unknown user field %#v", field)
		}
	}
	u, err := ci.userManager.Update(args[0], update)
	if err != nil {
		return Result{}, err
	}
	return output("Updated user %#v: role %s, active %t", u.Name, u.Role, u.IsActive)
}
