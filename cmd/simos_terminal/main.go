package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/program"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/uuid"
	configuration "github.com/simos-project/simos/pkg/configuration/simos_terminal"
	"github.com/simos-project/simos/pkg/diagnostics"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/filesystem/virtual/storage"
	"github.com/simos-project/simos/pkg/memory"
	"github.com/simos-project/simos/pkg/process"
	"github.com/simos-project/simos/pkg/shell"
	"github.com/simos-project/simos/pkg/user"
	"github.com/spf13/pflag"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// openDocumentStorage creates a DocumentStorage for a JSON document
// stored on the host file system. The returned io.Closer releases the
// lock on the document and closes the directory containing it. An
// empty path yields a volatile DocumentStorage.
func openDocumentStorage(documentPath string) (storage.DocumentStorage, io.Closer, error) {
	if documentPath == "" {
		return storage.NewInMemoryDocumentStorage(), documentCloser{}, nil
	}
	directory, name, err := storage.OpenDocumentDirectory(path.LocalFormat.NewParser(documentPath))
	if err != nil {
		return nil, nil, util.StatusWrapf(err, "Failed to open directory containing %#v", documentPath)
	}
	documentStorage, lock, err := storage.NewLockingFileDocumentStorage(directory, name, uuid.NewRandom)
	if err != nil {
		directory.Close()
		return nil, nil, util.StatusWrapf(err, "Failed to open %#v", documentPath)
	}
	return documentStorage, documentCloser{lock: lock, directory: directory}, nil
}

// documentCloser releases the lock on a document stored on the host
// file system, and closes the directory containing it. Both are nil
// for volatile documents.
type documentCloser struct {
	lock      io.Closer
	directory io.Closer
}

func (c documentCloser) Close() error {
	if c.lock == nil {
		return nil
	}
	lockErr := c.lock.Close()
	if err := c.directory.Close(); err != nil {
		return err
	}
	return lockErr
}

func main() {
	configurationPath := pflag.String("config", "", "Path of a Jsonnet configuration file")
	command := pflag.String("command", "", "Run a single command and exit")
	dataFilePath := pflag.String("data-file", "", "Path of the file system document, overriding the configuration file; empty to keep the file system in memory")
	pflag.Parse()

	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		if pflag.NArg() != 0 {
			return status.Error(codes.InvalidArgument, "Usage: simos_terminal [--config simos_terminal.jsonnet] [--data-file file_system.json] [--command line]")
		}
		terminalConfiguration, err := configuration.GetTerminalConfiguration(*configurationPath)
		if err != nil {
			return util.StatusWrapf(err, "Failed to read configuration from %s", *configurationPath)
		}
		if pflag.CommandLine.Changed("data-file") {
			terminalConfiguration.DataFilePath = dataFilePath
		}
		initialDirectories, err := terminalConfiguration.GetInitialDirectories()
		if err != nil {
			return util.StatusWrap(err, "Invalid configuration")
		}

		fileSystemStorage, fileSystemCloser, err := openDocumentStorage(*terminalConfiguration.DataFilePath)
		if err != nil {
			return util.StatusWrap(err, "Failed to open file system")
		}
		defer fileSystemCloser.Close()
		userStorage, userCloser, err := openDocumentStorage(*terminalConfiguration.UsersFilePath)
		if err != nil {
			return util.StatusWrap(err, "Failed to open users")
		}
		defer userCloser.Close()

		normalizer := virtual.CaseSensitiveComponentNormalizer
		if terminalConfiguration.CaseInsensitiveNames {
			normalizer = virtual.CaseInsensitiveComponentNormalizer
		}
		fileStore := virtual.NewMetricsFileStore(
			virtual.NewFileStore(
				fileSystemStorage,
				clock.SystemClock,
				util.DefaultErrorLogger,
				normalizer,
				initialDirectories))
		userManager := user.NewManager(
			userStorage,
			fileStore,
			clock.SystemClock,
			util.DefaultErrorLogger,
			*terminalConfiguration.AdministratorUserName)
		allocator := memory.NewMetricsAllocator(
			memory.NewBestFitAllocator(terminalConfiguration.TotalMemory, clock.SystemClock))
		processTable := process.NewTable(allocator, clock.SystemClock)
		commandInterface := shell.NewCommandInterface(fileStore, processTable, allocator, userManager, otel.GetTracerProvider())

		// The file system is saved after every modification.
		// Save it once more when leaving, so that a failure to
		// save earlier changes is retried.
		defer func() {
			if err := fileStore.Save(); err != nil {
				log.Print("Failed to save file system: ", err)
			}
		}()

		if pflag.CommandLine.Changed("command") {
			if result := commandInterface.Execute(ctx, *command); result.Output != "" {
				fmt.Println(result.Output)
			}
			return nil
		}

		if listenAddress := terminalConfiguration.DiagnosticsHTTPListenAddress; listenAddress != "" {
			server := &http.Server{
				Addr:    listenAddress,
				Handler: otelhttp.NewHandler(diagnostics.NewRouter(fileStore, allocator, processTable, clock.SystemClock), "diagnostics"),
			}
			// The diagnostics server is shut down once the
			// terminal has been closed.
			dependenciesGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
				<-ctx.Done()
				return server.Shutdown(context.Background())
			})
			dependenciesGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return util.StatusWrapf(err, "Failed to serve diagnostics on %#v", listenAddress)
				}
				return nil
			})
		}

		return runTerminal(ctx, commandInterface, fileStore, terminalConfiguration.Prompt, os.Stdin, os.Stdout)
	})
}
