package configuration

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/buildbarn/bb-storage/pkg/filesystem/path"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/go-jsonnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TerminalConfiguration of the simos_terminal binary.
type TerminalConfiguration struct {
	// Path of the JSON document in which the file system is stored.
	// When set to the empty string, the file system is only kept in
	// memory.
	DataFilePath *string `json:"data_file_path"`
	// Path of the JSON document in which user accounts are stored.
	// When set to the empty string, users are only kept in memory.
	UsersFilePath *string `json:"users_file_path"`
	// Name of the administrator account that is created when no
	// users exist. When set to the empty string, no account is
	// created.
	AdministratorUserName *string `json:"administrator_user_name"`
	// Size of the simulated address space.
	TotalMemory int `json:"total_memory"`
	// Directories created in the root directory when no file
	// system has been stored yet.
	InitialDirectories []string `json:"initial_directories"`
	// Compare filenames case insensitively.
	CaseInsensitiveNames bool `json:"case_insensitive_names"`
	// Address on which to serve diagnostics and Prometheus metrics.
	DiagnosticsHTTPListenAddress string `json:"diagnostics_http_listen_address"`
	// Prompt printed before every command. "%s" is replaced with
	// the current directory.
	Prompt string `json:"prompt"`
}

// GetTerminalConfiguration reads the configuration from a Jsonnet file
// and fills in default values. Environment variables are made
// available to the configuration through std.extVar(). When no path is
// provided, the default configuration is returned.
func GetTerminalConfiguration(path string) (*TerminalConfiguration, error) {
	var terminalConfiguration TerminalConfiguration
	if path != "" {
		vm := jsonnet.MakeVM()
		for _, environmentVariable := range os.Environ() {
			if key, value, ok := strings.Cut(environmentVariable, "="); ok {
				vm.ExtVar(key, value)
			}
		}
		document, err := vm.EvaluateFile(path)
		if err != nil {
			return nil, util.StatusWrapfWithCode(err, codes.InvalidArgument, "Failed to evaluate configuration file %#v", path)
		}
		if err := unmarshalConfiguration([]byte(document), &terminalConfiguration); err != nil {
			return nil, util.StatusWrapf(err, "Failed to retrieve configuration from %#v", path)
		}
	}
	setDefaultTerminalValues(&terminalConfiguration)
	if terminalConfiguration.TotalMemory < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Total memory must be positive, not %d", terminalConfiguration.TotalMemory)
	}
	return &terminalConfiguration, nil
}

func unmarshalConfiguration(document []byte, terminalConfiguration *TerminalConfiguration) error {
	decoder := json.NewDecoder(bytes.NewReader(document))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(terminalConfiguration); err != nil {
		return util.StatusWrapWithCode(err, codes.InvalidArgument, "Malformed configuration")
	}
	return nil
}

func setDefaultTerminalValues(terminalConfiguration *TerminalConfiguration) {
	if terminalConfiguration.DataFilePath == nil {
		dataFilePath := "file_system.json"
		terminalConfiguration.DataFilePath = &dataFilePath
	}
	if terminalConfiguration.UsersFilePath == nil {
		usersFilePath := "users.json"
		terminalConfiguration.UsersFilePath = &usersFilePath
	}
	if terminalConfiguration.AdministratorUserName == nil {
		administratorUserName := "admin"
		terminalConfiguration.AdministratorUserName = &administratorUserName
	}
	if terminalConfiguration.TotalMemory == 0 {
		terminalConfiguration.TotalMemory = 1024
	}
	if terminalConfiguration.InitialDirectories == nil {
		terminalConfiguration.InitialDirectories = []string{"bin", "etc", "home", "tmp", "var"}
	}
	if terminalConfiguration.Prompt == "" {
		terminalConfiguration.Prompt = "simos:%s$ "
	}
}

// GetInitialDirectories returns the names of the directories that need
// to be created in the root directory of a new file system.
func (c *TerminalConfiguration) GetInitialDirectories() ([]path.Component, error) {
	components := make([]path.Component, 0, len(c.InitialDirectories))
	for _, name := range c.InitialDirectories {
		component, ok := path.NewComponent(name)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "Invalid initial directory name %#v", name)
		}
		components = append(components, component)
	}
	return components, nil
}
