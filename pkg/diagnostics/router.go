package diagnostics

import (
	"encoding/json"
	"log"
	"net/http"
	"text/template"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/memory"
	"github.com/simos-project/simos/pkg/process"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var summaryTemplate = template.Must(template.New("Summary").Parse(`SimOS diagnostics at {{.Now.Format "2006-01-02T15:04:05Z07:00"}}

Current directory: {{.CurrentDirectory}}
Memory: {{.Usage.UsedMemory}}/{{.Usage.TotalMemory}} units used, {{.Usage.FreeBlocks}} free blocks, largest free block {{.Usage.LargestFreeBlock}}
Processes: {{len .Processes}}
{{- range .Processes}}
  {{.PID}} {{.Name}} ({{.State}})
{{- end}}
`))

type memoryResponse struct {
	Usage  memory.Usage   `json:"usage"`
	Blocks []memory.Block `json:"blocks"`
}

type filesResponse struct {
	Path    string                   `json:"path"`
	Entries []virtual.DirectoryEntry `json:"entries"`
}

type diagnosticsService struct {
	fileStore    virtual.FileStore
	allocator    memory.Allocator
	processTable *process.Table
	clock        clock.Clock
}

// NewRouter creates an HTTP router that exposes the state of the file
// store, the memory allocator and the process table, together with
// Prometheus metrics.
func NewRouter(fileStore virtual.FileStore, allocator memory.Allocator, processTable *process.Table, clock clock.Clock) *mux.Router {
	s := &diagnosticsService{
		fileStore:    fileStore,
		allocator:    allocator,
		processTable: processTable,
		clock:        clock,
	}
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/", s.handleGetSummary).Methods(http.MethodGet)
	router.HandleFunc("/memory", s.handleGetMemory).Methods(http.MethodGet)
	router.HandleFunc("/processes", s.handleListProcesses).Methods(http.MethodGet)
	router.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	return router
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Print(err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.InvalidArgument, codes.FailedPrecondition:
		code = http.StatusBadRequest
	}
	http.Error(w, err.Error(), code)
}

func (s *diagnosticsService) handleGetSummary(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := summaryTemplate.Execute(w, struct {
		Now              time.Time
		CurrentDirectory string
		Usage            memory.Usage
		Processes        []process.Info
	}{
		Now:              s.clock.Now(),
		CurrentDirectory: s.fileStore.GetCurrentDirectory(),
		Usage:            s.allocator.GetUsage(),
		Processes:        s.processTable.List(),
	}); err != nil {
		log.Print(err)
	}
}

func (s *diagnosticsService) handleGetMemory(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, memoryResponse{
		Usage:  s.allocator.GetUsage(),
		Blocks: s.allocator.GetBlocks(),
	})
}

func (s *diagnosticsService) handleListProcesses(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, s.processTable.List())
}

func (s *diagnosticsService) handleListFiles(w http.ResponseWriter, req *http.Request) {
	p := req.URL.Query().Get("path")
	if p == "" {
		p = "/"
	}
	entries, err := s.fileStore.ListDirectory(p)
	if err != nil {
		writeError(w, util.StatusWrap(err, "Failed to list directory"))
		return
	}
	writeJSON(w, filesResponse{
		Path:    p,
		Entries: entries,
	})
}
