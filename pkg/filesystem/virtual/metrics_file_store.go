package virtual

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"google.golang.org/grpc/status"
)

var (
	fileStorePrometheusMetrics sync.Once

	fileStoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simos",
			Subsystem: "filesystem",
			Name:      "file_store_operations_total",
			Help:      "Number of operations performed against the file store, partitioned by operation and resulting status code.",
		},
		[]string{"operation", "grpc_code"})
)

type metricsFileStore struct {
	base FileStore
}

// NewMetricsFileStore creates a decorator for FileStore that exposes
// Prometheus metrics on the number of operations performed.
func NewMetricsFileStore(base FileStore) FileStore {
	fileStorePrometheusMetrics.Do(func() {
		prometheus.MustRegister(fileStoreOperations)
	})

	return &metricsFileStore{
		base: base,
	}
}

func observeOperation(operation string, err error) {
	fileStoreOperations.WithLabelValues(operation, status.Code(err).String()).Inc()
}

func (fs *metricsFileStore) CreateFile(dirPath, name, content string) (FileInfo, error) {
	info, err := fs.base.CreateFile(dirPath, name, content)
	observeOperation("CreateFile", err)
	return info, err
}

func (fs *metricsFileStore) CreateDirectory(parentPath, name string) (FileInfo, error) {
	info, err := fs.base.CreateDirectory(parentPath, name)
	observeOperation("CreateDirectory", err)
	return info, err
}

func (fs *metricsFileStore) ReadFile(dirPath, name string) (string, error) {
	content, err := fs.base.ReadFile(dirPath, name)
	observeOperation("ReadFile", err)
	return content, err
}

func (fs *metricsFileStore) WriteFile(dirPath, name, content string) error {
	err := fs.base.WriteFile(dirPath, name, content)
	observeOperation("WriteFile", err)
	return err
}

func (fs *metricsFileStore) Delete(dirPath, name string) error {
	err := fs.base.Delete(dirPath, name)
	observeOperation("Delete", err)
	return err
}

func (fs *metricsFileStore) ListDirectory(path string) ([]DirectoryEntry, error) {
	entries, err := fs.base.ListDirectory(path)
	observeOperation("ListDirectory", err)
	return entries, err
}

func (fs *metricsFileStore) ChangeDirectory(current, target string) (string, error) {
	newPath, err := fs.base.ChangeDirectory(current, target)
	observeOperation("ChangeDirectory", err)
	return newPath, err
}

func (fs *metricsFileStore) GetCurrentDirectory() string {
	return fs.base.GetCurrentDirectory()
}

func (fs *metricsFileStore) Stat(path string) (FileInfo, error) {
	info, err := fs.base.Stat(path)
	observeOperation("Stat", err)
	return info, err
}

func (fs *metricsFileStore) Save() error {
	err := fs.base.Save()
	observeOperation("Save", err)
	return err
}
