package memory

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"google.golang.org/grpc/status"
)

var (
	allocatorPrometheusMetrics sync.Once

	allocatorAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simos",
			Subsystem: "memory",
			Name:      "allocator_allocations_total",
			Help:      "Number of times memory was allocated, partitioned by resulting status code.",
		},
		[]string{"grpc_code"})
	allocatorDeallocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simos",
			Subsystem: "memory",
			Name:      "allocator_deallocations_total",
			Help:      "Number of times memory of an owner was deallocated, partitioned by resulting status code.",
		},
		[]string{"grpc_code"})
	allocatorUsedMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simos",
			Subsystem: "memory",
			Name:      "allocator_used_memory_units",
			Help:      "Number of units of the address space that are allocated.",
		})
	allocatorFreeBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simos",
			Subsystem: "memory",
			Name:      "allocator_free_blocks",
			Help:      "Number of free blocks in the address space. Values above one indicate fragmentation.",
		})
)

type metricsAllocator struct {
	base Allocator
}

// NewMetricsAllocator creates a decorator for Allocator that exposes
// Prometheus metrics on the number of allocations and deallocations,
// and on how much of the address space is in use.
func NewMetricsAllocator(base Allocator) Allocator {
	allocatorPrometheusMetrics.Do(func() {
		prometheus.MustRegister(allocatorAllocations)
		prometheus.MustRegister(allocatorDeallocations)
		prometheus.MustRegister(allocatorUsedMemory)
		prometheus.MustRegister(allocatorFreeBlocks)
	})

	return &metricsAllocator{
		base: base,
	}
}

func (a *metricsAllocator) updateGauges() {
	usage := a.base.GetUsage()
	allocatorUsedMemory.Set(float64(usage.UsedMemory))
	allocatorFreeBlocks.Set(float64(usage.FreeBlocks))
}

func (a *metricsAllocator) Allocate(owner Owner, size int) (int, error) {
	address, err := a.base.Allocate(owner, size)
	allocatorAllocations.WithLabelValues(status.Code(err).String()).Inc()
	if err == nil {
		a.updateGauges()
	}
	return address, err
}

func (a *metricsAllocator) Deallocate(owner Owner) error {
	err := a.base.Deallocate(owner)
	allocatorDeallocations.WithLabelValues(status.Code(err).String()).Inc()
	if err == nil {
		a.updateGauges()
	}
	return err
}

func (a *metricsAllocator) GetUsage() Usage {
	return a.base.GetUsage()
}

func (a *metricsAllocator) GetBlocks() []Block {
	return a.base.GetBlocks()
}
