package process

import (
	"sort"
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/simos-project/simos/pkg/memory"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	tablePrometheusMetrics sync.Once

	tableProcesses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "simos",
			Subsystem: "process",
			Name:      "table_processes",
			Help:      "Number of processes in the process table, partitioned by state.",
		},
		[]string{"state"})
	tableProcessesTerminatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simos",
			Subsystem: "process",
			Name:      "table_processes_terminated_total",
			Help:      "Number of processes that have been removed from the process table.",
		})
)

// State of a process in the process table.
type State int

const (
	// StateNew is the state of a process that has been created, but
	// is not yet eligible to run.
	StateNew State = iota
	// StateReady is the state of a process that may be started.
	StateReady
	// StateRunning is the state of the process that currently runs.
	// At most one process is in this state.
	StateRunning
	// StateBlocked is the state of a process that waits for an
	// event. It may be started again.
	StateBlocked
	// StateTerminated is the state of a process that has been
	// removed from the process table.
	StateTerminated
)

var stateNames = [...]string{
	StateNew:        "new",
	StateReady:      "ready",
	StateRunning:    "running",
	StateBlocked:    "blocked",
	StateTerminated: "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText ensures states are written in their string form when
// encoded as JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Info is a snapshot of a single process.
type Info struct {
	PID             uint32     `json:"pid"`
	Name            string     `json:"name"`
	State           State      `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	MemoryAddresses []int      `json:"memory_addresses"`
}

type process struct {
	pid             uint32
	name            string
	state           State
	createdAt       time.Time
	startedAt       time.Time
	memoryAddresses []int
}

func (p *process) getInfo() Info {
	info := Info{
		PID:             p.pid,
		Name:            p.name,
		State:           p.state,
		CreatedAt:       p.createdAt,
		MemoryAddresses: append([]int{}, p.memoryAddresses...),
	}
	if !p.startedAt.IsZero() {
		startedAt := p.startedAt
		info.StartedAt = &startedAt
	}
	return info
}

// Table of processes. Processes are identified by a process ID that
// is never reused. Memory is allocated on behalf of processes, using
// the process ID as the owner of the memory blocks.
type Table struct {
	allocator memory.Allocator
	clock     clock.Clock

	lock      sync.Mutex
	processes map[uint32]*process
	nextPID   uint32
	running   *process
}

// NewTable creates an empty process table that allocates memory from
// the provided allocator.
func NewTable(allocator memory.Allocator, clock clock.Clock) *Table {
	tablePrometheusMetrics.Do(func() {
		prometheus.MustRegister(tableProcesses)
		prometheus.MustRegister(tableProcessesTerminatedTotal)
	})

	return &Table{
		allocator: allocator,
		clock:     clock,
		processes: map[uint32]*process{},
		nextPID:   1,
	}
}

func (t *Table) getProcess(pid uint32) (*process, error) {
	p, ok := t.processes[pid]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Process %d does not exist", pid)
	}
	return p, nil
}

func (t *Table) setState(p *process, state State) {
	tableProcesses.WithLabelValues(p.state.String()).Dec()
	p.state = state
	tableProcesses.WithLabelValues(state.String()).Inc()
}

// Create a new process. The process is immediately made ready, so that
// it can be started.
func (t *Table) Create(name string) (uint32, error) {
	if name == "" {
		return 0, status.Error(codes.InvalidArgument, "Process name cannot be empty")
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	p := &process{
		pid:       t.nextPID,
		name:      name,
		state:     StateNew,
		createdAt: t.clock.Now(),
	}
	t.nextPID++
	t.processes[p.pid] = p
	tableProcesses.WithLabelValues(p.state.String()).Inc()
	t.setState(p, StateReady)
	return p.pid, nil
}

// Start a process that is ready or blocked. The process that was
// running previously is moved back to the ready state.
func (t *Table) Start(pid uint32) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, err := t.getProcess(pid)
	if err != nil {
		return err
	}
	switch p.state {
	case StateRunning:
		return nil
	case StateReady, StateBlocked:
	default:
		return status.Errorf(codes.FailedPrecondition, "Process %d is %s, while it must be ready or blocked to be started", pid, p.state)
	}

	if t.running != nil {
		t.setState(t.running, StateReady)
	}
	t.setState(p, StateRunning)
	if p.startedAt.IsZero() {
		p.startedAt = t.clock.Now()
	}
	t.running = p
	return nil
}

// Block the process that is currently running.
func (t *Table) Block(pid uint32) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, err := t.getProcess(pid)
	if err != nil {
		return err
	}
	if p.state != StateRunning {
		return status.Errorf(codes.FailedPrecondition, "Process %d is %s, while it must be running to be blocked", pid, p.state)
	}
	t.setState(p, StateBlocked)
	t.running = nil
	return nil
}

// Allocate memory on behalf of a process. The start address of the
// allocated block is returned.
func (t *Table) Allocate(pid uint32, size int) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, err := t.getProcess(pid)
	if err != nil {
		return 0, err
	}
	address, err := t.allocator.Allocate(memory.Owner(pid), size)
	if err != nil {
		return 0, util.StatusWrapf(err, "Failed to allocate memory for process %d", pid)
	}
	p.memoryAddresses = append(p.memoryAddresses, address)
	return address, nil
}

// Free all memory held by a process, without terminating it.
func (t *Table) Free(pid uint32) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, err := t.getProcess(pid)
	if err != nil {
		return err
	}
	if err := t.allocator.Deallocate(memory.Owner(pid)); err != nil {
		return util.StatusWrapf(err, "Failed to release memory of process %d", pid)
	}
	p.memoryAddresses = nil
	return nil
}

// Terminate a process, releasing all of the memory it holds. A
// snapshot of the process at the time of termination is returned.
func (t *Table) Terminate(pid uint32) (Info, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, err := t.getProcess(pid)
	if err != nil {
		return Info{}, err
	}
	if len(p.memoryAddresses) > 0 {
		if err := t.allocator.Deallocate(memory.Owner(pid)); err != nil && status.Code(err) != codes.NotFound {
			return Info{}, util.StatusWrapf(err, "Failed to release memory of process %d", pid)
		}
	}

	delete(t.processes, pid)
	if t.running == p {
		t.running = nil
	}
	t.setState(p, StateTerminated)
	tableProcesses.WithLabelValues(StateTerminated.String()).Dec()
	tableProcessesTerminatedTotal.Inc()

	info := p.getInfo()
	endedAt := t.clock.Now()
	info.EndedAt = &endedAt
	return info, nil
}

// Get a snapshot of a single process.
func (t *Table) Get(pid uint32) (Info, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, err := t.getProcess(pid)
	if err != nil {
		return Info{}, err
	}
	return p.getInfo(), nil
}

// List snapshots of all processes, ordered by process ID.
func (t *Table) List() []Info {
	t.lock.Lock()
	defer t.lock.Unlock()

	infos := make([]Info, 0, len(t.processes))
	for _, p := range t.processes {
		infos = append(infos, p.getInfo())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].PID < infos[j].PID
	})
	return infos
}

// GetRunning returns the process that is currently running, if any.
func (t *Table) GetRunning() (Info, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.running == nil {
		return Info{}, false
	}
	return t.running.getInfo(), true
}
