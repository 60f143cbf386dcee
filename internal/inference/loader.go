package inference

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/binder"
	"github.com/born-ml/microexec/internal/kernels"
	"github.com/born-ml/microexec/internal/memory"
	"github.com/born-ml/microexec/internal/program"
	"github.com/born-ml/microexec/internal/runtime"
	"github.com/born-ml/microexec/internal/status"
)

// State is the lifecycle state of a Loader.
type State int

// Loader states, in order.
const (
	StateUninitialized State = iota
	StateInitialized
	StateProgramLoaded
	StateMethodReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateProgramLoaded:
		return "program-loaded"
	case StateMethodReady:
		return "method-ready"
	default:
		return "unknown"
	}
}

// noCopy makes go vet's copylocks check flag copies of a Loader.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Loader owns a compiled program, the arenas it runs in, and the loaded method.
type Loader struct {
	noCopy noCopy

	src     program.DataSource
	cfg     Config
	log     klog.Logger
	kernels *kernels.Registry

	methodPool []byte
	tempPool   []byte
	method     *arena.Arena
	temp       *arena.Arena

	state   State
	prog    *program.Program
	planned *memory.HierarchicalAllocator
	mgr     *memory.Manager
	exec    *runtime.Method
	binder  *binder.Binder

	runs     uint64
	failures uint64
}

// New creates a Loader for the program in src. No memory is reserved until Initialize.
func New(src program.DataSource, cfg Config, opts ...Option) *Loader {
	l := &Loader{
		src: src,
		cfg: cfg,
		log: klog.Background().WithName("program-loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.kernels == nil {
		l.kernels = kernels.NewRegistry()
	}
	if l.cfg.MethodName == "" {
		l.cfg.MethodName = DefaultMethodName
	}
	return l
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	return l.state
}

// IsLoaded reports whether the method is ready to run.
func (l *Loader) IsLoaded() bool {
	return l.state == StateMethodReady
}

// Initialize creates the method and temporary arenas. Calling it again has no effect.
func (l *Loader) Initialize() error {
	if l.state != StateUninitialized {
		return nil
	}

	l.log.Info("initializing program loader")

	if (l.methodPool == nil) != (l.tempPool == nil) {
		err := status.Errorf(status.InvalidArgument, "caller pools must be given together: method %t, temp %t",
			l.methodPool != nil, l.tempPool != nil)
		return status.WithStage(err, status.StageInitialize)
	}
	if l.methodPool == nil {
		if l.cfg.MethodPoolSize < 0 || l.cfg.TempPoolSize < 0 {
			err := status.Errorf(status.InvalidArgument, "negative pool size: method %d, temp %d",
				l.cfg.MethodPoolSize, l.cfg.TempPoolSize)
			return status.WithStage(err, status.StageInitialize)
		}
		l.methodPool = make([]byte, l.cfg.MethodPoolSize)
		l.tempPool = make([]byte, l.cfg.TempPoolSize)
	}
	l.method = arena.New(l.methodPool)
	l.temp = arena.New(l.tempPool)

	l.state = StateInitialized
	l.log.Info("program loader initialized", "methodPool", l.method.TotalSize(), "tempPool", l.temp.TotalSize())
	return nil
}

// LoadProgram parses the program, plans memory for the configured method and loads it.
//
// It must follow Initialize. Once the method is ready further calls do nothing. Any other call
// starts from scratch: both arenas are rewound and the program is parsed again. On failure
// the Loader stays at the last state it reached and keeps nothing from the attempt.
func (l *Loader) LoadProgram() error {
	switch l.state {
	case StateUninitialized:
		err := status.Errorf(status.InvalidState, "program loader not initialized; call Initialize first")
		l.log.Error(err, "cannot load program")
		return status.WithStage(err, status.StageProgramLoad)
	case StateMethodReady:
		return nil
	}

	if l.src == nil {
		return status.WithStage(status.Errorf(status.InvalidArgument, "no program source"), status.StageProgramLoad)
	}

	l.reset()

	l.log.Info("loading program", "size", l.src.Size())
	prog, err := program.Load(l.src, program.WithLoadOptions(l.cfg.Load))
	if err != nil {
		l.log.Error(err, "failed to load program")
		return status.WithStage(err, status.StageProgramLoad)
	}
	l.prog = prog
	l.state = StateProgramLoaded
	l.log.Info("program loaded", "id", prog.ID().String(), "methods", prog.NumMethods(), "flags", prog.Flags())

	if err := l.loadMethod(); err != nil {
		l.reset()
		l.prog = prog
		l.state = StateProgramLoaded
		return err
	}

	l.state = StateMethodReady
	l.log.Info("method loaded", "method", l.cfg.MethodName,
		"methodPoolUsed", l.method.UsedSize(), "methodPoolFree", l.method.FreeSize())
	return nil
}

// loadMethod runs the method stages of LoadProgram against the parsed program.
func (l *Loader) loadMethod() error {
	name := l.cfg.MethodName

	meta, err := l.prog.MethodMeta(name)
	if err != nil {
		l.log.Error(err, "failed to get method metadata", "method", name)
		return status.WithStage(err, status.StageMethodMeta)
	}
	l.log.Info("planning method memory", "method", name, "plannedBuffers", meta.NumMemoryPlannedBuffers())

	planned, err := memory.Plan(meta, l.method, l.log)
	if err != nil {
		l.log.Error(err, "failed to plan method memory", "method", name)
		return err
	}
	mgr := memory.NewManager(l.method, planned, l.temp)

	exec, err := runtime.Load(l.prog, name, mgr, l.kernels)
	if err != nil {
		l.log.Error(err, "failed to load method", "method", name)
		return status.WithStage(err, status.StageMethodLoad)
	}

	b, err := binder.New(exec, l.cfg.MaxInputs, l.method)
	if err != nil {
		l.log.Error(err, "failed to reserve input slots", "method", name)
		return status.WithStage(err, status.StageMethodLoad)
	}

	l.planned = planned
	l.mgr = mgr
	l.exec = exec
	l.binder = b
	return nil
}

// reset drops everything a load produced and rewinds both arenas.
func (l *Loader) reset() {
	l.prog = nil
	l.planned = nil
	l.mgr = nil
	l.exec = nil
	l.binder = nil
	l.method.Reset()
	l.temp.Reset()
	l.state = StateInitialized
}

// Program returns the parsed program, or nil before the program stage succeeds.
func (l *Loader) Program() *program.Program {
	return l.prog
}

// Method returns the loaded method, or nil unless the Loader is MethodReady.
func (l *Loader) Method() *runtime.Method {
	return l.exec
}

// Stats reports arena usage and run counters.
type Stats struct {
	State          State
	MethodPoolSize int
	MethodPoolUsed int
	MethodPoolFree int
	TempPoolSize   int
	TempPoolUsed   int
	PlannedBuffers int
	Runs           uint64
	Failures       uint64
}

// Stats returns a snapshot of the Loader's memory usage.
func (l *Loader) Stats() Stats {
	s := Stats{State: l.state, Runs: l.runs, Failures: l.failures}
	if l.method != nil {
		s.MethodPoolSize = l.method.TotalSize()
		s.MethodPoolUsed = l.method.UsedSize()
		s.MethodPoolFree = l.method.FreeSize()
	}
	if l.temp != nil {
		s.TempPoolSize = l.temp.TotalSize()
		s.TempPoolUsed = l.temp.UsedSize()
	}
	if l.planned != nil {
		s.PlannedBuffers = l.planned.NumBuffers()
	}
	return s
}
