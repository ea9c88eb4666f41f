package bundle

import "sync"

// ProgressStage identifies the current phase of a file's acquisition.
type ProgressStage uint8

// Progress stages, in the order a file passes through them.
const (
	// StageResolving indicates names are being normalized and the
	// dependency closure computed.
	StageResolving ProgressStage = iota

	// StageChecking indicates the persisted checksum is being compared with
	// the published content hash.
	StageChecking

	// StageDownloading indicates bytes are being transferred.
	StageDownloading

	// StageLoading indicates a bundle is being decoded.
	StageLoading

	// StageCompleted indicates the file and its dependencies are resident.
	StageCompleted

	// StageFailed indicates the file could not be made resident.
	StageFailed
)

// String returns the stage name.
func (s ProgressStage) String() string {
	switch s {
	case StageResolving:
		return "resolving"
	case StageChecking:
		return "checking"
	case StageDownloading:
		return "downloading"
	case StageLoading:
		return "loading"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressEvent reports progress for one file of a batch.
type ProgressEvent struct {
	// Stage identifies the current phase.
	Stage ProgressStage

	// Name is the bundle currently being processed. During dependency
	// acquisition this is the dependency, not the requested file.
	Name string

	// FileIndex is the position of the requested file in the batch.
	FileIndex int

	// FilesTotal is the number of files in the batch.
	FilesTotal int

	// BytesDone is the number of bytes transferred for this file so far,
	// summed over the file and its dependencies.
	BytesDone int64

	// BytesTotal is the known total bytes for this file.
	// Zero indicates the total is unknown.
	BytesTotal int64

	// Done is set on the final event for the file.
	Done bool

	// Err is set on the final event of a failed file.
	Err error
}

// Fraction returns the file's completion in [0, 1].
func (ev ProgressEvent) Fraction() float64 {
	if ev.Done {
		return 1
	}
	if ev.BytesTotal <= 0 {
		return 0
	}
	f := float64(ev.BytesDone) / float64(ev.BytesTotal)
	return min(f, 1)
}

// ProgressFunc receives progress updates. Calls for one batch are serialized
// and every event for file i is delivered before any event for file i+1.
type ProgressFunc func(ProgressEvent)

// fileProgress aggregates byte progress across the bundles of one file.
type fileProgress struct {
	mu     sync.Mutex
	fn     ProgressFunc
	index  int
	total  int
	name   string
	done   map[string]int64
	totals map[string]int64
	closed bool
}

func newFileProgress(fn ProgressFunc, index, total int, name string) *fileProgress {
	return &fileProgress{
		fn:     fn,
		index:  index,
		total:  total,
		name:   name,
		done:   make(map[string]int64),
		totals: make(map[string]int64),
	}
}

// emit reports stage progress for name, which may be a dependency.
func (p *fileProgress) emit(stage ProgressStage, name string, done, total int64) {
	if p == nil || p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if done > p.done[name] {
		p.done[name] = done
	}
	if total > 0 {
		p.totals[name] = total
	}
	p.fn(p.event(stage, name))
}

// finish delivers the final event. Later emits are dropped.
func (p *fileProgress) finish(err error) {
	if p == nil || p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	ev := p.event(StageCompleted, p.name)
	if err != nil {
		ev.Stage = StageFailed
		ev.Err = err
	}
	ev.Done = true
	p.fn(ev)
}

func (p *fileProgress) event(stage ProgressStage, name string) ProgressEvent {
	var done, total int64
	for _, n := range p.done {
		done += n
	}
	for _, n := range p.totals {
		total += n
	}
	return ProgressEvent{
		Stage:      stage,
		Name:       name,
		FileIndex:  p.index,
		FilesTotal: p.total,
		BytesDone:  done,
		BytesTotal: total,
	}
}
