package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/tennistrack/pkg/process"
	"github.com/tauraamui/xerror"
)

type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

const FailedMessage = "Processing failed. Could not generate output video."

var (
	ErrBusy       = xerror.New("another video is already being processed")
	ErrJobRunning = xerror.New("job is still running")
)

type Status struct {
	ID            string  `json:"id"`
	State         State   `json:"state"`
	Progress      float64 `json:"progress"`
	Message       string  `json:"message,omitempty"`
	Error         string  `json:"error,omitempty"`
	FramesWritten int     `json:"frames_written"`
	FramesTotal   int     `json:"frames_total"`
}

type job struct {
	mu       sync.Mutex
	status   Status
	input    string
	output   string
	preview  string
	finished time.Time
}

// Progress lets a job act as the sink for its own run.
func (j *job) Progress(fraction float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.Progress = fraction
}

func (j *job) snapshot() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.State = StateProcessing
	j.status.Message = "Processing Video..."
}

func (j *job) succeed(res process.Result, preview string, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.State = StateDone
	j.status.Message = "Processing complete!"
	j.status.FramesWritten = res.FramesWritten
	j.status.FramesTotal = res.FramesTotal
	j.preview = preview
	j.finished = at
}

func (j *job) fail(res process.Result, err error, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status.State = StateFailed
	j.status.Message = FailedMessage
	if err != nil {
		j.status.Error = err.Error()
	}
	j.status.FramesWritten = res.FramesWritten
	j.status.FramesTotal = res.FramesTotal
	j.finished = at
}

func (j *job) setInput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.input = path
}

func (j *job) setOutput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = path
}

func (j *job) paths() (input, output string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.input, j.output
}

// playable is the file to stream inline, preferring the transcoded preview.
func (j *job) playable() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.preview != "" {
		return j.preview
	}
	return j.output
}

func (j *job) files() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return []string{j.input, j.output, j.preview}
}

func (j *job) active() bool {
	s := j.snapshot().State
	return s == StateQueued || s == StateProcessing
}

type registry struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newRegistry() *registry {
	return &registry{jobs: map[string]*job{}}
}

// reserve adds a queued job unless one is already queued or running.
func (r *registry) reserve() (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		if j.active() {
			return nil, ErrBusy
		}
	}

	j := &job{status: Status{ID: uuid.NewString(), State: StateQueued}}
	r.jobs[j.status.ID] = j
	return j, nil
}

func (r *registry) get(id string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

func (r *registry) remove(id string) (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	if j.active() {
		return nil, ErrJobRunning
	}
	delete(r.jobs, id)
	return j, nil
}

func (r *registry) discard(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// expired removes and returns finished jobs older than ttl.
func (r *registry) expired(now time.Time, ttl time.Duration) []*job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var gone []*job
	for id, j := range r.jobs {
		if j.active() {
			continue
		}
		j.mu.Lock()
		finished := j.finished
		j.mu.Unlock()
		if now.Sub(finished) >= ttl {
			gone = append(gone, j)
			delete(r.jobs, id)
		}
	}
	return gone
}

func (r *registry) drain() []*job {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*job, 0, len(r.jobs))
	for id, j := range r.jobs {
		all = append(all, j)
		delete(r.jobs, id)
	}
	return all
}
