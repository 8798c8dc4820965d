package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/docfix/internal/models"
	"github.com/xhad/docfix/pkg/docx"
	"github.com/xhad/docfix/pkg/metrics"
	"github.com/xhad/docfix/pkg/processor"
)

var ErrQueueFull = errors.New("queue is full")

type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) Finished() bool {
	return s == StateDone || s == StateFailed
}

// Status is the externally visible snapshot of a job.
type Status struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	State    State          `json:"state"`
	Done     int            `json:"done"`
	Total    int            `json:"total"`
	Progress float64        `json:"progress"`
	Report   *models.Report `json:"report,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Job is one uploaded document on its way through the queue.
type Job struct {
	ID       string
	Name     string
	Language string
	Mode     processor.Mode

	mu          sync.Mutex
	doc         *docx.Document
	state       State
	progress    models.Progress
	report      *models.Report
	err         error
	result      []byte
	finishedAt  time.Time
	subscribers map[chan Status]struct{}
}

func NewJob(name, language string, mode processor.Mode, doc *docx.Document) *Job {
	return &Job{
		ID:          uuid.NewString(),
		Name:        name,
		Language:    language,
		Mode:        mode,
		doc:         doc,
		state:       StateQueued,
		subscribers: make(map[chan Status]struct{}),
	}
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status()
}

func (j *Job) status() Status {
	st := Status{
		ID:       j.ID,
		Name:     j.Name,
		State:    j.state,
		Done:     j.progress.Done,
		Total:    j.progress.Total,
		Progress: j.progress.Fraction(),
		Report:   j.report,
	}
	switch j.state {
	case StateQueued:
		st.Progress = 0
	case StateDone:
		st.Progress = 1
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

// Result returns the corrected document once the job is done.
func (j *Job) Result() ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.state == StateDone
}

// Subscribe returns a channel of status updates. The channel is closed when
// the job finishes or the returned cancel func is called. Intermediate updates
// are dropped for slow readers; Status always has the latest.
func (j *Job) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 16)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state.Finished() {
		close(ch)
		return ch, func() {}
	}

	j.subscribers[ch] = struct{}{}

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subscribers[ch]; ok {
			delete(j.subscribers, ch)
			close(ch)
		}
	}
}

func (j *Job) update(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fn()

	st := j.status()
	for ch := range j.subscribers {
		select {
		case ch <- st:
		default:
		}
	}

	if j.state.Finished() {
		for ch := range j.subscribers {
			close(ch)
		}
		j.subscribers = map[chan Status]struct{}{}
	}
}

func (j *Job) start() {
	j.update(func() { j.state = StateProcessing })
}

func (j *Job) setProgress(p models.Progress) {
	j.update(func() { j.progress = p })
}

func (j *Job) finish(report *models.Report, result []byte) {
	j.update(func() {
		j.state = StateDone
		j.report = report
		j.result = result
		j.doc = nil
		j.finishedAt = time.Now()
	})
}

func (j *Job) fail(report *models.Report, err error) {
	j.update(func() {
		j.state = StateFailed
		j.report = report
		j.err = err
		j.doc = nil
		j.finishedAt = time.Now()
	})
}

func (j *Job) expired(now time.Time, retention time.Duration) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Finished() && now.Sub(j.finishedAt) > retention
}

type QueueConfig struct {
	Size      int
	Retention time.Duration
	Metrics   *metrics.Metrics
}

// Queue holds submitted jobs and hands them to a single worker in order.
// A job holds one of Size places from Reserve until the worker picks it up.
type Queue struct {
	config  QueueConfig
	slots   chan struct{}
	pending chan *Job

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewQueue(config QueueConfig) *Queue {
	if config.Size <= 0 {
		config.Size = 100
	}
	if config.Retention <= 0 {
		config.Retention = time.Hour
	}

	return &Queue{
		config:  config,
		slots:   make(chan struct{}, config.Size),
		pending: make(chan *Job, config.Size),
		jobs:    make(map[string]*Job),
	}
}

// Reservation is a place in the queue claimed ahead of the job that will use
// it.
type Reservation struct {
	queue *Queue
	used  bool
}

// Reserve claims a place in the queue, or returns ErrQueueFull.
func (q *Queue) Reserve() (*Reservation, error) {
	select {
	case q.slots <- struct{}{}:
		return &Reservation{queue: q}, nil
	default:
		return nil, ErrQueueFull
	}
}

// Submit enqueues job in the reserved place. It never blocks.
func (r *Reservation) Submit(job *Job) {
	if r.used {
		return
	}
	r.used = true

	q := r.queue
	q.prune()

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	q.pending <- job
	q.config.Metrics.SetQueueDepth(len(q.pending))
}

// Release gives the place back. It is a no-op once Submit has been called.
func (r *Reservation) Release() {
	if r.used {
		return
	}
	r.used = true
	<-r.queue.slots
}

func (q *Queue) Submit(job *Job) error {
	r, err := q.Reserve()
	if err != nil {
		return err
	}
	r.Submit(job)
	return nil
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	return job, ok
}

// Run processes jobs one at a time until ctx is done.
func (q *Queue) Run(ctx context.Context, process func(context.Context, *Job)) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.pending:
			<-q.slots
			q.config.Metrics.SetQueueDepth(len(q.pending))
			process(ctx, job)
		}
	}
}

func (q *Queue) prune() {
	now := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	for id, job := range q.jobs {
		if job.expired(now, q.config.Retention) {
			delete(q.jobs, id)
		}
	}
}
