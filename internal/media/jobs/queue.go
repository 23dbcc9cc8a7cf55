// Package jobs runs the password-gated media tools (remux, re-encode,
// track extraction) as asynchronous ffmpeg jobs. Jobs never touch room
// state directly; completion of an extract only changes what the metadata
// adapter reports for the file afterwards.
package jobs

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lakunake/Sync-Player/internal/clock"
	"github.com/Lakunake/Sync-Player/internal/media"
)

type Type string

const (
	TypeRemux    Type = "remux"
	TypeReencode Type = "reencode"
	TypeExtract  Type = "extract"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is the externally visible state of one queued tool run.
type Job struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Filename  string    `json:"filename"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"` // 0-100
	StartTime time.Time `json:"startTime"`
	Duration  float64   `json:"duration,omitempty"` // seconds, once known
	Error     string    `json:"error,omitempty"`
}

// Request describes what to run.
type Request struct {
	Type     Type   `json:"type"`
	Filename string `json:"filename"`

	Container  string `json:"container,omitempty"`  // remux target, e.g. "mp4"
	Codec      string `json:"codec,omitempty"`      // reencode
	Bitrate    string `json:"bitrate,omitempty"`    // reencode
	Scale      string `json:"scale,omitempty"`      // reencode, e.g. "1280:-2"
	StreamType string `json:"streamType,omitempty"` // extract: audio|subtitle
}

type queued struct {
	job *Job
	req Request
}

// Queue is the in-process job queue; one worker drains it so heavy
// ffmpeg runs never pile up.
type Queue struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	pending chan queued

	lib       media.Library
	manifests *media.ManifestStore
	clk       clock.Clock

	// OnTracksChanged fires after an extract lands new sidecars, so the
	// coordinator can refresh the item's track list.
	OnTracksChanged func(filename string)
}

func NewQueue(lib media.Library, manifests *media.ManifestStore, clk clock.Clock) *Queue {
	return &Queue{
		jobs:      make(map[string]*Job),
		cancels:   make(map[string]context.CancelFunc),
		pending:   make(chan queued, 32),
		lib:       lib,
		manifests: manifests,
		clk:       clk,
	}
}

// Start launches the worker; it drains until ctx ends.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case item := <-q.pending:
				q.run(ctx, item)
			}
		}
	}()
}

// Submit validates and enqueues a request.
func (q *Queue) Submit(req Request) (*Job, error) {
	if _, ok := q.lib.LocalPath(req.Filename); !ok {
		return nil, fmt.Errorf("jobs: media tools need local files")
	}
	switch req.Type {
	case TypeRemux:
		if req.Container == "" {
			return nil, fmt.Errorf("jobs: remux needs a target container")
		}
	case TypeReencode:
		if req.Codec == "" {
			return nil, fmt.Errorf("jobs: re-encode needs a codec")
		}
	case TypeExtract:
		if req.StreamType != "audio" && req.StreamType != "subtitle" {
			return nil, fmt.Errorf("jobs: extract needs streamType audio or subtitle")
		}
	default:
		return nil, fmt.Errorf("jobs: unknown job type %q", req.Type)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Filename:  req.Filename,
		Status:    StatusPending,
		StartTime: q.clk.Now(),
	}
	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case q.pending <- queued{job: job, req: req}:
	default:
		q.setFailed(job.ID, "queue full")
		return nil, fmt.Errorf("jobs: queue full")
	}
	return q.snapshot(job.ID), nil
}

// Cancel marks a job cancelled and kills its subprocess when running.
// Partial outputs are left on disk for the operator.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
		return false
	}
	job.Status = StatusCancelled
	if cancel, ok := q.cancels[id]; ok {
		cancel()
	}
	return true
}

// Get returns a copy of one job.
func (q *Queue) Get(id string) (*Job, bool) {
	j := q.snapshot(id)
	return j, j != nil
}

// List snapshots every job, newest first left to the caller to sort.
func (q *Queue) List() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

func (q *Queue) snapshot(id string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (q *Queue) setStatus(id string, st Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok && j.Status != StatusCancelled {
		j.Status = st
	}
}

func (q *Queue) setFailed(id, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok && j.Status != StatusCancelled {
		j.Status = StatusFailed
		j.Error = msg
	}
}

func (q *Queue) setProgress(id string, pct int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok && j.Status == StatusRunning {
		if pct > 100 {
			pct = 100
		}
		j.Progress = pct
	}
}

func (q *Queue) run(parent context.Context, item queued) {
	id := item.job.ID
	if cur := q.snapshot(id); cur == nil || cur.Status == StatusCancelled {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	q.mu.Lock()
	q.cancels[id] = cancel
	q.mu.Unlock()
	defer func() {
		cancel()
		q.mu.Lock()
		delete(q.cancels, id)
		q.mu.Unlock()
	}()

	path, _ := q.lib.LocalPath(item.req.Filename)
	duration := media.ProbeDuration(path)
	q.mu.Lock()
	if j, ok := q.jobs[id]; ok {
		j.Duration = duration
		j.StartTime = q.clk.Now()
	}
	q.mu.Unlock()
	q.setStatus(id, StatusRunning)

	var err error
	switch item.req.Type {
	case TypeRemux:
		err = q.runRemux(ctx, id, path, item.req, duration)
	case TypeReencode:
		err = q.runReencode(ctx, id, path, item.req, duration)
	case TypeExtract:
		err = q.runExtract(ctx, id, path, item.req)
	}

	if cur := q.snapshot(id); cur != nil && cur.Status == StatusCancelled {
		slog.Info("media job cancelled", "job", id, "type", item.req.Type)
		return
	}
	if err != nil {
		slog.Warn("media job failed", "job", id, "type", item.req.Type, "error", err)
		q.setFailed(id, err.Error())
		return
	}
	q.setProgress(id, 100)
	q.setStatus(id, StatusCompleted)
	if item.req.Type == TypeExtract && q.OnTracksChanged != nil {
		q.OnTracksChanged(item.req.Filename)
	}
}

// runProgress executes an ffmpeg command and feeds -progress output into
// the job's percentage. The command must include "-progress pipe:1".
func (q *Queue) runProgress(ctx context.Context, id string, cmd *exec.Cmd, duration float64) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "out_time_us=") {
				continue
			}
			us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64)
			if err != nil || duration <= 0 {
				continue
			}
			q.setProgress(id, int(float64(us)/1e6/duration*100))
		}
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
