package proc

import (
	"fmt"
	"sort"
	"sync"
)

// JobStatus is the lifecycle of one job-table entry.
type JobStatus int

const (
	JobRunning JobStatus = iota
	JobStopped
	JobDone
)

func (s JobStatus) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	default:
		return "Done"
	}
}

// Job is one background pipeline or command. External jobs carry a pid;
// in-process shell children carry only the done channel.
type Job struct {
	ID      int
	Pid     int
	Pgid    int
	Command string
	Status  JobStatus
	Exit    int

	done chan struct{}
}

// Wait blocks until the job finishes and returns its exit code.
func (j *Job) Wait() int {
	<-j.done
	return j.Exit
}

// JobTable tracks background jobs. Entries are added by the launcher when a
// job starts and reaped when the wait builtin or the prompt loop collects
// them.
type JobTable struct {
	mu     sync.Mutex
	jobs   map[int]*Job
	nextID int
}

func NewJobTable() *JobTable {
	return &JobTable{jobs: make(map[int]*Job), nextID: 1}
}

// Add registers a new running job and returns it.
func (t *JobTable) Add(pid, pgid int, command string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{
		ID:      t.nextID,
		Pid:     pid,
		Pgid:    pgid,
		Command: command,
		Status:  JobRunning,
		done:    make(chan struct{}),
	}
	t.jobs[j.ID] = j
	t.nextID++
	return j
}

// Finish marks a job done with its exit code.
func (t *JobTable) Finish(j *Job, exit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j.Status == JobDone {
		return
	}
	j.Status = JobDone
	j.Exit = exit
	close(j.done)
}

// ByPid finds the job owning pid.
func (t *JobTable) ByPid(pid int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.Pid == pid {
			return j
		}
	}
	return nil
}

// All returns jobs ordered by id.
func (t *JobTable) All() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Reap removes finished jobs, returning a notification line for each.
func (t *JobTable) Reap() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var lines []string
	for id, j := range t.jobs {
		if j.Status == JobDone {
			lines = append(lines, fmt.Sprintf("[%d]+  Done(%d)  %s", j.ID, j.Exit, j.Command))
			delete(t.jobs, id)
		}
	}
	sort.Strings(lines)
	return lines
}
