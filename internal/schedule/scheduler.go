// Package schedule runs standing natural-language questions on cron
// schedules and delivers the answers to chat destinations.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kayz/sqlpal/internal/logger"
)

// QuestionRunner runs one question through the query pipeline and returns
// the rendered answer text.
type QuestionRunner interface {
	RunQuestion(ctx context.Context, question string) (string, error)
}

// Notifier delivers a scheduled answer to a chat destination. Nil platform
// destinations are logged instead.
type Notifier interface {
	Notify(ctx context.Context, platform, channelID, text string) error
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron     *cron.Cron
	store    *Store
	runner   QuestionRunner
	notifier Notifier
	jobs     map[string]*Job
	mu       sync.RWMutex

	runTimeout time.Duration
}

// NewScheduler creates a new scheduler. notifier may be nil.
func NewScheduler(store *Store, runner QuestionRunner, notifier Notifier) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		store:      store,
		runner:     runner,
		notifier:   notifier,
		jobs:       make(map[string]*Job),
		runTimeout: 5 * time.Minute,
	}
}

// normalizeCron prepends "0 " to standard 5-field cron expressions
// so they work with the 6-field (with seconds) parser.
func normalizeCron(schedule string) string {
	if len(strings.Fields(schedule)) == 5 {
		return "0 " + schedule
	}
	return schedule
}

// Start loads jobs from storage and starts the scheduler
func (s *Scheduler) Start() error {
	jobs, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	for _, job := range jobs {
		s.jobs[job.ID] = job
		if job.Enabled {
			if err := s.scheduleJob(job); err != nil {
				logger.Error("failed to schedule job %s (%s): %v", job.ID, job.Name, err)
			}
		}
	}

	s.cron.Start()
	logger.Info("scheduler started with %d jobs (%d enabled)", len(s.jobs), s.countEnabled())
	return nil
}

// Stop stops the scheduler and closes the store
func (s *Scheduler) Stop() error {
	ctx := s.cron.Stop()
	<-ctx.Done()

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// AddJob creates and schedules a new standing question.
func (s *Scheduler) AddJob(name, spec, question, platform, channelID string) (*Job, error) {
	spec = normalizeCron(spec)

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Schedule:  spec,
		Question:  question,
		Platform:  platform,
		ChannelID: channelID,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.scheduleJob(job); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	if err := s.store.SaveJob(job); err != nil {
		logger.Error("failed to save job: %v", err)
	}

	logger.Info("job created: %s (%s) schedule=%s", job.ID, job.Name, job.Schedule)
	return job.Clone(), nil
}

// RemoveJob deletes a job and unschedules it.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	s.cron.Remove(job.EntryID)
	return s.store.DeleteJob(id)
}

// ListJobs returns a snapshot of all jobs.
func (s *Scheduler) ListJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	return jobs
}

func (s *Scheduler) scheduleJob(job *Job) error {
	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		s.executeJob(job.ID)
	})
	if err != nil {
		return err
	}

	job.EntryID = entryID
	return nil
}

func (s *Scheduler) executeJob(id string) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	answer, err := s.runner.RunQuestion(ctx, job.Question)

	now := time.Now().UTC()
	s.mu.Lock()
	job.LastRun = &now
	if err != nil {
		job.LastError = err.Error()
	} else {
		job.LastError = ""
	}
	snapshot := job.Clone()
	s.mu.Unlock()

	if err := s.store.SaveJob(snapshot); err != nil {
		logger.Error("failed to persist job run: %v", err)
	}

	if err != nil {
		logger.Error("scheduled question %q failed: %v", job.Name, err)
		return
	}

	if s.notifier != nil && job.Platform != "" && job.ChannelID != "" {
		text := fmt.Sprintf("[%s]\n%s", job.Name, answer)
		if err := s.notifier.Notify(ctx, job.Platform, job.ChannelID, text); err != nil {
			logger.Error("failed to deliver scheduled answer for %q: %v", job.Name, err)
		}
		return
	}

	logger.Info("scheduled question %q:\n%s", job.Name, answer)
}

func (s *Scheduler) countEnabled() int {
	n := 0
	for _, job := range s.jobs {
		if job.Enabled {
			n++
		}
	}
	return n
}
