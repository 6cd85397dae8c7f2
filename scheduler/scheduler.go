// Package scheduler runs the bot's polling job on a cron schedule, either
// daily at HH:MM or at a fixed interval ("every 30m").
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Scheduler manages cron-based job scheduling with timezone support.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	mu       sync.Mutex
	entryID  cron.EntryID
	started  bool
}

// NewScheduler creates a new scheduler for the given timezone.
func NewScheduler(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		location: loc,
	}, nil
}

// Schedule sets up the job from a spec: either "HH:MM" for a daily run or
// "every <duration>" (e.g. "every 30m") for interval runs. Scheduling again
// replaces the previous job.
func (s *Scheduler) Schedule(spec string, fn func()) error {
	cronSpec, err := parseSpec(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(cronSpec, fn)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = entryID

	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

// ValidSpec reports whether the spec would be accepted by Schedule.
func ValidSpec(spec string) bool {
	_, err := parseSpec(spec)
	return err == nil
}

func parseSpec(spec string) (string, error) {
	spec = strings.TrimSpace(spec)

	if rest, ok := strings.CutPrefix(spec, "every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return "", fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d < time.Minute {
			return "", fmt.Errorf("interval %s below one minute", d)
		}
		return "@every " + d.String(), nil
	}

	matches := timeRegex.FindStringSubmatch(spec)
	if len(matches) != 3 {
		return "", fmt.Errorf("invalid schedule %q (expected HH:MM or 'every <duration>')", spec)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])

	// Cron format: minute hour day month weekday
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
