package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "dailytales/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Enabled  bool
	Timezone string        // IANA TZ, e.g. "Asia/Riyadh"
	Timeout  time.Duration // per run; 0 means DefaultTimeout
}

const DefaultTimeout = 2 * time.Minute

// Job is one auto-dispatch run.
type Job func(ctx context.Context) error

const dailyName = "auto_dispatch"

type scheduleDef struct {
	name    string
	at      string // normalized HH:MM:SS
	spec    string // "sec min hour * * *"
	entryID cron.EntryID
}

type runInfo struct {
	at   time.Time
	took time.Duration
	err  string
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	job    Job
	parser cron.Parser
	c      *cron.Cron
	def    *scheduleDef

	// base is cancelled by Stop so a run in flight unwinds.
	base       context.Context
	baseCancel context.CancelFunc

	// timeout is read by runs without s.mu; restartLocked waits on runs while holding it.
	timeout atomic.Int64
	running sync.Mutex // held while a run is in flight

	rmu     sync.Mutex
	last    runInfo
	runs    uint64
	skipped uint64
}

type Snapshot struct {
	Enabled  bool      `json:"enabled"`
	Timezone string    `json:"timezone"`
	Active   bool      `json:"active"` // a daily entry is registered
	At       string    `json:"at,omitempty"`
	Spec     string    `json:"spec,omitempty"`
	Next     time.Time `json:"next,omitempty"`
	Prev     time.Time `json:"prev,omitempty"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastTook string    `json:"last_took,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	Runs     uint64    `json:"runs"`
	Skipped  uint64    `json:"skipped"`
}
