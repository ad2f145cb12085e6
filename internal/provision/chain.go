package provision

import (
	"context"
	"errors"
	"time"

	"github.com/blagoySimandov/proaccount/internal/logging"
	"github.com/blagoySimandov/proaccount/internal/metrics"
	"github.com/blagoySimandov/proaccount/internal/services"
	"github.com/blagoySimandov/proaccount/internal/user"
)

const (
	StageInsert       = "insert"
	StageUpdate       = "update"
	StageDirectInsert = "direct_insert"
	StageBackup       = "backup_log"
	StageDowngrade    = "downgrade"
)

// Request is what a persistence chain writes for one webhook delivery.
type Request struct {
	Email     string
	FirstName *string
	EventType string
	IsPro     bool
}

// Stage is one step of a fallback chain. Applies is consulted with the
// previous stage's error; the first stage always runs.
type Stage interface {
	Name() string
	Applies(prev error) bool
	Persist(ctx context.Context, req Request) error
}

type Attempt struct {
	Stage string `json:"stage"`
	Error string `json:"error,omitempty"`
}

type Result struct {
	Stage    string    `json:"stage,omitempty"`
	Attempts []Attempt `json:"attempts"`
	Err      error     `json:"-"`
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Chain runs stages in order until one succeeds.
type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

func (c *Chain) Run(ctx context.Context, req Request) Result {
	var (
		res  Result
		prev error
	)
	for i, s := range c.stages {
		if i > 0 && !s.Applies(prev) {
			continue
		}

		start := time.Now()
		err := s.Persist(ctx, req)

		logging.EmitStageEvent(ctx, s.Name(), req.Email, time.Since(start), err)
		logging.EnrichPersistAttempt(ctx, s.Name(), err)
		metrics.RecordPersistStage(s.Name(), err)

		a := Attempt{Stage: s.Name()}
		if err != nil {
			a.Error = err.Error()
		}
		res.Attempts = append(res.Attempts, a)

		if err == nil {
			res.Stage = s.Name()
			return res
		}
		prev = err
	}
	res.Err = prev
	return res
}

type InsertStage struct {
	repo user.Repository
}

func NewInsertStage(repo user.Repository) *InsertStage {
	return &InsertStage{repo: repo}
}

func (s *InsertStage) Name() string { return StageInsert }
func (s *InsertStage) Applies(prev error) bool { return true }

func (s *InsertStage) Persist(ctx context.Context, req Request) error {
	return s.repo.InsertPro(ctx, req.Email, req.FirstName)
}

// UpdateStage only follows a unique conflict from the insert.
type UpdateStage struct {
	repo user.Repository
}

func NewUpdateStage(repo user.Repository) *UpdateStage {
	return &UpdateStage{repo: repo}
}

func (s *UpdateStage) Name() string { return StageUpdate }

func (s *UpdateStage) Applies(prev error) bool {
	return errors.Is(prev, user.ErrDuplicateEmail)
}

func (s *UpdateStage) Persist(ctx context.Context, req Request) error {
	return s.repo.SetPro(ctx, req.Email, req.IsPro, req.FirstName)
}

// DowngradeStage clears the pro flag on an existing account.
type DowngradeStage struct {
	repo user.Repository
}

func NewDowngradeStage(repo user.Repository) *DowngradeStage {
	return &DowngradeStage{repo: repo}
}

func (s *DowngradeStage) Name() string { return StageDowngrade }
func (s *DowngradeStage) Applies(prev error) bool { return true }

func (s *DowngradeStage) Persist(ctx context.Context, req Request) error {
	return s.repo.SetPro(ctx, req.Email, false, nil)
}

type DirectInserter interface {
	Insert(ctx context.Context, in services.DirectInsertRequest) error
}

type DirectInsertStage struct {
	client DirectInserter
}

func NewDirectInsertStage(client DirectInserter) *DirectInsertStage {
	return &DirectInsertStage{client: client}
}

func (s *DirectInsertStage) Name() string { return StageDirectInsert }
func (s *DirectInsertStage) Applies(prev error) bool { return true }

func (s *DirectInsertStage) Persist(ctx context.Context, req Request) error {
	return s.client.Insert(ctx, services.DirectInsertRequest{
		Email:     req.Email,
		IsPro:     req.IsPro,
		FirstName: req.FirstName,
	})
}

// BackupStage appends to the backup log. suffix is added to the event type,
// e.g. "_cancellation" for downgrades.
type BackupStage struct {
	log    *BackupLog
	suffix string
}

func NewBackupStage(log *BackupLog, suffix string) *BackupStage {
	return &BackupStage{log: log, suffix: suffix}
}

func (s *BackupStage) Name() string { return StageBackup }
func (s *BackupStage) Applies(prev error) bool { return true }

func (s *BackupStage) Persist(ctx context.Context, req Request) error {
	if err := s.log.Append(req.Email, req.EventType+s.suffix, req.IsPro); err != nil {
		return err
	}
	logging.EnrichBackupLogged(ctx)
	return nil
}
