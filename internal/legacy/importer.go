// Package legacy imports the office's previous SQL Server case
// register. On startup it pulls officers and open cases across, and
// optionally keeps polling for rows added on the old side while both
// systems run in parallel.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog"

	"github.com/emabi2002/landcasesystem-sub000/internal/authz"
	"github.com/emabi2002/landcasesystem-sub000/internal/casefile/domain"
	"github.com/emabi2002/landcasesystem-sub000/internal/directory"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/config"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/errors"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/metrics"
	"github.com/emabi2002/landcasesystem-sub000/internal/shared/types"
)

// Importer copies records from the legacy register into the case store
type Importer struct {
	cfg   config.LegacyConfig
	users directory.Repository
	cases domain.Repository
	log   zerolog.Logger

	db       *sql.DB
	running  bool
	lastPoll time.Time
	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewImporter creates a legacy importer
func NewImporter(cfg config.LegacyConfig, users directory.Repository, cases domain.Repository, log zerolog.Logger) *Importer {
	return &Importer{
		cfg:   cfg,
		users: users,
		cases: cases,
		log:   log.With().Str("component", "legacy").Logger(),
	}
}

// Start connects to the legacy database, runs one full import and, if
// configured, keeps polling for new rows
func (i *Importer) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return fmt.Errorf("importer already running")
	}

	db, err := sql.Open("sqlserver", i.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping legacy database: %w", err)
	}

	i.db = db
	i.running = true
	i.lastPoll = time.Now()

	if err := i.importOnce(ctx, time.Time{}); err != nil {
		i.log.Error().Err(err).Msg("initial legacy import failed")
	}

	if i.cfg.PollMinutes > 0 {
		pollCtx, cancel := context.WithCancel(ctx)
		i.cancel = cancel

		i.wg.Add(1)
		go i.pollLoop(pollCtx)
	}

	return nil
}

// Stop halts polling and closes the legacy connection
func (i *Importer) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return nil
	}

	if i.cancel != nil {
		i.cancel()
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if i.db != nil {
		i.db.Close()
	}

	i.running = false
	return nil
}

// Health checks legacy database connectivity
func (i *Importer) Health(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return fmt.Errorf("importer not running")
	}

	return i.db.PingContext(ctx)
}

func (i *Importer) pollLoop(ctx context.Context) {
	defer i.wg.Done()

	ticker := time.NewTicker(time.Duration(i.cfg.PollMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.mu.Lock()
			since := i.lastPoll
			i.lastPoll = time.Now()
			i.mu.Unlock()

			if err := i.importOnce(ctx, since); err != nil {
				i.log.Error().Err(err).Msg("legacy poll failed")
			}
		}
	}
}

// importOnce pulls officers first (cases reference them), then cases.
// A zero since means a full import.
func (i *Importer) importOnce(ctx context.Context, since time.Time) error {
	if err := i.importOfficers(ctx, since); err != nil {
		return fmt.Errorf("officer import: %w", err)
	}
	if err := i.importCases(ctx, since); err != nil {
		return fmt.Errorf("case import: %w", err)
	}
	return nil
}

func (i *Importer) importOfficers(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT DisplayName, Email, Role
		FROM %s
		WHERE Active = 1 AND LastModified > @since`, i.cfg.OfficerTable)

	rows, err := i.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query legacy officers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var displayName, email, role string
		if err := rows.Scan(&displayName, &email, &role); err != nil {
			i.log.Error().Err(err).Msg("failed to scan legacy officer")
			metrics.RecordLegacyImport("failed")
			continue
		}

		u := &directory.User{
			ID:          types.NewID(),
			DisplayName: displayName,
			Email:       strings.ToLower(strings.TrimSpace(email)),
			Role:        mapRole(role),
			Active:      true,
		}

		switch err := i.users.Create(ctx, u); {
		case err == nil:
			metrics.RecordLegacyImport("imported")
		case errors.Is(err, errors.ErrConflict):
			metrics.RecordLegacyImport("skipped")
		default:
			i.log.Error().Err(err).Str("email", u.Email).Msg("failed to import legacy officer")
			metrics.RecordLegacyImport("failed")
		}
	}

	return rows.Err()
}

func (i *Importer) importCases(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT CaseNumber, Title, Description, Stage, Priority, CreatedAt
		FROM %s
		WHERE LastModified > @since`, i.cfg.CaseTable)

	rows, err := i.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query legacy cases: %w", err)
	}
	defer rows.Close()

	// Imported rows have no living creator on this side; they are
	// attributed to a synthetic system actor.
	systemActor := types.NewID()
	for rows.Next() {
		var caseNumber, title, stage, priority string
		var description sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&caseNumber, &title, &description, &stage, &priority, &createdAt); err != nil {
			i.log.Error().Err(err).Msg("failed to scan legacy case")
			metrics.RecordLegacyImport("failed")
			continue
		}

		// Already copied in an earlier run
		if _, err := i.cases.FindByCaseNumber(ctx, caseNumber); err == nil {
			metrics.RecordLegacyImport("skipped")
			continue
		}

		c, err := domain.NewCase(title, description.String, mapPriority(priority), systemActor)
		if err != nil {
			i.log.Error().Err(err).Str("case_number", caseNumber).Msg("legacy case rejected")
			metrics.RecordLegacyImport("failed")
			continue
		}
		c.CaseNumber = caseNumber
		c.Stage = mapStage(stage)
		if c.Stage == domain.StageClosed || c.Stage == domain.StageNotified {
			c.Status = domain.CaseStatusClosed
		}
		c.GetDomainEvents() // imports do not re-announce history

		if err := i.cases.Save(ctx, c); err != nil {
			i.log.Error().Err(err).Str("case_number", caseNumber).Msg("failed to import legacy case")
			metrics.RecordLegacyImport("failed")
			continue
		}

		metrics.RecordLegacyImport("imported")
	}

	return rows.Err()
}

// mapRole translates the legacy register's role labels
func mapRole(role string) authz.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "executive", "exec", "management_executive":
		return authz.RoleExecutive
	case "manager", "legal_manager":
		return authz.RoleManager
	case "lawyer", "legal_officer", "counsel":
		return authz.RoleLawyer
	case "admin", "administrator":
		return authz.RoleAdmin
	default:
		return authz.RoleOfficer
	}
}

// mapStage translates the legacy register's stage labels
func mapStage(stage string) domain.Stage {
	s := domain.Stage(strings.ToLower(strings.TrimSpace(stage)))
	if s.Valid() {
		return s
	}

	switch s {
	case "new", "lodged":
		return domain.StageReceived
	case "with_officer", "assigned":
		return domain.StageAllocated
	case "active", "open":
		return domain.StageInProgress
	case "review":
		return domain.StageComplianceReview
	case "finalised", "completed":
		return domain.StageClosed
	default:
		return domain.StageReceived
	}
}

// mapPriority translates the legacy register's priority labels
func mapPriority(priority string) domain.Priority {
	p := domain.Priority(strings.ToLower(strings.TrimSpace(priority)))
	if domain.ValidPriority(p) {
		return p
	}

	switch p {
	case "critical", "immediate":
		return domain.PriorityUrgent
	case "normal", "standard":
		return domain.PriorityMedium
	default:
		return domain.PriorityMedium
	}
}
