package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			requester TEXT NOT NULL,
			assigned_reviewer TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			timeout_at DATETIME NOT NULL,
			escalation_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS approval_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			approval_id TEXT NOT NULL,
			decision TEXT NOT NULL,
			reviewer TEXT NOT NULL,
			decided_at DATETIME NOT NULL,
			document TEXT NOT NULL,
			FOREIGN KEY (approval_id) REFERENCES approvals(approval_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_approval ON approval_decisions(approval_id, id)`,
		`CREATE TABLE IF NOT EXISTS evolutions (
			evolution_id TEXT PRIMARY KEY,
			workshop_name TEXT NOT NULL,
			evolution_type TEXT NOT NULL,
			phase TEXT NOT NULL,
			approval_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL,
			document TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evolutions_workshop ON evolutions(workshop_name, created_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			actor TEXT,
			recipients TEXT,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_subject ON events(subject_id, ts)`,
		`CREATE TABLE IF NOT EXISTS agents (
			name TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			capabilities TEXT,
			status TEXT NOT NULL DEFAULT 'registered',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Add new columns for existing DBs (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("approvals", "priority", "ALTER TABLE approvals ADD COLUMN priority TEXT NOT NULL DEFAULT 'normal'"); err != nil {
		return err
	}
	if err := s.ensureColumn("evolutions", "completed_at", "ALTER TABLE evolutions ADD COLUMN completed_at DATETIME"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertApproval inserts or replaces an approval snapshot.
func (s *SQLiteStore) UpsertApproval(ctx context.Context, req *domain.ApprovalRequest) error {
	doc, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal approval: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approvals (approval_id, type, status, priority, requester, assigned_reviewer, created_at, timeout_at, escalation_at, updated_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(approval_id) DO UPDATE SET
			status = excluded.status,
			priority = excluded.priority,
			assigned_reviewer = excluded.assigned_reviewer,
			timeout_at = excluded.timeout_at,
			escalation_at = excluded.escalation_at,
			updated_at = excluded.updated_at,
			document = excluded.document`,
		req.ApprovalID, req.Type, req.Status, req.Priority, req.Requester, nullString(req.AssignedReviewer),
		req.CreatedAt, req.TimeoutAt, req.EscalationAt, req.LastUpdated, string(doc))
	return err
}

// GetApproval retrieves an approval by ID.
func (s *SQLiteStore) GetApproval(ctx context.Context, approvalID string) (*domain.ApprovalRequest, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM approvals WHERE approval_id = ?`, approvalID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var req domain.ApprovalRequest
	if err := json.Unmarshal([]byte(doc), &req); err != nil {
		return nil, fmt.Errorf("failed to decode approval %s: %w", approvalID, err)
	}
	return &req, nil
}

// ListApprovals lists approvals oldest first, optionally filtered by status.
func (s *SQLiteStore) ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	query := `SELECT document FROM approvals`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ApprovalRequest
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var req domain.ApprovalRequest
		if err := json.Unmarshal([]byte(doc), &req); err != nil {
			return nil, fmt.Errorf("failed to decode approval: %w", err)
		}
		out = append(out, &req)
	}
	return out, rows.Err()
}

// AppendDecision appends a decision to an approval's history.
func (s *SQLiteStore) AppendDecision(ctx context.Context, decision *domain.ApprovalDecision) error {
	doc, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approval_decisions (approval_id, decision, reviewer, decided_at, document) VALUES (?, ?, ?, ?, ?)`,
		decision.ApprovalID, decision.Decision, decision.Reviewer, decision.DecisionTime, string(doc))
	return err
}

// ListDecisions lists an approval's decisions in insertion order.
func (s *SQLiteStore) ListDecisions(ctx context.Context, approvalID string) ([]domain.ApprovalDecision, error) {
	all, err := s.listDecisions(ctx, `SELECT document FROM approval_decisions WHERE approval_id = ? ORDER BY id ASC`, approvalID)
	if err != nil {
		return nil, err
	}
	return all[approvalID], nil
}

// ListAllDecisions returns every decision grouped by approval id.
func (s *SQLiteStore) ListAllDecisions(ctx context.Context) (map[string][]domain.ApprovalDecision, error) {
	return s.listDecisions(ctx, `SELECT document FROM approval_decisions ORDER BY id ASC`)
}

func (s *SQLiteStore) listDecisions(ctx context.Context, query string, args ...interface{}) (map[string][]domain.ApprovalDecision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.ApprovalDecision)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d domain.ApprovalDecision
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		out[d.ApprovalID] = append(out[d.ApprovalID], d)
	}
	return out, rows.Err()
}

// UpsertEvolution inserts or replaces an evolution snapshot.
func (s *SQLiteStore) UpsertEvolution(ctx context.Context, evo *domain.Evolution) error {
	doc, err := json.Marshal(evo)
	if err != nil {
		return fmt.Errorf("failed to marshal evolution: %w", err)
	}
	var completedAt sql.NullTime
	if evo.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *evo.CompletedAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evolutions (evolution_id, workshop_name, evolution_type, phase, approval_id, created_at, updated_at, completed_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(evolution_id) DO UPDATE SET
			phase = excluded.phase,
			approval_id = excluded.approval_id,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at,
			document = excluded.document`,
		evo.EvolutionID, evo.WorkshopName, evo.Type, evo.Phase, nullString(evo.ApprovalID),
		evo.CreatedAt, evo.LastUpdated, completedAt, string(doc))
	return err
}

// GetEvolution retrieves an evolution by ID.
func (s *SQLiteStore) GetEvolution(ctx context.Context, evolutionID string) (*domain.Evolution, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM evolutions WHERE evolution_id = ?`, evolutionID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var evo domain.Evolution
	if err := json.Unmarshal([]byte(doc), &evo); err != nil {
		return nil, fmt.Errorf("failed to decode evolution %s: %w", evolutionID, err)
	}
	return &evo, nil
}

// ListEvolutions lists every evolution oldest first.
func (s *SQLiteStore) ListEvolutions(ctx context.Context) ([]*domain.Evolution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM evolutions ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Evolution
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var evo domain.Evolution
		if err := json.Unmarshal([]byte(doc), &evo); err != nil {
			return nil, fmt.Errorf("failed to decode evolution: %w", err)
		}
		out = append(out, &evo)
	}
	return out, rows.Err()
}

// DeleteEvolutions removes evolutions by id.
func (s *SQLiteStore) DeleteEvolutions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM evolutions WHERE evolution_id IN (%s)`, strings.Join(placeholders, ",")),
		args...)
	return err
}

// AppendEvent records an outbound event in the journal.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	recipients := ""
	if len(event.Recipients) > 0 {
		data, _ := json.Marshal(event.Recipients)
		recipients = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, subject_id, ts, type, actor, recipients, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.SubjectID, event.Ts, event.Type, event.Actor, recipients, payload)
	return err
}

// ListEvents retrieves journaled events. An empty subjectID lists events for
// every subject.
func (s *SQLiteStore) ListEvents(ctx context.Context, subjectID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, subject_id, ts, type, actor, recipients, payload FROM events WHERE 1 = 1`
	var args []interface{}

	if subjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, subjectID)
	}
	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(` AND type IN (%s)`, strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var actor, recipients, payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.SubjectID, &event.Ts, &event.Type, &actor, &recipients, &payload); err != nil {
			return nil, err
		}
		event.Actor = actor.String
		if recipients.Valid && recipients.String != "" {
			if err := json.Unmarshal([]byte(recipients.String), &event.Recipients); err != nil {
				return nil, fmt.Errorf("failed to decode recipients: %w", err)
			}
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpsertAgent registers or updates an agent.
func (s *SQLiteStore) UpsertAgent(ctx context.Context, agent *domain.Agent) error {
	var capabilities sql.NullString
	if len(agent.Capabilities) > 0 {
		capabilities = sql.NullString{String: string(agent.Capabilities), Valid: true}
	}
	now := time.Now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	if agent.UpdatedAt.IsZero() {
		agent.UpdatedAt = now
	}
	if agent.Status == "" {
		agent.Status = "registered"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (name, endpoint, capabilities, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			endpoint = excluded.endpoint,
			capabilities = excluded.capabilities,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		agent.Name, agent.Endpoint, capabilities, agent.Status, agent.CreatedAt, agent.UpdatedAt)
	return err
}

// GetAgent retrieves an agent by name.
func (s *SQLiteStore) GetAgent(ctx context.Context, name string) (*domain.Agent, error) {
	var agent domain.Agent
	var capabilities sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name, endpoint, capabilities, status, created_at, updated_at FROM agents WHERE name = ?`,
		name).Scan(&agent.Name, &agent.Endpoint, &capabilities, &agent.Status, &agent.CreatedAt, &agent.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if capabilities.Valid {
		agent.Capabilities = json.RawMessage(capabilities.String)
	}
	return &agent, nil
}

// ListAgents lists registered agents ordered by name.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, endpoint, capabilities, status, created_at, updated_at FROM agents ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		var capabilities sql.NullString
		if err := rows.Scan(&agent.Name, &agent.Endpoint, &capabilities, &agent.Status, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
			return nil, err
		}
		if capabilities.Valid {
			agent.Capabilities = json.RawMessage(capabilities.String)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// DeleteAgent removes an agent registration and reports whether one existed.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
