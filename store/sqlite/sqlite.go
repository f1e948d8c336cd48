// Package sqlite implements the memory store on SQLite.
//
// Every query carries the owner in its WHERE clause; there is no code
// path that reads another owner's rows. The database is a single file
// opened in WAL mode, suitable for one process with concurrent readers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Store implements memory.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ memory.Store = (*Store)(nil)

// New opens or creates a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id              TEXT PRIMARY KEY,
		owner           TEXT NOT NULL,
		kind            TEXT NOT NULL,
		content         TEXT NOT NULL,
		keywords        TEXT,
		reliability     REAL NOT NULL DEFAULT 0.5,
		access_count    INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		category        TEXT,
		attribute       TEXT,
		value           TEXT,
		topic           TEXT,
		fact            TEXT,
		conversation_id TEXT,
		event_type      TEXT,
		summary         TEXT,
		procedure_name  TEXT,
		trigger_text    TEXT,
		steps           TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_kind ON memories(owner, kind);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_created ON memories(owner, created_at DESC);

	CREATE TABLE IF NOT EXISTS entities (
		id            TEXT PRIMARY KEY,
		owner         TEXT NOT NULL,
		name          TEXT NOT NULL,
		type          TEXT,
		description   TEXT,
		mention_count INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entities_owner_name ON entities(owner, name);

	CREATE TABLE IF NOT EXISTS memory_entities (
		memory_id TEXT NOT NULL REFERENCES memories(id),
		entity_id TEXT NOT NULL REFERENCES entities(id),
		PRIMARY KEY (memory_id, entity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const memoryColumns = `id, owner, kind, content, keywords, reliability, access_count,
	created_at, updated_at, category, attribute, value, topic, fact,
	conversation_id, event_type, summary, procedure_name, trigger_text, steps`

// Put inserts or replaces a memory. A missing ID gets a generated
// UUID, missing timestamps get now, and a zero reliability gets the
// default. The argument is updated in place.
func (s *Store) Put(ctx context.Context, m *memory.Memory) error {
	if m.Owner == "" {
		return fmt.Errorf("put memory: owner required")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("put memory: invalid kind %q", m.Kind)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Reliability == 0 {
		m.Reliability = memory.DefaultReliability
	}

	keywords, err := json.Marshal(m.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	steps, err := json.Marshal(m.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories (`+memoryColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Owner, string(m.Kind), m.Content, string(keywords),
		m.Reliability, m.AccessCount,
		m.CreatedAt.Format(time.RFC3339Nano), m.UpdatedAt.Format(time.RFC3339Nano),
		m.Category, m.Attribute, m.Value, m.Topic, m.Fact,
		m.ConversationID, m.EventType, m.Summary,
		m.ProcedureName, m.Trigger, string(steps),
	)
	if err != nil {
		return fmt.Errorf("put memory: %w", err)
	}
	return nil
}

// Find returns the owner's memories matching q.
func (s *Store) Find(ctx context.Context, owner string, q memory.FindQuery) ([]memory.Memory, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + memoryColumns + " FROM memories WHERE owner = ?")
	args := []interface{}{owner}

	if len(q.Kinds) > 0 {
		sb.WriteString(" AND kind IN (?" + strings.Repeat(",?", len(q.Kinds)-1) + ")")
		for _, k := range q.Kinds {
			args = append(args, string(k))
		}
	}

	switch q.Order {
	case memory.OrderReliability:
		sb.WriteString(" ORDER BY reliability DESC, created_at DESC")
	case memory.OrderRecency:
		sb.WriteString(" ORDER BY created_at DESC")
	default:
		sb.WriteString(" ORDER BY created_at DESC")
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByID returns one memory, or nil when the owner has no such record.
func (s *Store) GetByID(ctx context.Context, owner string, id string) (*memory.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE owner = ? AND id = ?", owner, id)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	m, err := scanMemory(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PutEntity inserts or replaces an entity. A missing ID gets a
// generated UUID and a missing creation time gets now.
func (s *Store) PutEntity(ctx context.Context, e *memory.Entity) error {
	if e.Owner == "" {
		return fmt.Errorf("put entity: owner required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entities (id, owner, name, type, description, mention_count, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.Owner, e.Name, e.Type, e.Description, e.MentionCount,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	return nil
}

// Link associates a memory with an entity. Both must belong to the
// owner; linking is idempotent.
func (s *Store) Link(ctx context.Context, owner, memoryID, entityID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO memory_entities (memory_id, entity_id)
		SELECT m.id, e.id FROM memories m, entities e
		WHERE m.id = ? AND m.owner = ? AND e.id = ? AND e.owner = ?`,
		memoryID, owner, entityID, owner)
	if err != nil {
		return fmt.Errorf("link memory: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either already linked or not owned; re-check ownership so the
		// caller learns about the latter.
		var count int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM memory_entities me
			JOIN memories m ON m.id = me.memory_id
			WHERE me.memory_id = ? AND me.entity_id = ? AND m.owner = ?`,
			memoryID, entityID, owner).Scan(&count)
		if err != nil {
			return fmt.Errorf("link memory: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("link memory: %s or %s not found for owner", memoryID, entityID)
		}
	}
	return nil
}

// FindEntities returns entities whose name contains any of the given
// names, case-insensitively, at most limit per name.
func (s *Store) FindEntities(ctx context.Context, owner string, names []string, limit int) ([]memory.Entity, error) {
	if limit <= 0 {
		limit = 5
	}

	seen := make(map[string]struct{})
	var out []memory.Entity
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, owner, name, type, description, mention_count, created_at
			FROM entities
			WHERE owner = ? AND lower(name) LIKE '%' || lower(?) || '%'
			ORDER BY mention_count DESC
			LIMIT ?`, owner, name, limit)
		if err != nil {
			return nil, fmt.Errorf("find entities: %w", err)
		}
		for rows.Next() {
			e, err := scanEntity(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// FindByEntities returns memories linked to any of the entity IDs.
func (s *Store) FindByEntities(ctx context.Context, owner string, entityIDs []string, limit int) ([]memory.Memory, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT DISTINCT ` + prefixColumns("m.", memoryColumns) + `
		FROM memories m
		JOIN memory_entities me ON me.memory_id = m.id
		WHERE m.owner = ? AND me.entity_id IN (?` + strings.Repeat(",?", len(entityIDs)-1) + `)
		ORDER BY m.created_at DESC
		LIMIT ?`

	args := make([]interface{}, 0, len(entityIDs)+2)
	args = append(args, owner)
	for _, id := range entityIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by entities: %w", err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TouchAccess increments access counts for the given IDs.
func (s *Store) TouchAccess(ctx context.Context, owner string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE memories
		SET access_count = access_count + 1, updated_at = ?
		WHERE owner = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), owner)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch access: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (memory.Memory, error) {
	var m memory.Memory
	var kind, keywords, createdAt, updatedAt string
	var category, attribute, value, topic, fact sql.NullString
	var conversationID, eventType, summary sql.NullString
	var procedureName, trigger, steps sql.NullString

	err := row.Scan(&m.ID, &m.Owner, &kind, &m.Content, &keywords,
		&m.Reliability, &m.AccessCount, &createdAt, &updatedAt,
		&category, &attribute, &value, &topic, &fact,
		&conversationID, &eventType, &summary,
		&procedureName, &trigger, &steps)
	if err != nil {
		return m, fmt.Errorf("scan memory: %w", err)
	}

	m.Kind = memory.Kind(kind)
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &m.Keywords); err != nil {
			return m, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	m.Category = category.String
	m.Attribute = attribute.String
	m.Value = value.String
	m.Topic = topic.String
	m.Fact = fact.String
	m.ConversationID = conversationID.String
	m.EventType = eventType.String
	m.Summary = summary.String
	m.ProcedureName = procedureName.String
	m.Trigger = trigger.String
	if steps.String != "" {
		if err := json.Unmarshal([]byte(steps.String), &m.Steps); err != nil {
			return m, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	return m, nil
}

func scanEntity(row scanner) (memory.Entity, error) {
	var e memory.Entity
	var typ, description sql.NullString
	var createdAt string

	err := row.Scan(&e.ID, &e.Owner, &e.Name, &typ, &description, &e.MentionCount, &createdAt)
	if err != nil {
		return e, fmt.Errorf("scan entity: %w", err)
	}
	e.Type = typ.String
	e.Description = description.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

// prefixColumns qualifies each column in a comma-separated list with a
// table alias.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
