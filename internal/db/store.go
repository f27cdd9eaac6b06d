package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs typed queries against a DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given DBTX.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Store wraps the database connection and its query set.
type Store struct {
	*Queries
	db *sql.DB
}

// NewStore creates a Store from an open connection.
func NewStore(db *sql.DB) *Store {
	return &Store{Queries: New(db), db: db}
}

// DB returns the underlying connection for sharing with other components.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction; rolls back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(New(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// Project is a conversation workspace owned by a single user.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MemorySession holds the identifiers used to address the long-term memory
// service for a project. One row per project, refreshed on every turn.
type MemorySession struct {
	ProjectID   string    `json:"project_id"`
	UserScopeID string    `json:"user_scope_id"`
	SessionID   string    `json:"session_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Turn is one user/assistant exchange.
type Turn struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	UserText        string  `json:"user_text"`
	AssistantText   string  `json:"assistant_text"`
	InjectedContext string  `json:"injected_context"`
	// Compression metadata is nil when the pinned context was sent uncompressed.
	CompressionAggressiveness *float64 `json:"compression_aggressiveness,omitempty"`
	CompressionMaxTokens      *int64   `json:"compression_max_tokens,omitempty"`
	CompressionMinTokens      *int64   `json:"compression_min_tokens,omitempty"`
	CompressionInputTokens    *int64   `json:"compression_input_tokens,omitempty"`
	CompressionOutputTokens   *int64   `json:"compression_output_tokens,omitempty"`
	CompressionRatio          *float64 `json:"compression_ratio,omitempty"`
	CompressionElapsedMs      *int64   `json:"compression_elapsed_ms,omitempty"`
	LatencyMs                 int64    `json:"latency_ms"`
	RequestID                 string   `json:"request_id,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
}

// Node is a turn's projection into the memory graph.
type Node struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	TurnID    string     `json:"turn_id"`
	Title     *string    `json:"title"`
	Summary   string     `json:"summary"`
	Pinned    bool       `json:"pinned"`
	Edited    bool       `json:"edited"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Edge is a directed, typed relation between two nodes in the same project.
type Edge struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	SrcNodeID string    `json:"src_node_id"`
	DstNodeID string    `json:"dst_node_id"`
	Kind      string    `json:"kind"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// Edge kinds. "follows" is the temporal chain; "similar" is reserved for
// future semantic links.
const (
	EdgeKindFollows = "follows"
	EdgeKindSimilar = "similar"
)

type CreateProjectParams struct {
	ID      string
	OwnerID string
	Name    string
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	now := time.Now()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		arg.ID, arg.OwnerID, arg.Name, now.Unix())
	if err != nil {
		return Project{}, err
	}
	return Project{ID: arg.ID, OwnerID: arg.OwnerID, Name: arg.Name, CreatedAt: now}, nil
}

func (q *Queries) GetProject(ctx context.Context, id string) (Project, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (q *Queries) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at FROM projects WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var created int64
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProject(row *sql.Row) (Project, error) {
	var p Project
	var created int64
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &created); err != nil {
		return Project{}, err
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

type UpsertMemorySessionParams struct {
	ProjectID   string
	UserScopeID string
	SessionID   string
}

// UpsertMemorySession creates or refreshes the memory session row for a
// project. Idempotent and safe under concurrent writers.
func (q *Queries) UpsertMemorySession(ctx context.Context, arg UpsertMemorySessionParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO memory_sessions (project_id, user_scope_id, session_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			user_scope_id = excluded.user_scope_id,
			session_id = excluded.session_id,
			updated_at = excluded.updated_at`,
		arg.ProjectID, arg.UserScopeID, arg.SessionID, time.Now().Unix())
	return err
}

func (q *Queries) GetMemorySession(ctx context.Context, projectID string) (MemorySession, error) {
	var m MemorySession
	var updated int64
	err := q.db.QueryRowContext(ctx,
		`SELECT project_id, user_scope_id, session_id, updated_at FROM memory_sessions WHERE project_id = ?`,
		projectID).Scan(&m.ProjectID, &m.UserScopeID, &m.SessionID, &updated)
	if err != nil {
		return MemorySession{}, err
	}
	m.UpdatedAt = time.Unix(updated, 0)
	return m, nil
}

func (q *Queries) CountMemorySessions(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_sessions WHERE project_id = ?`, projectID).Scan(&n)
	return n, err
}

type CreateTurnParams struct {
	ID              string
	ProjectID       string
	Provider        string
	Model           string
	UserText        string
	AssistantText   string
	InjectedContext string
	CompressionAggressiveness *float64
	CompressionMaxTokens      *int64
	CompressionMinTokens      *int64
	CompressionInputTokens    *int64
	CompressionOutputTokens   *int64
	CompressionRatio          *float64
	CompressionElapsedMs      *int64
	LatencyMs                 int64
	RequestID                 string
}

func (q *Queries) CreateTurn(ctx context.Context, arg CreateTurnParams) (Turn, error) {
	now := time.Now()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO turns (
			id, project_id, provider, model, user_text, assistant_text, injected_context,
			compression_aggressiveness, compression_max_tokens, compression_min_tokens,
			compression_input_tokens, compression_output_tokens, compression_ratio,
			compression_elapsed_ms, latency_ms, request_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.ProjectID, arg.Provider, arg.Model, arg.UserText, arg.AssistantText,
		arg.InjectedContext, arg.CompressionAggressiveness, arg.CompressionMaxTokens,
		arg.CompressionMinTokens, arg.CompressionInputTokens, arg.CompressionOutputTokens,
		arg.CompressionRatio, arg.CompressionElapsedMs, arg.LatencyMs,
		nullString(arg.RequestID), now.Unix())
	if err != nil {
		return Turn{}, err
	}
	return Turn{
		ID: arg.ID, ProjectID: arg.ProjectID, Provider: arg.Provider, Model: arg.Model,
		UserText: arg.UserText, AssistantText: arg.AssistantText,
		InjectedContext: arg.InjectedContext,
		CompressionAggressiveness: arg.CompressionAggressiveness,
		CompressionMaxTokens:      arg.CompressionMaxTokens,
		CompressionMinTokens:      arg.CompressionMinTokens,
		CompressionInputTokens:    arg.CompressionInputTokens,
		CompressionOutputTokens:   arg.CompressionOutputTokens,
		CompressionRatio:          arg.CompressionRatio,
		CompressionElapsedMs:      arg.CompressionElapsedMs,
		LatencyMs:                 arg.LatencyMs,
		RequestID:                 arg.RequestID,
		CreatedAt:                 now,
	}, nil
}

const turnColumns = `id, project_id, provider, model, user_text, assistant_text, injected_context,
	compression_aggressiveness, compression_max_tokens, compression_min_tokens,
	compression_input_tokens, compression_output_tokens, compression_ratio,
	compression_elapsed_ms, latency_ms, request_id, created_at`

func (q *Queries) GetTurn(ctx context.Context, id string) (Turn, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE id = ?`, id)
	if err != nil {
		return Turn{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Turn{}, err
		}
		return Turn{}, sql.ErrNoRows
	}
	return scanTurn(rows)
}

type ListTurnsParams struct {
	ProjectID string
	Limit     int64
	Offset    int64
}

func (q *Queries) ListTurns(ctx context.Context, arg ListTurnsParams) ([]Turn, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE project_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		arg.ProjectID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) CountTurns(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE project_id = ?`, projectID).Scan(&n)
	return n, err
}

func scanTurn(rows *sql.Rows) (Turn, error) {
	var t Turn
	var requestID sql.NullString
	var created int64
	err := rows.Scan(&t.ID, &t.ProjectID, &t.Provider, &t.Model, &t.UserText,
		&t.AssistantText, &t.InjectedContext,
		&t.CompressionAggressiveness, &t.CompressionMaxTokens, &t.CompressionMinTokens,
		&t.CompressionInputTokens, &t.CompressionOutputTokens, &t.CompressionRatio,
		&t.CompressionElapsedMs, &t.LatencyMs, &requestID, &created)
	if err != nil {
		return Turn{}, err
	}
	t.RequestID = requestID.String
	t.CreatedAt = time.Unix(created, 0)
	return t, nil
}

type CreateNodeParams struct {
	ID        string
	ProjectID string
	TurnID    string
	Title     *string
	Summary   string
}

func (q *Queries) CreateNode(ctx context.Context, arg CreateNodeParams) (Node, error) {
	now := time.Now()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO graph_nodes (id, project_id, turn_id, title, summary, pinned, edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		arg.ID, arg.ProjectID, arg.TurnID, arg.Title, arg.Summary, now.Unix(), now.Unix())
	if err != nil {
		return Node{}, err
	}
	return Node{
		ID: arg.ID, ProjectID: arg.ProjectID, TurnID: arg.TurnID,
		Title: arg.Title, Summary: arg.Summary,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

// LatestActiveNode returns the most recently created non-deleted node for a
// project, or sql.ErrNoRows when the project has none.
func (q *Queries) LatestActiveNode(ctx context.Context, projectID string) (Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE project_id = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, projectID)
	if err != nil {
		return Node{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Node{}, err
		}
		return Node{}, sql.ErrNoRows
	}
	return scanNode(rows)
}

const nodeColumns = `id, project_id, turn_id, title, summary, pinned, edited, deleted_at, created_at, updated_at`

func (q *Queries) GetNode(ctx context.Context, id string) (Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes WHERE id = ?`, id)
	if err != nil {
		return Node{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Node{}, err
		}
		return Node{}, sql.ErrNoRows
	}
	return scanNode(rows)
}

type ListNodesParams struct {
	ProjectID      string
	IncludeDeleted bool
}

func (q *Queries) ListNodes(ctx context.Context, arg ListNodesParams) ([]Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM graph_nodes WHERE project_id = ?`
	if !arg.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.db.QueryContext(ctx, query, arg.ProjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// PinnedSummaries returns pinned, non-deleted nodes for a project, most
// recently updated first. Their summaries are surfaced as pinned context.
func (q *Queries) PinnedSummaries(ctx context.Context, projectID string) ([]Node, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM graph_nodes
		 WHERE project_id = ? AND pinned = 1 AND deleted_at IS NULL
		 ORDER BY updated_at DESC, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type UpdateNodeParams struct {
	ID      string
	Title   *string
	Summary *string
	Pinned  *bool
}

// UpdateNode applies user edits to a node. Title/summary changes mark the
// node as edited.
func (q *Queries) UpdateNode(ctx context.Context, arg UpdateNodeParams) error {
	node, err := q.GetNode(ctx, arg.ID)
	if err != nil {
		return err
	}

	title := node.Title
	summary := node.Summary
	pinned := node.Pinned
	edited := node.Edited
	if arg.Title != nil {
		title = arg.Title
		edited = true
	}
	if arg.Summary != nil {
		summary = *arg.Summary
		edited = true
	}
	if arg.Pinned != nil {
		pinned = *arg.Pinned
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE graph_nodes SET title = ?, summary = ?, pinned = ?, edited = ?, updated_at = ?
		WHERE id = ?`,
		title, summary, boolToInt(pinned), boolToInt(edited), time.Now().Unix(), arg.ID)
	return err
}

func (q *Queries) SoftDeleteNode(ctx context.Context, id string) error {
	now := time.Now().Unix()
	res, err := q.db.ExecContext(ctx,
		`UPDATE graph_nodes SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (q *Queries) RestoreNode(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE graph_nodes SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`,
		time.Now().Unix(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanNode(rows *sql.Rows) (Node, error) {
	var n Node
	var pinned, edited int64
	var deletedAt sql.NullInt64
	var created, updated int64
	err := rows.Scan(&n.ID, &n.ProjectID, &n.TurnID, &n.Title, &n.Summary,
		&pinned, &edited, &deletedAt, &created, &updated)
	if err != nil {
		return Node{}, err
	}
	n.Pinned = pinned != 0
	n.Edited = edited != 0
	if deletedAt.Valid {
		t := time.Unix(deletedAt.Int64, 0)
		n.DeletedAt = &t
	}
	n.CreatedAt = time.Unix(created, 0)
	n.UpdatedAt = time.Unix(updated, 0)
	return n, nil
}

type CreateEdgeParams struct {
	ID        string
	ProjectID string
	SrcNodeID string
	DstNodeID string
	Kind      string
	Weight    float64
}

func (q *Queries) CreateEdge(ctx context.Context, arg CreateEdgeParams) (Edge, error) {
	now := time.Now()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO graph_edges (id, project_id, src_node_id, dst_node_id, kind, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.ProjectID, arg.SrcNodeID, arg.DstNodeID, arg.Kind, arg.Weight, now.Unix())
	if err != nil {
		return Edge{}, err
	}
	return Edge{
		ID: arg.ID, ProjectID: arg.ProjectID, SrcNodeID: arg.SrcNodeID,
		DstNodeID: arg.DstNodeID, Kind: arg.Kind, Weight: arg.Weight, CreatedAt: now,
	}, nil
}

func (q *Queries) ListEdges(ctx context.Context, projectID string) ([]Edge, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, project_id, src_node_id, dst_node_id, kind, weight, created_at
		FROM graph_edges WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		var created int64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SrcNodeID, &e.DstNodeID, &e.Kind, &e.Weight, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
