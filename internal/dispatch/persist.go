package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultLog is one persisted dispatch outcome, the dispatch-scoped analogue
// of the invocation-log row a nova-style host keeps for function calls.
type ResultLog struct {
	ID          string
	CommandType string
	AgentID     string
	Success     bool
	ErrorMsg    string
	InputSize   int
	OutputSize  int
	Input       json.RawMessage
	Output      json.RawMessage
	CreatedAt   time.Time
}

// ResultStore is a minimal pgx-backed sink for ResultLog rows. It owns a
// single table scoped to the dispatch fabric rather than reaching into a
// host's broader metadata schema, so a handler can persist outcomes
// without the fabric depending on anything outside this package.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore opens a pool against dsn and ensures the backing table
// exists. Grounded on the teacher's pgxpool.New-then-ensureSchema
// constructor shape used throughout its storage layer.
func NewResultStore(ctx context.Context, dsn string) (*ResultStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &ResultStore{pool: pool}
	if err := s.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *ResultStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS dispatch_results (
			id TEXT PRIMARY KEY,
			command_type TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			input_size INTEGER NOT NULL DEFAULT 0,
			output_size INTEGER NOT NULL DEFAULT 0,
			input JSONB,
			output JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_dispatch_results_agent ON dispatch_results(agent_id, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *ResultStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveResult inserts log, assigning an ID and timestamp if unset.
func (s *ResultStore) SaveResult(ctx context.Context, log *ResultLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_results (id, command_type, agent_id, success, error_message, input_size, output_size, input, output, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, log.ID, log.CommandType, log.AgentID, log.Success, log.ErrorMsg, log.InputSize, log.OutputSize, log.Input, log.Output, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("save dispatch result: %w", err)
	}
	return nil
}

// ListResults returns the most recent rows, newest first.
func (s *ResultStore) ListResults(ctx context.Context, limit int) ([]*ResultLog, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, command_type, agent_id, success, error_message, input_size, output_size, input, output, created_at
		FROM dispatch_results
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatch results: %w", err)
	}
	defer rows.Close()

	var logs []*ResultLog
	for rows.Next() {
		var log ResultLog
		var errorMsg *string
		if err := rows.Scan(&log.ID, &log.CommandType, &log.AgentID, &log.Success, &errorMsg, &log.InputSize, &log.OutputSize, &log.Input, &log.Output, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch result: %w", err)
		}
		if errorMsg != nil {
			log.ErrorMsg = *errorMsg
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list dispatch results rows: %w", err)
	}
	return logs, nil
}

// NewPersistResultHandler builds a HandlerFunc that echoes payload["msg"]
// back to the caller and additionally writes the outcome to store. It
// demonstrates spec.md §4.6's allowance for "short host-side I/O" inside a
// handler: the write happens synchronously, inline with dispatch, bounded
// by whatever budget RunOnce was called with.
func NewPersistResultHandler(store *ResultStore) HandlerFunc {
	return func(payload map[string]Value) HandlerResult {
		input, err := json.Marshal(payload)
		if err != nil {
			return Error("marshal payload: " + err.Error())
		}

		reply := map[string]Value{"echo": payload["msg"]}
		output, err := json.Marshal(reply)
		if err != nil {
			return Error("marshal reply: " + err.Error())
		}

		agentID, _ := payload["agent_id"].(string)
		if agentID == "" {
			agentID = "unknown"
		}

		log := &ResultLog{
			CommandType: "persist-result",
			AgentID:     agentID,
			Success:     true,
			InputSize:   len(input),
			OutputSize:  len(output),
			Input:       input,
			Output:      output,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.SaveResult(ctx, log); err != nil {
			return Error("persist result: " + err.Error())
		}

		return Success(reply)
	}
}
