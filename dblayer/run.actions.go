package dblayer

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const runColumns = `id, command, status, pod_name, namespace, phase, output, warnings_json, error, created_at, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var warningsJSON string
	err := row.Scan(
		&r.ID,
		&r.Command,
		&r.Status,
		&r.PodName,
		&r.Namespace,
		&r.Phase,
		&r.Output,
		&warningsJSON,
		&r.Error,
		&r.CreatedAt,
		&r.StartedAt,
		&r.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if warningsJSON != "" {
		if err := json.Unmarshal([]byte(warningsJSON), &r.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings of run %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// CreateRun queues a command for the run worker
func CreateRun(id, command string) (*Run, error) {
	return scanRun(DB.QueryRow(
		`INSERT INTO runs (id, command, status) VALUES ($1, $2, 'pending')
		 RETURNING `+runColumns,
		id, command,
	))
}

// GetRun returns a single run
func GetRun(id string) (*Run, error) {
	return scanRun(DB.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
}

// ListRuns returns runs newest first
func ListRuns(limit, offset int) ([]*Run, error) {
	rows, err := DB.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// FetchPendingRun claims the oldest pending run (FIFO) and marks it running.
// Returns ErrNotFound when the queue is empty.
func FetchPendingRun() (*Run, error) {
	return scanRun(DB.QueryRow(
		`UPDATE runs SET status = 'running', started_at = NOW()
		 WHERE id = (
		   SELECT id FROM runs WHERE status = 'pending'
		   ORDER BY created_at ASC LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING ` + runColumns,
	))
}

// MarkRunFinished records the outcome of a run that reached the cluster
func MarkRunFinished(id string, o RunOutcome) error {
	warnings := o.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return err
	}

	res, err := DB.Exec(
		`UPDATE runs
		 SET status = $1, pod_name = $2, namespace = $3, phase = $4, output = $5,
		     warnings_json = $6, finished_at = NOW()
		 WHERE id = $7`,
		o.Status, o.PodName, o.Namespace, o.Phase, o.Output, string(warningsJSON), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkRunFailed records a run that never produced a pod
func MarkRunFailed(id, msg string) error {
	res, err := DB.Exec(
		`UPDATE runs SET status = 'failed', error = $1, finished_at = NOW() WHERE id = $2`,
		msg, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRuns returns how many runs are in the given status
func CountRuns(status string) (int, error) {
	var n int
	err := DB.QueryRow(`SELECT COUNT(*) FROM runs WHERE status = $1`, status).Scan(&n)
	return n, err
}
