package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/deltasink/internal/ir"
)

// ListFiles returns the closed files of a task, or of all tasks when taskID
// is empty. Results are ordered deterministically: ORDER BY seq ASC, id ASC
// COLLATE BINARY.
//
// Open and aborted files are not listed. Returns an empty slice (not nil)
// if no files match.
func (s *Store) ListFiles(ctx context.Context, taskID string) ([]ir.DataFile, error) {
	query := `
		SELECT id, task_id, partition_path, partition_values, content, equality_ids, record_count, digest
		FROM files
		WHERE state = ?`
	args := []any{stateClosed}
	if taskID != "" {
		query += ` AND task_id = ?`
		args = append(args, taskID)
	}
	query += `
		ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	files := []ir.DataFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// GetFile returns a file by id regardless of state, along with the state.
// Returns sql.ErrNoRows (wrapped) if no such file exists.
func (s *Store) GetFile(ctx context.Context, id string) (ir.DataFile, string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, partition_path, partition_values, content, equality_ids, record_count, digest, state
		FROM files
		WHERE id = ?
	`, id)

	var (
		f           ir.DataFile
		values      string
		content     string
		equalityIDs string
		state       string
	)
	err := row.Scan(&f.ID, &f.TaskID, &f.PartitionPath, &values, &content, &equalityIDs, &f.RecordCount, &f.Digest, &state)
	if err != nil {
		return ir.DataFile{}, "", fmt.Errorf("get file %s: %w", id, err)
	}
	if err := finishFile(&f, values, content, equalityIDs); err != nil {
		return ir.DataFile{}, "", err
	}
	return f, state, nil
}

// ReadRecords returns the records of a file in append order.
// Returns an empty slice (not nil) for a file without records.
func (s *Store) ReadRecords(ctx context.Context, fileID string) ([][]ir.Value, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM records
		WHERE file_id = ?
		ORDER BY ordinal ASC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := [][]ir.Value{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		values, err := unmarshalRecord(payload)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", fileID, err)
		}
		records = append(records, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// CountOpenFiles returns how many files were created but never closed or
// aborted, e.g. by a task that crashed.
func (s *Store) CountOpenFiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE state = ?`, stateOpen).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open files: %w", err)
	}
	return n, nil
}

func scanFile(rows *sql.Rows) (ir.DataFile, error) {
	var (
		f           ir.DataFile
		values      string
		content     string
		equalityIDs string
	)
	if err := rows.Scan(&f.ID, &f.TaskID, &f.PartitionPath, &values, &content, &equalityIDs, &f.RecordCount, &f.Digest); err != nil {
		return ir.DataFile{}, fmt.Errorf("scan file: %w", err)
	}
	if err := finishFile(&f, values, content, equalityIDs); err != nil {
		return ir.DataFile{}, err
	}
	return f, nil
}

func finishFile(f *ir.DataFile, values, content, equalityIDs string) error {
	ids, err := unmarshalFieldIDs(equalityIDs)
	if err != nil {
		return fmt.Errorf("file %s: %w", f.ID, err)
	}
	f.Content = ir.FileContent(content)
	f.EqualityFieldIDs = ids
	f.Partition = ir.PartitionKey{Path: f.PartitionPath, Values: values}
	return nil
}
