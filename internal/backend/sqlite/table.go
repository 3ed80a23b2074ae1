package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/medhistory/internal/backend"
)

// columns whitelists the identifiers each table accepts. Table and column
// names end up inside SQL text, so nothing outside this map is ever
// interpolated; values always travel as ? parameters.
var columns = map[string][]string{
	backend.TableProfiles: {
		"id", "email", "name", "age", "gender", "blood_group",
		"emergency_contact", "allergies", "photo_url",
	},
	backend.TableMedicalRecords: {
		"id", "user_id", "priority", "date", "diagnosis", "treatment",
		"doctor", "notes", "prescription_url", "body_part",
	},
	backend.TableVitals: {
		"id", "user_id", "date", "bp", "sugar", "temperature", "report_url",
	},
}

func tableColumns(table string) ([]string, error) {
	cols, ok := columns[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", backend.ErrUnknownTable, table)
	}
	return cols, nil
}

func checkColumn(table string, cols []string, column string) error {
	if !slices.Contains(cols, column) {
		return fmt.Errorf("%w: %s.%s", backend.ErrUnknownColumn, table, column)
	}
	return nil
}

// whereClause renders equality filters as "WHERE a = ? AND b = ?".
func whereClause(table string, cols []string, filters []backend.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if err := checkColumn(table, cols, f.Column); err != nil {
			return "", nil, err
		}
		parts = append(parts, f.Column+" = ?")
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// Select runs q and decodes the rows into dest.
//
// Rows are scanned into column → value maps and handed to encoding/json,
// which is exactly how the hosted backend delivers them; the domain structs
// therefore decode identically from both backends.
func (db *DB) Select(ctx context.Context, q backend.Query, dest any) error {
	cols, err := tableColumns(q.Table)
	if err != nil {
		return err
	}

	where, args, err := whereClause(q.Table, cols, q.Filters)
	if err != nil {
		return err
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + q.Table + where

	if q.Order != nil {
		if err := checkColumn(q.Table, cols, q.Order.Column); err != nil {
			return err
		}
		dir := "DESC"
		if q.Order.Ascending {
			dir = "ASC"
		}
		// rowid breaks ties in insertion order, same direction as the sort
		query += " ORDER BY " + q.Order.Column + " " + dir + ", rowid " + dir
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: selecting from %s: %w", q.Table, err)
	}
	defer rows.Close()

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("sqlite: scanning %s row: %w", q.Table, err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating %s rows: %w", q.Table, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s rows: %w", q.Table, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("sqlite: decoding %s rows: %w", q.Table, err)
	}
	return nil
}

// toRows normalises a struct, map, or slice of either into column maps.
func toRows(v any) ([]map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) > 0 && raw[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return []map[string]any{row}, nil
}

// Insert stores rows in one transaction. A missing or empty "id" gets a
// fresh xid, like the hosted tables' generated primary keys.
func (db *DB) Insert(ctx context.Context, table string, rows any) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}

	records, err := toRows(rows)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s rows: %w", table, err)
	}

	// TRANSACTION PATTERN:
	// Begin, defer Rollback, do the work, Commit. After a successful Commit
	// the deferred Rollback is a no-op (it returns sql.ErrTxDone, ignored),
	// and any early return rolls back every row inserted so far. A batch
	// is all or nothing.
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning insert into %s: %w", table, err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if id, _ := rec["id"].(string); id == "" {
			rec["id"] = xid.New().String()
		}

		keys := make([]string, 0, len(rec))
		for k := range rec {
			if err := checkColumn(table, cols, k); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		// map iteration order is random; sorting keeps the SQL stable
		sort.Strings(keys)

		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = rec[k]
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
		stmt := "INSERT INTO " + table + " (" + strings.Join(keys, ", ") + ") VALUES (" + placeholders + ")"
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("sqlite: inserting into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing insert into %s: %w", table, err)
	}
	return nil
}

// Update sets values on the rows matching filters. Like the hosted REST
// API, matching zero rows is not an error. Unfiltered updates are refused.
func (db *DB) Update(ctx context.Context, table string, values map[string]any, filters ...backend.Filter) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("sqlite: refusing to update every row of %s", table)
	}
	if len(values) == 0 {
		return nil
	}

	normalised, err := toRows(values)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s update: %w", table, err)
	}
	set := normalised[0]

	keys := make([]string, 0, len(set))
	for k := range set {
		if err := checkColumn(table, cols, k); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assignments := make([]string, len(keys))
	args := make([]any, 0, len(keys)+len(filters))
	for i, k := range keys {
		assignments[i] = k + " = ?"
		args = append(args, set[k])
	}

	where, whereArgs, err := whereClause(table, cols, filters)
	if err != nil {
		return err
	}
	args = append(args, whereArgs...)

	stmt := "UPDATE " + table + " SET " + strings.Join(assignments, ", ") + where
	if _, err := db.conn.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite: updating %s: %w", table, err)
	}
	return nil
}

// Delete removes the rows matching filters. Unfiltered deletes are refused.
func (db *DB) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("sqlite: refusing to delete every row of %s", table)
	}

	where, args, err := whereClause(table, cols, filters)
	if err != nil {
		return err
	}

	if _, err := db.conn.ExecContext(ctx, "DELETE FROM "+table+where, args...); err != nil {
		return fmt.Errorf("sqlite: deleting from %s: %w", table, err)
	}
	return nil
}

// count is used by tests to inspect table sizes.
func (db *DB) count(ctx context.Context, table string) (int, error) {
	if _, err := tableColumns(table); err != nil {
		return 0, err
	}
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
