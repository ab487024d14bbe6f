package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const eventColumns = "event_id, timestamp, tool_name, detected_format, tool_format, " +
	"warning_count, warnings, canonical_json, source"

// Reader provides read access to the tool_canonicalized_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil && strings.HasSuffix(firstAddr(opts.Addr), ":9440") {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	ToolName       *string
	DetectedFormat *string
	Source         *string
	WithWarnings   *bool
	StartTime      *time.Time
	EndTime        *time.Time
	Page           int
	PageSize       int
}

// where builds the WHERE clause and its named arguments. An empty filter
// matches every row.
func (p ListEventsParams) where() (string, []any) {
	conditions := []string{"1 = 1"}
	var args []any

	if p.ToolName != nil {
		conditions = append(conditions, "tool_name = @tool_name")
		args = append(args, clickhouse.Named("tool_name", *p.ToolName))
	}
	if p.DetectedFormat != nil {
		conditions = append(conditions, "detected_format = @detected_format")
		args = append(args, clickhouse.Named("detected_format", *p.DetectedFormat))
	}
	if p.Source != nil {
		conditions = append(conditions, "source = @source")
		args = append(args, clickhouse.Named("source", *p.Source))
	}
	if p.WithWarnings != nil {
		if *p.WithWarnings {
			conditions = append(conditions, "warning_count > 0")
		} else {
			conditions = append(conditions, "warning_count = 0")
		}
	}
	if p.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *p.StartTime))
	}
	if p.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *p.EndTime))
	}
	return strings.Join(conditions, " AND "), args
}

// ListEvents returns paginated, filtered canonicalization events, newest
// first, and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]CanonicalizedEvent, int, error) {
	where, args := params.where()
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM tool_canonicalized_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM tool_canonicalized_events WHERE %s "+
			"ORDER BY timestamp DESC "+
			"LIMIT @limit OFFSET @offset",
		eventColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []CanonicalizedEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}
	r.logger.Debug("listed canonicalization events",
		zap.Int("returned", len(events)),
		zap.Uint64("total", total),
	)
	return events, int(total), rows.Err()
}

// GetEvent returns a single event by ID, or nil if not found.
func (r *Reader) GetEvent(ctx context.Context, eventID string) (*CanonicalizedEvent, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT "+eventColumns+" FROM tool_canonicalized_events WHERE event_id = @event_id LIMIT 1",
		clickhouse.Named("event_id", eventID),
	)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEvent(rows)
	if err != nil {
		return nil, fmt.Errorf("GetEvent: %w", err)
	}
	return &e, nil
}

// FormatCount is the number of canonicalizations that resolved to a format.
type FormatCount struct {
	Format string `json:"format"`
	Count  int    `json:"count"`
}

// EventStats aggregates canonicalization events over a time range.
type EventStats struct {
	Total        int           `json:"total"`
	WithWarnings int           `json:"with_warnings"`
	RawFallbacks int           `json:"raw_fallbacks"`
	ByFormat     []FormatCount `json:"by_format"`
	BySource     []SourceCount `json:"by_source"`
}

// SourceCount is the number of canonicalizations requested through a source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// GetStats returns aggregates over the given number of days.
func (r *Reader) GetStats(ctx context.Context, days int) (*EventStats, error) {
	rangeStart := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	args := []any{clickhouse.Named("range_start", rangeStart)}

	result := &EventStats{ByFormat: []FormatCount{}, BySource: []SourceCount{}}

	var total, withWarnings, rawFallbacks uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(warning_count > 0) as with_warnings, "+
			"countIf(tool_format = 'raw' AND detected_format != 'raw') as raw_fallbacks "+
			"FROM tool_canonicalized_events WHERE timestamp >= @range_start",
		args...,
	).Scan(&total, &withWarnings, &rawFallbacks)
	if err != nil {
		return nil, fmt.Errorf("GetStats summary: %w", err)
	}
	result.Total = int(total)
	result.WithWarnings = int(withWarnings)
	result.RawFallbacks = int(rawFallbacks)

	formatRows, err := r.conn.Query(ctx,
		"SELECT detected_format, count() as count "+
			"FROM tool_canonicalized_events WHERE timestamp >= @range_start "+
			"GROUP BY detected_format ORDER BY count DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetStats by_format: %w", err)
	}
	defer func() { _ = formatRows.Close() }()
	for formatRows.Next() {
		var f string
		var count uint64
		if err := formatRows.Scan(&f, &count); err != nil {
			return nil, fmt.Errorf("GetStats by_format scan: %w", err)
		}
		result.ByFormat = append(result.ByFormat, FormatCount{Format: f, Count: int(count)})
	}

	sourceRows, err := r.conn.Query(ctx,
		"SELECT source, count() as count "+
			"FROM tool_canonicalized_events WHERE timestamp >= @range_start "+
			"GROUP BY source ORDER BY count DESC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetStats by_source: %w", err)
	}
	defer func() { _ = sourceRows.Close() }()
	for sourceRows.Next() {
		var s string
		var count uint64
		if err := sourceRows.Scan(&s, &count); err != nil {
			return nil, fmt.Errorf("GetStats by_source scan: %w", err)
		}
		result.BySource = append(result.BySource, SourceCount{Source: s, Count: int(count)})
	}

	return result, nil
}

func scanEvent(rows driver.Rows) (CanonicalizedEvent, error) {
	var e CanonicalizedEvent
	err := rows.Scan(
		&e.EventID, &e.Timestamp, &e.ToolName, &e.DetectedFormat, &e.ToolFormat,
		&e.WarningCount, &e.Warnings, &e.CanonicalJSON, &e.Source,
	)
	return e, err
}
