package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"MarketSync/internal/domain/models"
	drepo "MarketSync/internal/domain/repository"
	pkgkafka "MarketSync/pkg/kafka"
)

// QuoteRecord is the wire and row shape of one merged record in a snapshot.
type QuoteRecord struct {
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name,omitempty"`
	LatestPrice     *float64 `json:"latest_price"`
	PrevClose       *float64 `json:"prev_close"`
	ChangeDirection string   `json:"change_direction"`
	ChangePct       *float64 `json:"change_pct"`
	Volume          *float64 `json:"volume"`
	PredictedClose  *float64 `json:"predicted_close,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Signal          string   `json:"signal,omitempty"`
	DataTimestamp   float64  `json:"data_timestamp,omitempty"`
	CapturedAt      int64    `json:"captured_at"` // unix ms
}

func toRecord(r models.MergedRecord, snap *models.Snapshot) QuoteRecord {
	out := QuoteRecord{
		Symbol:          r.Symbol,
		Name:            r.Name,
		LatestPrice:     r.LatestPrice,
		PrevClose:       r.PrevClose,
		ChangeDirection: string(r.ChangeDirection),
		ChangePct:       r.ChangePct,
		Volume:          r.Volume,
		DataTimestamp:   snap.DataTimestamp,
		CapturedAt:      snap.LastUpdated.UnixMilli(),
	}
	if p := r.Prediction; p != nil {
		out.PredictedClose = models.Float(p.PredictedClose)
		out.Confidence = models.Float(p.Confidence)
		out.Signal = string(p.Signal)
	}
	return out
}

// KafkaSnapshotSink writes one message per record, keyed by symbol.
type KafkaSnapshotSink struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSnapshotSink(producer *pkgkafka.Producer, topic string) drepo.SnapshotSink {
	return &KafkaSnapshotSink{producer: producer, topic: topic}
}

func (s *KafkaSnapshotSink) Name() string { return "kafka" }

func (s *KafkaSnapshotSink) Publish(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || len(snap.Records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(snap.Records))
	for i, r := range snap.Records {
		msgs[i] = pkgkafka.Message{Key: []byte(r.Symbol), Value: toRecord(r, snap)}
	}
	return s.producer.PublishBatch(ctx, s.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector and closed by the app.
func (s *KafkaSnapshotSink) Close() error { return nil }

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ClickHouseSnapshotSink batch-inserts snapshots into a history table.
type ClickHouseSnapshotSink struct {
	db    *sql.DB
	table string
}

func NewClickHouseSnapshotSink(db *sql.DB, table string) (drepo.SnapshotSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ClickHouseSnapshotSink{db: db, table: table}, nil
}

// SnapshotSchema is the DDL for the quote_snapshots table.
func SnapshotSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	captured_at      DateTime64(3),
	symbol           LowCardinality(String),
	name             String,
	latest_price     Nullable(Float64),
	prev_close       Nullable(Float64),
	change_direction LowCardinality(String),
	change_pct       Nullable(Float64),
	volume           Nullable(Float64),
	predicted_close  Nullable(Float64),
	confidence       Nullable(Float64),
	signal           LowCardinality(String),
	data_timestamp   Float64
) ENGINE = MergeTree ORDER BY (symbol, captured_at)`, table)}
}

const insertColumns = "captured_at, symbol, name, latest_price, prev_close, change_direction, change_pct, volume, predicted_close, confidence, signal, data_timestamp"

func (s *ClickHouseSnapshotSink) Name() string { return "clickhouse" }

func (s *ClickHouseSnapshotSink) Publish(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || len(snap.Records) == 0 {
		return nil
	}

	const chunkSize = 1000
	for start := 0; start < len(snap.Records); start += chunkSize {
		end := start + chunkSize
		if end > len(snap.Records) {
			end = len(snap.Records)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, r := range snap.Records[start:end] {
			rec := toRecord(r, snap)
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				snap.LastUpdated.UTC(),
				rec.Symbol,
				rec.Name,
				nullable(rec.LatestPrice),
				nullable(rec.PrevClose),
				rec.ChangeDirection,
				nullable(rec.ChangePct),
				nullable(rec.Volume),
				nullable(rec.PredictedClose),
				nullable(rec.Confidence),
				rec.Signal,
				rec.DataTimestamp,
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, insertColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	return nil
}

// Close leaves the pool to its owner.
func (s *ClickHouseSnapshotSink) Close() error { return nil }

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
