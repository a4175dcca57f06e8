// Package journal writes accepted snapshots to Postgres as a history
// trail.
//
// The journal is off the hot path: the manager records entries into a
// buffered channel and a pair of goroutines batch them into the database.
// A slow or absent database never stalls a broadcast.
package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/statesync/internal/model"
)

// Config holds journal settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns the standard batching configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// Entry is one accepted snapshot bound for the history table.
type Entry struct {
	Channel    string
	Snapshot   model.StateSnapshot
	ReceivedAt time.Time
}

// Metrics tracks journal activity.
type Metrics struct {
	Inserts  int64
	Errors   int64
	Flushes  int64
	Dropped  int64
	Enqueued int64
}

// row is the persisted form of an entry.
type row struct {
	Channel    string
	ReceivedAt int64
	NodeCount  int
	EdgeCount  int
	Snapshot   []byte
}

// Journal batches snapshot history into the snapshot_journal table.
type Journal struct {
	cfg    Config
	logger *slog.Logger

	input chan Entry

	db *pgxpool.Pool

	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a journal writing to db.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan Entry, cfg.BatchSize*4),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Start begins consuming entries and writing to the database.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the journal.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping journal")

	if j.cancel != nil {
		j.cancel()
	}

	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("journal stopped")
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	// Final flush. j.ctx is cancelled by now, so the drain runs on its own
	// context bounded by the stop deadline.
	j.flush(context.WithoutCancel(ctx))

	return nil
}

// Record enqueues an entry. Never blocks: when the buffer is full the
// entry is dropped and counted, because history must not slow sync down.
func (j *Journal) Record(e Entry) {
	select {
	case j.input <- e:
		j.batchMu.Lock()
		j.metrics.Enqueued++
		j.batchMu.Unlock()
	default:
		j.batchMu.Lock()
		j.metrics.Dropped++
		j.batchMu.Unlock()
	}
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

// consumeLoop reads entries and accumulates batches.
func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case e := <-j.input:
			j.handleEntry(e)
		}
	}
}

// flushLoop periodically flushes the batch.
func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		}
	}
}

// handleEntry transforms and adds an entry to the batch.
func (j *Journal) handleEntry(e Entry) {
	r, err := j.transform(e)
	if err != nil {
		j.logger.Error("journal entry encode failed", "error", err, "channel", e.Channel)
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.batch = append(j.batch, r)
	shouldFlush := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if shouldFlush {
		j.flush(j.ctx)
	}
}

// transform converts an Entry to a row.
func (j *Journal) transform(e Entry) (row, error) {
	data, err := json.Marshal(e.Snapshot)
	if err != nil {
		return row{}, err
	}

	return row{
		Channel:    e.Channel,
		ReceivedAt: e.ReceivedAt.UnixMicro(),
		NodeCount:  len(e.Snapshot.Nodes),
		EdgeCount:  len(e.Snapshot.Edges),
		Snapshot:   data,
	}, nil
}

// flush writes the current batch to the database.
func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := j.batch
	j.batch = make([]row, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	if j.db == nil {
		return
	}

	start := time.Now()

	conflicts, err := j.batchInsert(ctx, batch)
	if err != nil {
		j.logger.Error("journal batch insert failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(len(batch) - conflicts)
	j.metrics.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed journal",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (j *Journal) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO snapshot_journal (channel, received_at, node_count, edge_count, snapshot)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (channel, received_at) DO NOTHING
		`, r.Channel, r.ReceivedAt, r.NodeCount, r.EdgeCount, r.Snapshot)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
