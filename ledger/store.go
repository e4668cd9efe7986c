package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/logging"
)

// Store owns the accumulator database.
type Store struct {
	db     *leveldb.DB
	mu     sync.Mutex
	logger *zap.Logger
	opts   *opt.Options
}

type storeOptions struct {
	logger *zap.Logger
	opts   *opt.Options
}

type OptionFunc func(*storeOptions)

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithLevelDBOptions overrides the goleveldb options the database is opened with.
func WithLevelDBOptions(opts *opt.Options) OptionFunc {
	return func(o *storeOptions) {
		o.opts = opts
	}
}

// Open opens (or creates) the ledger database in dir.
func Open(ctx context.Context, dir string, opts ...OptionFunc) (*Store, error) {
	options := &storeOptions{
		logger: logging.FromContext(ctx).Named("ledger"),
	}
	for _, opt := range opts {
		opt(options)
	}

	db, err := leveldb.OpenFile(dir, options.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", dir, err)
	}
	options.logger.Info("opened ledger", zap.String("dir", dir))
	return &Store{db: db, logger: options.logger, opts: options.opts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a transaction with the given role. The transaction
// commits only if fn returns nil; otherwise nothing fn wrote is kept.
func (s *Store) Update(ctx context.Context, role Role, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := prometheus.NewTimer(updateDuration.WithLabelValues(role.String()))
	defer timer.ObserveDuration()

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("opening transaction: %w", err)
	}
	tx := &Tx{reader: reader{db: tr}, tr: tr, role: role}
	if err := fn(tx); err != nil {
		tr.Discard()
		updatesTotal.WithLabelValues(role.String(), "rejected").Inc()
		return err
	}
	if err := tx.flush(); err != nil {
		tr.Discard()
		updatesTotal.WithLabelValues(role.String(), "failed").Inc()
		return err
	}
	if err := tr.Commit(); err != nil {
		updatesTotal.WithLabelValues(role.String(), "failed").Inc()
		return fmt.Errorf("committing transaction: %w", err)
	}
	updatesTotal.WithLabelValues(role.String(), "committed").Inc()
	journalRows.WithLabelValues("delta").Add(float64(tx.deltas))
	journalRows.WithLabelValues("event").Add(float64(len(tx.emitted)))

	logger := logging.FromContext(ctx)
	for _, ev := range tx.emitted {
		logger.Debug("event", zap.String("type", ev.Type), zap.Any("attributes", ev.Attributes))
	}
	return nil
}

// View runs fn against a consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(r Reader) error) error {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("taking snapshot: %w", err)
	}
	defer snap.Release()
	return fn(reader{db: snap})
}
