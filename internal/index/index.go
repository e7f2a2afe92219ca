// Package index maintains a queryable SQLite copy of the minted blocks. The
// block files stay authoritative; the index is fed by block notifications and
// can be rebuilt from the files at any time.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile    = "index.db"
	maxBusyTimeoutMs = 5000
	catchUpWorkers   = 4
)

// ErrUnknownParticipant is returned when a participant never appeared in an
// indexed block.
var ErrUnknownParticipant = errors.New("participant not indexed")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("index closed")

// BlockSource is where CatchUp reads blocks from.
type BlockSource interface {
	Heights() ([]uint64, error)
	ReadBlock(height uint64) (types.Block, error)
}

// ParticipantSummary aggregates a participant's history.
type ParticipantSummary struct {
	ID          string  `json:"id"`
	Blocks      int     `json:"blocks"`
	TotalReward float64 `json:"totalReward"`
	Messages    int     `json:"messages"`
	FirstHeight uint64  `json:"firstHeight"`
	LastHeight  uint64  `json:"lastHeight"`
}

// Store is the SQLite block index.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	file   string
	logger *logger.Logger
}

// NewStore opens (creating if needed) the index database at filePath.
func NewStore(filePath string, l *logger.Logger) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}
	if l == nil {
		l = logger.New(16, nil)
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{file: absPath, logger: l}
	if err := s.openDB(); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(s.file)))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			height INTEGER PRIMARY KEY,
			minted_at TEXT,
			reward INTEGER,
			per_participant REAL,
			participant_count INTEGER,
			message_count INTEGER,
			had_activity INTEGER,
			supply INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS participations (
			height INTEGER,
			participant TEXT,
			share REAL,
			PRIMARY KEY (height, participant)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			height INTEGER,
			seq INTEGER,
			participant TEXT,
			body TEXT,
			signature TEXT,
			received_at TEXT,
			PRIMARY KEY (height, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS halvings (
			height INTEGER PRIMARY KEY,
			from_epoch INTEGER,
			to_epoch INTEGER,
			base_reward INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_participations_participant ON participations(participant)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	return nil
}

// Insert indexes b. Re-indexing a height replaces its rows.
func (s *Store) Insert(b types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	h := b.Header.Height
	for _, table := range []string{"participations", "messages"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE height = ?", h); err != nil {
			return fmt.Errorf("clear %s for block %d: %w", table, h, err)
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO blocks (
		height, minted_at, reward, per_participant, participant_count,
		message_count, had_activity, supply)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h, formatTime(b.Header.Timestamp), b.Header.Reward, b.Rewards.PerParticipant,
		b.Header.ParticipantCount, b.Vault.MessageCount, b.Header.HadActivity, b.Header.Supply)
	if err != nil {
		return fmt.Errorf("insert block %d: %w", h, err)
	}

	for _, p := range b.Rewards.Participants {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO participations (height, participant, share) VALUES (?, ?, ?)`,
			h, p, b.Rewards.PerParticipant); err != nil {
			return fmt.Errorf("insert participation %d/%s: %w", h, p, err)
		}
	}
	for i, m := range b.Vault.Messages {
		if _, err := tx.Exec(`INSERT INTO messages (height, seq, participant, body, signature, received_at) VALUES (?, ?, ?, ?, ?, ?)`,
			h, i, m.Participant, m.Text, m.SignatureToken, formatTime(m.ReceivedAt)); err != nil {
			return fmt.Errorf("insert message %d/%d: %w", h, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", h, err)
	}
	return nil
}

// BlockMinted indexes a freshly committed block. Failures are logged; the
// next CatchUp repairs the gap.
func (s *Store) BlockMinted(b types.Block) {
	if err := s.Insert(b); err != nil {
		s.logger.Errorf("Index block %d: %v", b.Header.Height, err)
	}
}

// HalvingReached records a halving transition.
func (s *Store) HalvingReached(ev types.HalvingEvent) {
	if err := s.InsertHalving(ev); err != nil {
		s.logger.Errorf("Index halving at %d: %v", ev.Height, err)
	}
}

// InsertHalving stores ev, replacing any transition recorded at its height.
func (s *Store) InsertHalving(ev types.HalvingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO halvings (height, from_epoch, to_epoch, base_reward) VALUES (?, ?, ?, ?)`,
		ev.Height, ev.FromEpoch, ev.ToEpoch, ev.BaseReward)
	return err
}

// Halvings returns the recorded halving transitions, oldest first.
func (s *Store) Halvings() ([]types.HalvingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`SELECT height, from_epoch, to_epoch, base_reward FROM halvings ORDER BY height`)
	if err != nil {
		return nil, fmt.Errorf("query halvings: %w", err)
	}
	defer rows.Close()

	var out []types.HalvingEvent
	for rows.Next() {
		var ev types.HalvingEvent
		if err := rows.Scan(&ev.Height, &ev.FromEpoch, &ev.ToEpoch, &ev.BaseReward); err != nil {
			return nil, fmt.Errorf("scan halving: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// IndexedHeights returns the set of heights present in the index.
func (s *Store) IndexedHeights() (map[uint64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`SELECT height FROM blocks`)
	if err != nil {
		return nil, fmt.Errorf("query heights: %w", err)
	}
	defer rows.Close()

	out := make(map[uint64]bool)
	for rows.Next() {
		var h uint64
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan height: %w", err)
		}
		out[h] = true
	}
	return out, rows.Err()
}

// CatchUp indexes every block in src that the index is missing, up to and
// including maxHeight. Files are read concurrently and inserted in height
// order. It returns the number of blocks indexed.
func (s *Store) CatchUp(ctx context.Context, src BlockSource, maxHeight uint64) (int, error) {
	heights, err := src.Heights()
	if err != nil {
		return 0, err
	}
	have, err := s.IndexedHeights()
	if err != nil {
		return 0, err
	}

	var missing []uint64
	for _, h := range heights {
		if h <= maxHeight && !have[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	blocks := make([]*types.Block, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catchUpWorkers)
	for i, h := range missing {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := src.ReadBlock(h)
			if err != nil {
				s.logger.Warningf("Skip block %d during catch-up: %v", h, err)
				return nil
			}
			blocks[i] = &b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	indexed := 0
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if err := s.Insert(*b); err != nil {
			return indexed, err
		}
		indexed++
	}
	s.logger.Infof("Indexed %d missing block(s)", indexed)
	return indexed, nil
}

// Participant summarises the indexed history of id.
func (s *Store) Participant(id string) (ParticipantSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := ParticipantSummary{ID: id}
	if s.db == nil {
		return sum, ErrClosed
	}
	var first, last sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(share), 0), MIN(height), MAX(height)
		FROM participations WHERE participant = ?`, id).Scan(&sum.Blocks, &sum.TotalReward, &first, &last)
	if err != nil {
		return sum, fmt.Errorf("query participant: %w", err)
	}
	if sum.Blocks == 0 {
		return sum, ErrUnknownParticipant
	}
	sum.FirstHeight = uint64(first.Int64)
	sum.LastHeight = uint64(last.Int64)

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE participant = ?`, id).Scan(&sum.Messages); err != nil {
		return sum, fmt.Errorf("count messages: %w", err)
	}
	return sum, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
