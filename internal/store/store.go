// Package store persists the ledger on the filesystem: one JSON state file,
// overwritten on every mint, and a history directory holding one immutable
// JSON file per block height. Every write goes to a temporary file first and
// is renamed into place, so a failed write leaves the prior commit intact.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"xyron.node/xyn/internal/types"
)

// ErrBlockNotFound is returned when no readable block exists for a height.
var ErrBlockNotFound = errors.New("block not found")

var blockFilePattern = regexp.MustCompile(`^block_(\d{8,})\.json$`)

// Store manages the state file and the block directory.
type Store struct {
	stateFile string
	blocksDir string
}

// New creates a Store. Nothing is touched on disk until EnsureDirs or a
// write.
func New(stateFile, blocksDir string) *Store {
	return &Store{stateFile: stateFile, blocksDir: blocksDir}
}

// StateFile returns the state file path.
func (s *Store) StateFile() string { return s.stateFile }

// BlocksDir returns the block directory path.
func (s *Store) BlocksDir() string { return s.blocksDir }

// EnsureDirs creates the state and block directories.
func (s *Store) EnsureDirs() error {
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.MkdirAll(s.blocksDir, 0o755); err != nil {
		return fmt.Errorf("create blocks directory: %w", err)
	}
	return nil
}

// LoadState reads the committed state. When no state file exists the
// genesis state is persisted and returned. A corrupt file is an error.
func (s *Store) LoadState() (types.LedgerState, bool, error) {
	st, err := s.ReadState()
	if errors.Is(err, os.ErrNotExist) {
		var genesis types.LedgerState
		if err := s.SaveState(genesis); err != nil {
			return genesis, false, fmt.Errorf("persist genesis state: %w", err)
		}
		return genesis, true, nil
	}
	return st, false, err
}

// ReadState reads the committed state without creating anything. A missing
// file yields an error matching os.ErrNotExist.
func (s *Store) ReadState() (types.LedgerState, error) {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return types.LedgerState{}, fmt.Errorf("read state: %w", err)
	}

	var st types.LedgerState
	if err := json.Unmarshal(data, &st); err != nil {
		return types.LedgerState{}, fmt.Errorf("decode state %s: %w", s.stateFile, err)
	}
	return st, nil
}

// SaveState atomically replaces the state file.
func (s *Store) SaveState(st types.LedgerState) error {
	tmp, err := writeTemp(s.stateFile, st)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.stateFile); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Commit persists a block and the state that follows it. Both documents are
// staged as temporary files before either is renamed; the block is renamed
// first. If the state rename fails, the block file is left above the
// committed height and is quarantined by ReconcileOrphans on next start.
func (s *Store) Commit(block types.Block, st types.LedgerState) error {
	blockPath := s.blockPath(block.Header.Height)

	blockTmp, err := writeTemp(blockPath, block)
	if err != nil {
		return err
	}
	stateTmp, err := writeTemp(s.stateFile, st)
	if err != nil {
		os.Remove(blockTmp)
		return err
	}
	if err := os.Rename(blockTmp, blockPath); err != nil {
		os.Remove(blockTmp)
		os.Remove(stateTmp)
		return fmt.Errorf("publish block %d: %w", block.Header.Height, err)
	}
	if err := os.Rename(stateTmp, s.stateFile); err != nil {
		os.Remove(stateTmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// ReadBlock loads the block at height.
func (s *Store) ReadBlock(height uint64) (types.Block, error) {
	data, err := os.ReadFile(s.blockPath(height))
	if errors.Is(err, os.ErrNotExist) {
		return types.Block{}, ErrBlockNotFound
	}
	if err != nil {
		return types.Block{}, fmt.Errorf("read block %d: %w", height, err)
	}
	var b types.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return types.Block{}, fmt.Errorf("decode block %d: %w", height, err)
	}
	return b, nil
}

// Heights lists the heights with a block file, ascending.
func (s *Store) Heights() ([]uint64, error) {
	entries, err := os.ReadDir(s.blocksDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	heights := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := blockFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		h, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

// ListBlocks returns up to limit blocks, newest first. Unreadable or corrupt
// files are skipped.
func (s *Store) ListBlocks(limit int) ([]types.Block, error) {
	if limit <= 0 {
		return []types.Block{}, nil
	}
	heights, err := s.Heights()
	if err != nil {
		return nil, err
	}

	blocks := make([]types.Block, 0, min(limit, len(heights)))
	for i := len(heights) - 1; i >= 0 && len(blocks) < limit; i-- {
		b, err := s.ReadBlock(heights[i])
		if err != nil {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// ReconcileOrphans renames block files above the committed height to
// <name>.orphan so they can never shadow a block minted later. It returns the
// number of files moved aside.
func (s *Store) ReconcileOrphans(committed uint64) (int, error) {
	heights, err := s.Heights()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, h := range heights {
		if h <= committed {
			continue
		}
		p := s.blockPath(h)
		if err := os.Rename(p, p+".orphan"); err != nil {
			return moved, fmt.Errorf("quarantine block %d: %w", h, err)
		}
		moved++
	}
	return moved, nil
}

func (s *Store) blockPath(height uint64) string {
	return filepath.Join(s.blocksDir, types.BlockFileName(height))
}

// writeTemp writes v as indented JSON next to target and syncs it.
func writeTemp(target string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", filepath.Base(target), err)
	}

	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", filepath.Base(target), err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync %s: %w", filepath.Base(target), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", filepath.Base(target), err)
	}
	return tmp, nil
}
