package exception

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"rotaplan/internal/calendar"
	"rotaplan/internal/rota"
	logx "rotaplan/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.snapshot.json  (periodic full snapshot)
//   - <prefix>.journal.jsonl  (append-only journal)
//
// The journal is compacted into the snapshot every compactEvery writes.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalPath  string
	journal      *os.File

	recs   map[int64]Record
	nextID int64
	writes int
}

const compactEvery = 200

// fileRecord is the stable on-disk form.
type fileRecord struct {
	ID        int64    `json:"id"`
	UserID    string   `json:"user_id"`
	Date      string   `json:"date"`
	Kind      string   `json:"kind"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"created_at"`
	ShiftType string   `json:"shift_type,omitempty"`
	NewStart  int      `json:"new_start,omitempty"`
	NewEnd    int      `json:"new_end,omitempty"`
	HasTimes  bool     `json:"has_times,omitempty"`
	SwapTeam  string   `json:"swap_team,omitempty"`
	Teams     []string `json:"teams,omitempty"`
	Note      string   `json:"note,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		snapshotPath: prefix + ".snapshot.json",
		journalPath:  prefix + ".journal.jsonl",
		recs:         map[int64]Record{},
		nextID:       1,
	}

	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}
	if err := s.replayJournal(); err != nil {
		return nil, err
	}
	for id := range s.recs {
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}

	jf, err := os.OpenFile(s.journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.journal = jf
	return s, nil
}

func (s *fileStore) loadSnapshot() error {
	b, err := os.ReadFile(s.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var frs []fileRecord
	if err := json.Unmarshal(b, &frs); err != nil {
		// A corrupt snapshot is recoverable: the journal still holds writes.
		s.log.Warn("exception snapshot unreadable, ignoring", logx.Err(err))
		return nil
	}
	for _, fr := range frs {
		r, err := fr.record()
		if err != nil {
			s.log.Warn("skipping bad snapshot record", logx.Int64("id", fr.ID), logx.Err(err))
			continue
		}
		s.recs[r.ID] = r
	}
	return nil
}

func (s *fileStore) replayJournal() error {
	f, err := os.Open(s.journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var fr fileRecord
		if err := json.Unmarshal([]byte(line), &fr); err != nil {
			s.log.Warn("skipping bad journal line", logx.Err(err))
			continue
		}
		r, err := fr.record()
		if err != nil {
			s.log.Warn("skipping bad journal record", logx.Int64("id", fr.ID), logx.Err(err))
			continue
		}
		s.recs[r.ID] = r
	}
	return sc.Err()
}

func (s *fileStore) ActiveForRange(ctx context.Context, userID string, start, end calendar.Date) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.recs {
		if !r.Active() || r.UserID != userID {
			continue
		}
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fileStore) Put(ctx context.Context, r Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal == nil {
		return 0, fmt.Errorf("%w: store closed", ErrStoreUnavailable)
	}
	if r.ID == 0 {
		r.ID = s.nextID
		s.nextID++
	} else if r.ID >= s.nextID {
		s.nextID = r.ID + 1
	}
	if r.Status == 0 {
		r.Status = StatusActive
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	if err := s.appendLocked(r); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.recs[r.ID] = r
	s.maybeCompactLocked()
	return r.ID, nil
}

func (s *fileStore) Cancel(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recs[id]
	if !ok {
		return nil
	}
	if s.journal == nil {
		return fmt.Errorf("%w: store closed", ErrStoreUnavailable)
	}
	r.Status = StatusCancelled
	if err := s.appendLocked(r); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.recs[id] = r
	s.maybeCompactLocked()
	return nil
}

func (s *fileStore) appendLocked(r Record) error {
	enc := json.NewEncoder(s.journal)
	if err := enc.Encode(toFileRecord(r)); err != nil {
		return err
	}
	s.writes++
	return nil
}

func (s *fileStore) maybeCompactLocked() {
	if s.writes < compactEvery {
		return
	}
	if err := s.compactLocked(); err != nil {
		s.log.Warn("exception store compaction failed", logx.Err(err))
		return
	}
	s.writes = 0
}

func (s *fileStore) compactLocked() error {
	frs := make([]fileRecord, 0, len(s.recs))
	for _, r := range s.recs {
		frs = append(frs, toFileRecord(r))
	}
	sort.Slice(frs, func(i, j int) bool { return frs[i].ID < frs[j].ID })

	b, err := json.Marshal(frs)
	if err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}

	// Truncate the journal now that the snapshot covers everything.
	if err := s.journal.Close(); err != nil {
		return err
	}
	jf, err := os.OpenFile(s.journalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		s.journal = nil
		return err
	}
	s.journal = jf
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func toFileRecord(r Record) fileRecord {
	return fileRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      r.Date.String(),
		Kind:      r.Kind.String(),
		Status:    r.Status.String(),
		CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
		ShiftType: r.ShiftTypeID,
		NewStart:  int(r.NewStart),
		NewEnd:    int(r.NewEnd),
		HasTimes:  r.HasNewTimes,
		SwapTeam:  r.SwapTeam,
		Teams:     r.Teams,
		Note:      r.Note,
	}
}

func (fr fileRecord) record() (Record, error) {
	d, err := calendar.ParseDate(fr.Date)
	if err != nil {
		return Record{}, err
	}
	kind, err := ParseKind(fr.Kind)
	if err != nil {
		return Record{}, err
	}
	status, err := ParseStatus(fr.Status)
	if err != nil {
		return Record{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, fr.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:          fr.ID,
		UserID:      fr.UserID,
		Date:        d,
		Kind:        kind,
		Status:      status,
		CreatedAt:   created,
		ShiftTypeID: fr.ShiftType,
		NewStart:    rota.MinuteOfDay(fr.NewStart),
		NewEnd:      rota.MinuteOfDay(fr.NewEnd),
		HasNewTimes: fr.HasTimes,
		SwapTeam:    fr.SwapTeam,
		Teams:       fr.Teams,
		Note:        fr.Note,
	}, nil
}
