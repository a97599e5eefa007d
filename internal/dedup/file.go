package dedup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/sirupsen/logrus"
)

const defaultCompactEvery = 500

// File persists the active day in two files next to path:
//   - <path>                (append-only JSON lines journal, fsynced per record)
//   - <path>.snapshot.json  (compacted state, replaced atomically)
//
// The journal is folded into the snapshot every compactEvery records and on
// every reset, so disk usage is bounded by one day of alerts.
type File struct {
	log *logrus.Logger

	mu           sync.Mutex
	journalPath  string
	snapshotPath string
	journal      *os.File
	day          string
	records      map[token.ID]Record
	order        []token.ID
	writes       int
	compactEvery int
}

type journalEntry struct {
	Op     string  `json:"op"` // "reset" or "record"
	Day    string  `json:"day"`
	Record *Record `json:"record,omitempty"`
}

type snapshot struct {
	Day     string   `json:"day"`
	Records []Record `json:"records"`
}

// OpenFile loads (or creates) a file store at path
func OpenFile(path string, compactEvery int, log *logrus.Logger) (*File, error) {
	if path == "" {
		return nil, errors.New("dedup file path is required")
	}
	if compactEvery <= 0 {
		compactEvery = defaultCompactEvery
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dedup dir: %w", err)
	}

	f := &File{
		log:          log,
		journalPath:  path,
		snapshotPath: path + ".snapshot.json",
		records:      make(map[token.ID]Record),
		compactEvery: compactEvery,
	}

	if err := f.loadSnapshot(); err != nil {
		return nil, err
	}
	replayed, err := f.replayJournal()
	if err != nil {
		return nil, err
	}

	jf, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open dedup journal: %w", err)
	}
	if err := terminateLastLine(jf); err != nil {
		jf.Close()
		return nil, err
	}
	f.journal = jf
	f.writes = replayed

	log.WithFields(logrus.Fields{
		"path":    path,
		"day":     f.day,
		"records": len(f.records),
	}).Info("Dedup file store loaded")

	return f, nil
}

func (f *File) loadSnapshot() error {
	data, err := os.ReadFile(f.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dedup snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode dedup snapshot: %w", err)
	}
	f.day = snap.Day
	for _, rec := range snap.Records {
		f.add(rec)
	}
	return nil
}

// replayJournal applies the journal on top of the snapshot. A torn final
// line from an interrupted write is skipped.
func (f *File) replayJournal() (int, error) {
	jf, err := os.Open(f.journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open dedup journal: %w", err)
	}
	defer jf.Close()

	n := 0
	scanner := bufio.NewScanner(jf)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			f.log.WithError(err).Warn("Skipping unreadable dedup journal line")
			continue
		}
		switch e.Op {
		case "reset":
			f.clear(e.Day)
		case "record":
			if e.Record == nil {
				continue
			}
			if f.day == "" {
				f.day = e.Record.Day
			}
			if e.Record.Day == f.day {
				f.add(*e.Record)
			}
		}
		n++
	}
	return n, scanner.Err()
}

// terminateLastLine ends a torn final line so new entries start cleanly
func terminateLastLine(jf *os.File) error {
	info, err := jf.Stat()
	if err != nil {
		return fmt.Errorf("stat dedup journal: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := jf.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read dedup journal: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := jf.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("repair dedup journal: %w", err)
	}
	return jf.Sync()
}

func (f *File) add(rec Record) {
	if _, ok := f.records[rec.TokenID]; ok {
		return
	}
	f.records[rec.TokenID] = rec
	f.order = append(f.order, rec.TokenID)
}

func (f *File) clear(day string) {
	f.day = day
	f.records = make(map[token.ID]Record)
	f.order = nil
}

func (f *File) Load(ctx context.Context) (string, []Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return "", nil, ErrClosed
	}
	return f.day, f.snapshotLocked().Records, nil
}

func (f *File) Seen(ctx context.Context, id token.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return false, ErrClosed
	}
	_, ok := f.records[id]
	return ok, nil
}

func (f *File) Record(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return ErrClosed
	}
	if err := checkDay(&f.day, rec); err != nil {
		return err
	}
	if _, ok := f.records[rec.TokenID]; ok {
		return nil
	}

	if err := f.appendLocked(journalEntry{Op: "record", Day: rec.Day, Record: &rec}); err != nil {
		return err
	}
	f.add(rec)

	f.writes++
	if f.writes >= f.compactEvery {
		if err := f.compactLocked(); err != nil {
			// the journal still holds every record
			f.log.WithError(err).Warn("Dedup journal compaction failed")
		}
	}
	return nil
}

func (f *File) appendLocked(e journalEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode dedup entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.journal.Write(line); err != nil {
		return fmt.Errorf("write dedup journal: %w", err)
	}
	if err := f.journal.Sync(); err != nil {
		return fmt.Errorf("sync dedup journal: %w", err)
	}
	return nil
}

func (f *File) Reset(ctx context.Context, day string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return ErrClosed
	}
	if err := f.appendLocked(journalEntry{Op: "reset", Day: day}); err != nil {
		return err
	}
	f.clear(day)
	return f.compactLocked()
}

func (f *File) snapshotLocked() snapshot {
	snap := snapshot{Day: f.day, Records: make([]Record, 0, len(f.order))}
	for _, id := range f.order {
		snap.Records = append(snap.Records, f.records[id])
	}
	return snap
}

// compactLocked writes the snapshot atomically, then truncates the journal
func (f *File) compactLocked() error {
	data, err := json.Marshal(f.snapshotLocked())
	if err != nil {
		return fmt.Errorf("encode dedup snapshot: %w", err)
	}

	tmp := f.snapshotPath + ".tmp"
	tf, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create dedup snapshot: %w", err)
	}
	if _, err := tf.Write(data); err != nil {
		tf.Close()
		return fmt.Errorf("write dedup snapshot: %w", err)
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		return fmt.Errorf("sync dedup snapshot: %w", err)
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.snapshotPath); err != nil {
		return fmt.Errorf("replace dedup snapshot: %w", err)
	}

	if err := f.journal.Truncate(0); err != nil {
		return fmt.Errorf("truncate dedup journal: %w", err)
	}
	if _, err := f.journal.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	f.writes = 0
	return f.journal.Sync()
}

func (f *File) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return ErrClosed
	}
	return f.compactLocked()
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journal == nil {
		return nil
	}
	cerr := f.compactLocked()
	err := f.journal.Close()
	f.journal = nil
	if cerr != nil {
		return cerr
	}
	return err
}
