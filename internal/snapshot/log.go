// Package snapshot persists full model-run state dumps in an append-only
// log so interrupted runs can be resumed from the last valid snapshot.
// Every record carries an xxhash64 checksum; a corrupt or partially
// written tail is truncated away on load.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/avoigt/worldcore"
)

var ErrLogClosed = errors.New("snapshot log already closed")
var ErrNoSnapshots = errors.New("no snapshots in log")
var ErrCorruptRecord = errors.New("corrupt snapshot record")
var ErrLogWriteFailed = errors.New("snapshot log write failed")

type Strategy string

const (
	Sync  Strategy = "sync"
	Async Strategy = "async"
)

const headerTag = "snap"

var defaultFlushInterval = 1 * time.Second

type rec struct {
	offset int64
	length int64
	seq    uint64
	t      float64
}

// Log is an append-only snapshot log for one run.
type Log struct {
	mu         sync.Mutex
	f          *os.File
	path       string
	strategy   Strategy
	keep       int
	cursor     int64
	recs       []rec
	closed     bool
	stopCh     chan struct{}
	flushEvery time.Duration
}

type Option func(l *Log)

func WithStrategy(s Strategy) Option { return func(l *Log) { l.strategy = s } }

// WithKeep bounds how many newest snapshots Compact retains.
func WithKeep(n int) Option { return func(l *Log) { l.keep = n } }

func WithFlushInterval(d time.Duration) Option { return func(l *Log) { l.flushEvery = d } }

// Open opens or creates a snapshot log, replaying and verifying existing
// records. A corrupt tail is truncated.
func Open(path string, opts ...Option) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open snapshot log %s", path)
	}

	l := &Log{
		f:        f,
		path:     path,
		strategy: Sync,
		keep:     0, // unbounded
		stopCh:   make(chan struct{}, 1),
		flushEvery: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.replay(); err != nil {
		_ = f.Close()
		return nil, err
	}

	if l.strategy == Async {
		go l.asyncFlush()
	}

	return l, nil
}

func (l *Log) asyncFlush() {
	t := time.NewTicker(l.flushEvery)
	for {
		select {
		case <-l.stopCh:
			t.Stop()
			return
		case <-t.C:
			l.mu.Lock()
			if !l.closed {
				_ = l.f.Sync()
			}
			l.mu.Unlock()
		}
	}
}

// replay scans the log, verifies every record and truncates the file
// after the last valid one.
func (l *Log) replay() error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "could not rewind snapshot log")
	}

	r := bufio.NewReader(l.f)
	var good int64

	for {
		header, err := r.ReadString('\n')
		if err == io.EOF && header == "" {
			break
		}
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "could not read snapshot header")
		}

		var seq uint64
		var t float64
		var length int64
		var sum uint64
		n, sErr := fmt.Sscanf(header, headerTag+" %d %g %d %x\n", &seq, &t, &length, &sum)
		if sErr != nil || n != 4 {
			break // corrupt header, truncate here
		}

		payload := make([]byte, length+1) // payload plus trailing newline
		if _, rErr := io.ReadFull(r, payload); rErr != nil {
			break // partial tail
		}
		if xxhash.Sum64(payload[:length]) != sum {
			break // corrupt payload
		}

		l.recs = append(l.recs, rec{
			offset: good,
			length: int64(len(header)) + length + 1,
			seq:    seq,
			t:      t,
		})
		good += int64(len(header)) + length + 1
	}

	if err := l.f.Truncate(good); err != nil {
		return errors.Wrap(err, "could not truncate snapshot log after corrupt tail")
	}
	if _, err := l.f.Seek(good, io.SeekStart); err != nil {
		return errors.Wrap(err, "could not seek snapshot log")
	}
	l.cursor = good

	return nil
}

// Append serializes a state dump and appends it to the log. It implements
// worldcore.SnapshotSink.
func (l *Log) Append(d *worldcore.StateDump) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "could not encode snapshot")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, headerTag+" %d %g %d %x\n", d.Seq, d.T, len(payload), xxhash.Sum64(payload))
	headerLen := buf.Len()
	buf.Write(payload)
	buf.WriteByte('\n')

	n, err := l.f.Write(buf.Bytes())
	if err != nil {
		if n > 0 {
			// partial write, roll the file back
			if tErr := l.f.Truncate(l.cursor); tErr != nil {
				return errors.Wrapf(ErrLogWriteFailed,
					"could not roll back partial write: %s", tErr.Error())
			}
			if _, sErr := l.f.Seek(l.cursor, io.SeekStart); sErr != nil {
				return errors.Wrapf(ErrLogWriteFailed,
					"could not seek after rollback: %s", sErr.Error())
			}
		}
		_ = l.f.Sync()
		return errors.Wrap(ErrLogWriteFailed, err.Error())
	}

	if l.strategy == Sync {
		_ = l.f.Sync()
	}

	l.recs = append(l.recs, rec{
		offset: l.cursor,
		length: int64(headerLen) + int64(len(payload)) + 1,
		seq:    d.Seq,
		t:      d.T,
	})
	l.cursor += int64(buf.Len())

	return nil
}

func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recs)
}

// Last returns the newest snapshot in the log.
func (l *Log) Last() (*worldcore.StateDump, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLogClosed
	}
	if len(l.recs) == 0 {
		return nil, ErrNoSnapshots
	}

	return l.readAt(l.recs[len(l.recs)-1])
}

func (l *Log) readAt(r rec) (*worldcore.StateDump, error) {
	raw := make([]byte, r.length)
	if _, err := l.f.ReadAt(raw, r.offset); err != nil {
		return nil, errors.Wrap(err, "could not read snapshot record")
	}

	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		return nil, errors.Wrapf(ErrCorruptRecord, "no header at offset %d", r.offset)
	}
	payload := raw[nl+1 : len(raw)-1]

	var d worldcore.StateDump
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, errors.Wrapf(ErrCorruptRecord, "offset %d: %s", r.offset, err.Error())
	}
	return &d, nil
}

// Compact rewrites the log keeping only the newest snapshots, swapping
// the rewritten file in atomically.
func (l *Log) Compact() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	if l.keep <= 0 || len(l.recs) <= l.keep {
		return nil
	}

	retain := l.recs[len(l.recs)-l.keep:]
	var buf bytes.Buffer
	for _, r := range retain {
		raw := make([]byte, r.length)
		if _, err := l.f.ReadAt(raw, r.offset); err != nil {
			return errors.Wrap(err, "could not read snapshot record for compaction")
		}
		buf.Write(raw)
	}

	return l.writeAndSwap(&buf, retain)
}

func (l *Log) writeAndSwap(buf *bytes.Buffer, retain []rec) error {
	tmpName := l.path + ".tmp"
	tmpF, err := os.Create(tmpName)
	if err != nil {
		return errors.Wrapf(err, "could not create %s for compaction", tmpName)
	}

	defer func() {
		_ = tmpF.Close()
		_ = os.RemoveAll(tmpName)
	}()

	n, err := tmpF.Write(buf.Bytes())
	if err != nil {
		return errors.Wrapf(err, "compaction could not write into %s", tmpName)
	}
	if n != buf.Len() {
		return errors.Wrapf(ErrLogWriteFailed, "compaction wrote %d of %d bytes into %s", n, buf.Len(), tmpName)
	}
	if err := tmpF.Sync(); err != nil {
		return errors.Wrapf(err, "could not sync %s", tmpName)
	}

	if err := l.f.Close(); err != nil {
		return errors.Wrapf(err, "compaction could not close %s to swap it", l.path)
	}

	if rnErr := os.Rename(tmpName, l.path); rnErr != nil {
		resultErr := errors.Wrapf(rnErr, "compaction could not swap %s for %s", l.path, tmpName)
		l.f, err = os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0666)
		if err != nil {
			return errors.Wrapf(resultErr, "and could not reopen old file: %s", err.Error())
		}
		return resultErr
	}

	l.f, err = os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return errors.Wrapf(err, "could not reopen swapped file %s", l.path)
	}
	if _, err := l.f.Seek(int64(n), io.SeekStart); err != nil {
		return errors.Wrapf(err, "could not seek %s after swap", l.path)
	}

	l.cursor = int64(n)
	l.recs = l.recs[:0]
	var off int64
	for _, r := range retain {
		r.offset = off
		off += r.length
		l.recs = append(l.recs, r)
	}

	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	l.closed = true
	close(l.stopCh)

	if err := l.f.Sync(); err != nil {
		_ = l.f.Close()
		return errors.Wrapf(err, "could not sync snapshot log %s", l.path)
	}
	if err := l.f.Close(); err != nil {
		return errors.Wrapf(err, "could not close snapshot log %s", l.path)
	}
	return nil
}
