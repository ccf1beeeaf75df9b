package cashier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/google/vectorio"
	"golang.org/x/sys/unix"
)

// Record is the persisted per-directory aggregate. It is an immutable value:
// a visit builds a new one instead of editing the old.
type Record struct {
	Content   Digest
	Structure Digest
	MTime     float64
}

// recordFile is the on-disk JSON shape of a Record
type recordFile struct {
	Hash     *string `json:"hash"`
	MTime    float64 `json:"mtime"`
	NameHash *string `json:"namehash"`
}

func digestPtr(d Digest) *string {
	if d.IsZero() {
		return nil
	}
	s := string(d)
	return &s
}

func digestFromPtr(s *string) Digest {
	if s == nil {
		return ""
	}
	return Digest(*s)
}

// MarshalJSON encodes the record in the record file format
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordFile{
		Hash:     digestPtr(r.Content),
		MTime:    r.MTime,
		NameHash: digestPtr(r.Structure),
	})
}

// UnmarshalJSON decodes the record file format
func (r *Record) UnmarshalJSON(data []byte) error {
	var rf recordFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return err
	}
	r.Content = digestFromPtr(rf.Hash)
	r.Structure = digestFromPtr(rf.NameHash)
	r.MTime = rf.MTime
	return nil
}

// RecordStore loads and saves the record file of each directory
type RecordStore struct {
	fileName string
	tempSeq  atomic.Uint64
}

// NewRecordStore creates a store using the standard record file name
func NewRecordStore() *RecordStore {
	return &RecordStore{fileName: RecordFileName}
}

// RecordPath returns the record file location for dirPath
func (rs *RecordStore) RecordPath(dirPath string) string {
	return filepath.Join(dirPath, rs.fileName)
}

// Load reads the record for dirPath. A missing record returns (nil, nil).
func (rs *RecordStore) Load(dirPath string) (*Record, error) {
	data, err := os.ReadFile(rs.RecordPath(dirPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record for %s: %w", dirPath, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupt record for %s: %w", dirPath, err)
	}
	return &record, nil
}

// generateTempFileName returns a hidden temp name next to the record
func (rs *RecordStore) generateTempFileName(dirPath string) string {
	return filepath.Join(dirPath, fmt.Sprintf(RecordTempName, os.Getpid(), rs.tempSeq.Add(1)))
}

// Save atomically replaces the record for dirPath: the JSON body is written to
// a temporary file in the same directory, synced, then renamed over the record.
func (rs *RecordStore) Save(dirPath string, record Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", dirPath, err)
	}

	tempPath := rs.generateTempFileName(dirPath)
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp record %s: %w", tempPath, err)
	}

	if err := writeRecordBody(file, body); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp record %s: %w", tempPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp record %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, rs.RecordPath(dirPath)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace record for %s: %w", dirPath, err)
	}

	syncDir(dirPath)
	if IsDebugEnabled("record") {
		VerboseLog(2, "record: wrote %s", rs.RecordPath(dirPath))
	}
	return nil
}

// writeRecordBody writes body and a trailing newline with one writev, then
// syncs the file.
func writeRecordBody(file *os.File, body []byte) error {
	newline := []byte{'\n'}
	iovecs := make([]syscall.Iovec, 2)
	iovecs[0].Base = &body[0]
	iovecs[0].SetLen(len(body))
	iovecs[1].Base = &newline[0]
	iovecs[1].SetLen(len(newline))

	want := len(body) + len(newline)
	nw, err := vectorio.WritevRaw(file.Fd(), iovecs)
	if err != nil {
		return fmt.Errorf("writev failed: %w", err)
	}
	if nw != want {
		return fmt.Errorf("short writev: wrote %d of %d bytes", nw, want)
	}

	if err := unix.Fsync(int(file.Fd())); err != nil {
		return fmt.Errorf("fsync failed: %w", err)
	}
	return nil
}

// syncDir flushes the directory entry after a rename. Errors are ignored.
func syncDir(dirPath string) {
	fd, err := unix.Open(dirPath, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return
	}
	defer unix.Close(fd)
	if err := unix.Fsync(fd); err != nil && IsDebugEnabled("record") {
		VerboseLog(2, "record: fsync of %s failed: %v", dirPath, err)
	}
}

// Clean removes the record for dirPath, plus temp records left behind by dead
// processes. It reports how many files were removed and every failure; a
// missing record is not a failure.
func (rs *RecordStore) Clean(dirPath string) (int, []error) {
	removed := 0
	var errs []error

	recordPath := rs.RecordPath(dirPath)
	if err := os.Remove(recordPath); err == nil {
		removed++
	} else if !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove record %s: %w", recordPath, err))
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return removed, append(errs, fmt.Errorf("failed to read %s while cleaning: %w", dirPath, err))
	}
	for _, entry := range entries {
		name := entry.Name()
		pid := extractPidFromTempName(name)
		if pid <= 0 || isProcessRunning(pid) {
			continue
		}
		tempPath := filepath.Join(dirPath, name)
		if err := os.Remove(tempPath); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove orphaned temp record %s: %w", tempPath, err))
			continue
		}
		removed++
	}
	return removed, errs
}

// extractPidFromTempName extracts the PID from temp record names like
// ".cash_file-1234-5.tmp"; anything else yields 0.
func extractPidFromTempName(filename string) int {
	prefix := RecordFileName + "-"
	if !strings.HasPrefix(filename, prefix) || !strings.HasSuffix(filename, ".tmp") {
		return 0
	}
	base := strings.TrimSuffix(strings.TrimPrefix(filename, prefix), ".tmp")

	parts := strings.Split(base, "-")
	if len(parts) != 2 {
		return 0
	}
	if _, err := strconv.ParseUint(parts[1], 10, 64); err != nil {
		return 0
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return pid
}

// isProcessRunning checks if a process with the given PID is currently running
func isProcessRunning(pid int) bool {
	// kill(pid, 0) probes for existence without sending a signal
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}

	// EPERM means the process exists but belongs to someone else
	return errors.Is(err, unix.EPERM)
}
