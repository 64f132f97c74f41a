package backup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/cropguard/internal/detection"
)

const (
	// LedgerFile is the name of the ledger inside the backup folder.
	LedgerFile = "details.txt"

	// TimestampLayout formats entry times and image copy names.
	TimestampLayout = "2006-01-02_15-04-05"

	// TemperatureError is written when the sensor had no reading.
	TemperatureError = "Error"

	dirPerm  = 0o750
	filePerm = 0o640
)

var (
	sequencePattern = regexp.MustCompile(`^\[(\d+)\]`)
	entryPattern    = regexp.MustCompile(`^\[(\d+)\] Detected: (.+), Time: (\S+), Temperature: (.+)$`)
)

// Entry is one ledger line.
type Entry struct {
	Sequence    int
	Category    detection.Category
	Time        time.Time
	Temperature *float64
	// Image is the path of the copied image, empty when copying is disabled.
	Image string
}

// String renders the ledger line without the trailing newline.
func (e Entry) String() string {
	temp := TemperatureError
	if e.Temperature != nil {
		temp = strconv.FormatFloat(*e.Temperature, 'f', -1, 64)
	}
	return fmt.Sprintf("[%d] Detected: %s, Time: %s, Temperature: %s",
		e.Sequence, e.Category, e.Time.Format(TimestampLayout), temp)
}

// ImageName is the name of the image copy: <seq>_<Category>_<timestamp><ext>.
func (e Entry) ImageName(ext string) string {
	return fmt.Sprintf("%d_%s_%s%s", e.Sequence, e.Category, e.Time.Format(TimestampLayout), ext)
}

// ParseEntry parses one ledger line. Times are read in loc.
func ParseEntry(line string, loc *time.Location) (Entry, error) {
	m := entryPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Entry{}, fmt.Errorf("malformed ledger line %q", line)
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return Entry{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(TimestampLayout, m[3], loc)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Sequence: seq, Category: detection.Category(m[2]), Time: ts}
	if m[4] != TemperatureError {
		if v, err := strconv.ParseFloat(m[4], 64); err == nil {
			e.Temperature = &v
		}
	}
	return e, nil
}

// Ledger appends numbered detection records to details.txt and optionally
// keeps a copy of each image.
type Ledger struct {
	dir        string
	copyImages bool
	loc        *time.Location

	mu   sync.Mutex
	next int // 0 until read from the file
}

// NewLedger returns a ledger in dir. The directory is created on first append.
func NewLedger(dir string, copyImages bool, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{dir: dir, copyImages: copyImages, loc: loc}
}

// Dir returns the backup folder.
func (l *Ledger) Dir() string { return l.dir }

// Path returns the ledger file path.
func (l *Ledger) Path() string { return filepath.Join(l.dir, LedgerFile) }

// Append records ev with the given temperature, nil meaning no reading.
// The image copy is made before the line is written so the ledger never
// references a missing file.
func (l *Ledger) Append(ev detection.Event, temperature *float64) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, dirPerm); err != nil {
		return Entry{}, ledgerError(err, "create_dir", l.dir)
	}

	if l.next == 0 {
		last, err := lastSequence(l.Path())
		if err != nil {
			return Entry{}, ledgerError(err, "read_sequence", l.Path())
		}
		l.next = last + 1
	}

	entry := Entry{
		Sequence:    l.next,
		Category:    ev.Category,
		Time:        ev.Timestamp.In(l.loc),
		Temperature: temperature,
	}

	if l.copyImages && ev.Path != "" {
		dst := filepath.Join(l.dir, entry.ImageName(filepath.Ext(ev.Path)))
		if err := copyFile(ev.Path, dst); err != nil {
			return Entry{}, ledgerError(err, "copy_image", ev.Path)
		}
		entry.Image = dst
	}

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return Entry{}, ledgerError(err, "open_ledger", l.Path())
	}
	if _, err := fmt.Fprintln(f, entry.String()); err != nil {
		_ = f.Close()
		return Entry{}, ledgerError(err, "write_ledger", l.Path())
	}
	if err := f.Close(); err != nil {
		return Entry{}, ledgerError(err, "close_ledger", l.Path())
	}

	l.next++
	GetLogger().Debug("ledger entry written",
		logInt("sequence", entry.Sequence),
		logString("category", string(entry.Category)))
	return entry, nil
}

// Entries reads every well-formed line of the ledger. Malformed lines are skipped.
func (l *Ledger) Entries() ([]Entry, error) {
	f, err := os.Open(l.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ledgerError(err, "open_ledger", l.Path())
	}
	defer func() { _ = f.Close() }()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if e, err := ParseEntry(sc.Text(), l.loc); err == nil {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, ledgerError(err, "read_ledger", l.Path())
	}
	return out, nil
}

// lastSequence returns the number of the last non-empty line, or 0 when the
// file is missing or the line carries no number.
func lastSequence(path string) (int, error) {
	f, err := os.Open(path) //nolint:gosec // G304 - path is the configured ledger
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var last string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}

	m := sequencePattern.FindStringSubmatch(last)
	if m == nil {
		return 0, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) //nolint:gosec // G304 - src comes from the watched directory
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
