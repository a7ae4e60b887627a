package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dukerupert/freshmate/internal/grocery"
	"github.com/dukerupert/freshmate/internal/model"
)

// csvHeader is the canonical column order written by Save.
var csvHeader = []string{"Owner", "Name", "Quantity", "Unit", "Category", "Expiry", "ReminderSent", "ExpiredSent"}

// headerAliases maps lower-cased header spellings to canonical column names.
var headerAliases = map[string]string{
	"owner":         "Owner",
	"email":         "Owner",
	"user":          "Owner",
	"name":          "Name",
	"item":          "Name",
	"quantity":      "Quantity",
	"qty":           "Quantity",
	"unit":          "Unit",
	"category":      "Category",
	"expiry":        "Expiry",
	"expiry date":   "Expiry",
	"expiry_date":   "Expiry",
	"expires":       "Expiry",
	"remindersent":  "ReminderSent",
	"reminder_sent": "ReminderSent",
	"expiredsent":   "ExpiredSent",
	"expired_sent":  "ExpiredSent",
}

var requiredColumns = []string{"Owner", "Name", "Expiry"}

// CSVFile stores the inventory as one CSV file that is rewritten in full on
// every save.
type CSVFile struct {
	path string
}

func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

func (f *CSVFile) Path() string {
	return f.path
}

// Load reads every item. A missing file is an empty inventory.
func (f *CSVFile) Load(ctx context.Context) ([]model.Item, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	items, err := DecodeCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return items, nil
}

// Save writes items to a temporary file in the same directory and renames it
// over the data file, so readers never observe a partial write.
func (f *CSVFile) Save(ctx context.Context, items []model.Item) error {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, items); err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	return f.writeAtomic(buf.Bytes())
}

// Snapshot returns the raw file contents for backup. A missing file yields a
// header-only snapshot.
func (f *CSVFile) Snapshot(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		var buf bytes.Buffer
		if err := EncodeCSV(&buf, nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Restore replaces the data file with a snapshot after checking that it
// decodes.
func (f *CSVFile) Restore(ctx context.Context, data []byte) error {
	if _, err := DecodeCSV(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	return f.writeAtomic(data)
}

func (f *CSVFile) writeAtomic(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// EncodeCSV writes items in canonical form.
func EncodeCSV(w io.Writer, items []model.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range items {
		rec := []string{
			it.Owner,
			it.Name,
			strconv.FormatFloat(it.Quantity, 'f', -1, 64),
			string(it.Unit),
			it.Category,
			model.FormatDate(it.Expiry),
			formatFlag(it.ReminderSent),
			formatFlag(it.ExpiredSent),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads items from any header layout the aliases resolve. Optional
// columns that are absent get defaults: flags false, category derived from
// the name.
func DecodeCSV(r io.Reader) ([]model.Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []model.Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if canon, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	items := []model.Item{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if blankRecord(rec) {
			continue
		}
		it, err := decodeRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeRecord(rec []string, cols map[string]int) (model.Item, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	var it model.Item
	it.Owner, _ = field("Owner")
	it.Name, _ = field("Name")

	expiry, _ := field("Expiry")
	d, err := model.ParseDate(expiry)
	if err != nil {
		return it, fmt.Errorf("parse expiry %q: %w", expiry, err)
	}
	it.Expiry = d

	if q, ok := field("Quantity"); ok && q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			return it, fmt.Errorf("parse quantity %q: %w", q, err)
		}
		it.Quantity = v
	}

	if u, ok := field("Unit"); ok {
		// Unknown units from older files are kept as written.
		if unit, err := model.ParseUnit(u); err == nil {
			it.Unit = unit
		} else {
			it.Unit = model.Unit(u)
		}
	}

	if c, ok := field("Category"); ok && c != "" {
		it.Category = c
	} else {
		it.Category = grocery.Categorize(it.Name)
	}

	if v, ok := field("ReminderSent"); ok {
		if it.ReminderSent, err = parseFlag(v); err != nil {
			return it, fmt.Errorf("parse ReminderSent: %w", err)
		}
	}
	if v, ok := field("ExpiredSent"); ok {
		if it.ExpiredSent, err = parseFlag(v); err != nil {
			return it, fmt.Errorf("parse ExpiredSent: %w", err)
		}
	}
	return it, nil
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func formatFlag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized flag value %q", s)
	}
}
