package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUnsupportedType rejects files without a .csv extension.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNotCSV rejects content that does not sniff as CSV text.
	ErrNotCSV = errors.New("content is not csv")
	// ErrTooLarge rejects content above the configured byte cap.
	ErrTooLarge = errors.New("file too large")
)

const sniffLen = 512

// Upload describes a stored intake file.
type Upload struct {
	Name string
	Path string
	Size int64
}

// Intake validates and stores user supplied CSV files under a writable root.
type Intake struct {
	root     *Root
	maxBytes int64
	now      func() time.Time
}

// NewIntake constructs an Intake writing into root and refusing files over maxBytes.
func NewIntake(root *Root, maxBytes int64) *Intake {
	return &Intake{root: root, maxBytes: maxBytes, now: time.Now}
}

// Root exposes the intake root.
func (in *Intake) Root() *Root {
	return in.root
}

// AllowedExtension reports whether name carries the .csv extension.
func AllowedExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// SniffCSV reports whether head looks like delimited text with at least one record.
func SniffCSV(head []byte) bool {
	if len(bytes.TrimSpace(head)) == 0 {
		return false
	}
	if !strings.HasPrefix(http.DetectContentType(head), "text/") {
		return false
	}
	// Drop a possibly truncated trailing line before parsing.
	if idx := bytes.LastIndexByte(head, '\n'); idx > 0 && len(head) == sniffLen {
		head = head[:idx+1]
	}
	reader := csv.NewReader(bytes.NewReader(head))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	record, err := reader.Read()
	return err == nil && len(record) > 0
}

// Accept checks the extension and content of src and stores it under a unique name.
func (in *Intake) Accept(src io.Reader, originalName string) (Upload, error) {
	if !AllowedExtension(originalName) {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnsupportedType, originalName)
	}

	buffered := bufio.NewReaderSize(src, sniffLen)
	head, err := buffered.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if !SniffCSV(head) {
		return Upload{}, fmt.Errorf("%w: %q", ErrNotCSV, originalName)
	}

	name, err := UploadName(originalName, in.now())
	if err != nil {
		return Upload{}, err
	}
	return in.Store(buffered, name)
}

// Store writes src under name without content checks. The name is resolved through the root.
func (in *Intake) Store(src io.Reader, name string) (Upload, error) {
	safe, path, err := in.root.Resolve(name)
	if err != nil {
		return Upload{}, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Upload{}, fmt.Errorf("create %s: %w", safe, err)
	}

	limit := in.maxBytes
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	n, copyErr := io.Copy(f, io.LimitReader(src, limit+1))
	closeErr := f.Close()
	if copyErr == nil && n > limit {
		copyErr = ErrTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(path)
		return Upload{}, fmt.Errorf("store %s: %w", safe, copyErr)
	}

	return Upload{Name: safe, Path: path, Size: n}, nil
}
