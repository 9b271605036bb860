package storage

import (
	"bytes"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestSniffCSV(t *testing.T) {
	if !SniffCSV([]byte("value,name\n1,A\n")) {
		t.Fatalf("plain csv should sniff as csv")
	}
	if !SniffCSV([]byte("\xef\xbb\xbfvalue\n1\n")) {
		t.Fatalf("csv with BOM should sniff as csv")
	}
	if SniffCSV(nil) || SniffCSV([]byte("   \n")) {
		t.Fatalf("empty content must be rejected")
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if SniffCSV(png) {
		t.Fatalf("binary content must be rejected")
	}
}

func TestIntakeAcceptStoresUniqueName(t *testing.T) {
	root := newTestRoot(t)
	intake := NewIntake(root, 1024)
	intake.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }

	upload, err := intake.Accept(strings.NewReader("value\n100\n150\n"), "my data.csv")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	pattern := regexp.MustCompile(`^20240102_030405_[0-9a-f]{8}_my_data\.csv$`)
	if !pattern.MatchString(upload.Name) {
		t.Fatalf("unexpected upload name %q", upload.Name)
	}
	data, err := os.ReadFile(upload.Path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "value\n100\n150\n" || upload.Size != int64(len(data)) {
		t.Fatalf("stored content mismatch: %q (%d)", data, upload.Size)
	}

	second, err := intake.Accept(strings.NewReader("value\n1\n"), "my data.csv")
	if err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	if second.Name == upload.Name {
		t.Fatalf("expected unique names within the same second")
	}
}

func TestIntakeAcceptRejections(t *testing.T) {
	root := newTestRoot(t)
	intake := NewIntake(root, 16)

	if _, err := intake.Accept(strings.NewReader("a,b\n1,2\n"), "data.txt"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := intake.Accept(bytes.NewReader([]byte{0x89, 'P', 'N', 'G', 0, 0, 0}), "data.csv"); !errors.Is(err, ErrNotCSV) {
		t.Fatalf("expected ErrNotCSV, got %v", err)
	}
	big := "value\n" + strings.Repeat("12345\n", 10)
	if _, err := intake.Accept(strings.NewReader(big), "data.csv"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	entries, err := os.ReadDir(root.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not leave files behind, found %d", len(entries))
	}
}

func TestOutputName(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	name := OutputName(PurposePlot, ".png", now)
	if !regexp.MustCompile(`^benford_plot_20240506_070809_[0-9a-f]{8}\.png$`).MatchString(name) {
		t.Fatalf("unexpected output name %q", name)
	}
	if _, err := UploadName("???", now); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for unusable names, got %v", err)
	}
}
