package catalog

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pierrec/lz4/v4"
)

type archiveKind int

const (
	archiveNone archiveKind = iota
	archiveZip
	archiveGzip
	archiveLZ4
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

func (k archiveKind) String() string {
	switch k {
	case archiveZip:
		return "zip"
	case archiveGzip:
		return "gzip"
	case archiveLZ4:
		return "lz4"
	default:
		return "none"
	}
}

func detectArchive(head []byte) archiveKind {
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return archiveZip
	case bytes.HasPrefix(head, gzipMagic):
		return archiveGzip
	case bytes.HasPrefix(head, lz4Magic):
		return archiveLZ4
	default:
		return archiveNone
	}
}

func sniffArchive(filePath string) (archiveKind, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return archiveNone, err
	}
	defer f.Close()
	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return archiveNone, err
	}
	return detectArchive(head[:n]), nil
}

// extract streams the wanted member of the archive at filePath into store. Zip members
// are matched on their base name only; their stored paths are never used on disk.
func extract(filePath string, kind archiveKind, member string, store func(io.Reader) error) error {
	switch kind {
	case archiveZip:
		zr, err := zip.OpenReader(filePath)
		if err != nil {
			return fmt.Errorf("open zip: %w", err)
		}
		defer zr.Close()
		f := findMember(zr.File, member)
		if f == nil {
			return dataError("Downloaded file not found after extraction.", nil)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip member: %w", err)
		}
		defer rc.Close()
		return store(rc)

	case archiveGzip, archiveLZ4:
		f, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer f.Close()
		if kind == archiveLZ4 {
			return store(lz4.NewReader(f))
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		return store(gz)

	default:
		return fmt.Errorf("unsupported archive %s", kind)
	}
}

func findMember(files []*zip.File, member string) *zip.File {
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(strings.ReplaceAll(f.Name, `\`, "/")) == member {
			return f
		}
	}
	return nil
}
