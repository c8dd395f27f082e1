package export

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File formats.
const (
	FormatJSON    = 1
	FormatArchive = 2
)

// Extensions for each format.
const (
	ExtJSON    = ".json"
	ExtArchive = ".json.gz"
)

// MaxDecompressedSize is the maximum allowed size of a decompressed archive (500MB).
const MaxDecompressedSize = 500 * 1024 * 1024

// ArchiveHeader is the plain-text first line of an archive.
type ArchiveHeader struct {
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	Checksum    string            `json:"checksum"`
	Scenario    string            `json:"scenario"`
	RecordCount int               `json:"record_count"`
	Compressed  bool              `json:"compressed"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DetectFormat reads the first line of a file to tell an archive from a plain
// JSON document.
func DetectFormat(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("reading first line: %w", err)
	}
	first := strings.TrimSpace(string(line))
	if first == "" {
		return 0, fmt.Errorf("file is empty")
	}

	var header ArchiveHeader
	if err := json.Unmarshal([]byte(first), &header); err == nil && header.Version == FormatArchive && header.Checksum != "" {
		return FormatArchive, nil
	}
	if first[0] == '{' {
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unrecognized results format")
}

// WriteArchive writes doc as a header line followed by the gzip-compressed
// JSON document. The header carries the sha256 of the compressed bytes.
func WriteArchive(path string, doc *Document, metadata map[string]string) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	header := ArchiveHeader{
		Version:     FormatArchive,
		CreatedAt:   doc.CreatedAt,
		Checksum:    checksum(compressed.Bytes()),
		Scenario:    doc.Scenario,
		RecordCount: len(doc.Records),
		Compressed:  true,
		Metadata:    metadata,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// openArchive reads the header and the compressed payload and verifies the
// checksum.
func openArchive(path string) (*ArchiveHeader, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return header, compressed, nil
}

func readHeader(r *bufio.Reader) (*ArchiveHeader, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var header ArchiveHeader
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatArchive {
		return nil, fmt.Errorf("expected archive format, got version %d", header.Version)
	}
	return &header, nil
}

// ReadArchive reads an archive, verifies its checksum and decodes the document.
func ReadArchive(path string) (*Document, error) {
	_, compressed, err := openArchive(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var doc Document
	if err := json.Unmarshal(decompressed, &doc); err != nil {
		return nil, fmt.Errorf("parsing results: %w", err)
	}
	return &doc, nil
}

// ReadArchiveHeader reads only the header line.
func ReadArchiveHeader(path string) (*ArchiveHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// VerifyChecksum checks an archive's integrity without decompressing it.
func VerifyChecksum(path string) error {
	_, _, err := openArchive(path)
	return err
}
