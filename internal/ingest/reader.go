package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadNDJSON decodes a stream of newline-delimited JSON perspective
// records. Blank lines are skipped; a malformed line fails the whole
// read since a truncated feed file should not be half-imported.
func ReadNDJSON(r io.Reader) ([]RawPerspectiveRecord, error) {
	var records []RawPerspectiveRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec RawPerspectiveRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("decoding feed line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	return records, nil
}

// ReadFeedFile loads a single NDJSON feed file from disk.
func ReadFeedFile(path string) ([]RawPerspectiveRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feed file: %w", err)
	}
	defer f.Close()

	return ReadNDJSON(f)
}

// ListFeedFiles returns the feed files for one provider under the feed
// directory, oldest first. Feed files are named <provider>_*.ndjson by
// the scrapers.
func ListFeedFiles(dir, providerID string) ([]string, error) {
	pattern := filepath.Join(dir, providerID+"_*.ndjson")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing feed files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
