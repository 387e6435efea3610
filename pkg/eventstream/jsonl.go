package eventstream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/owliabot/ais-sub001/pkg/enginevents"
)

// EncodeJSONL writes one JSON-encoded record per line, each terminated by
// "\n".
func EncodeJSONL(w io.Writer, record enginevents.Record) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("eventstream: encode failed: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// DecodeJSONL reads newline-delimited records, trimming a trailing newline
// from each line before decoding.
func DecodeJSONL(r io.Reader) ([]enginevents.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []enginevents.Record
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		if line == "" {
			continue
		}
		var rec enginevents.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("eventstream: decode line failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
