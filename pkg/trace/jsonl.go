package trace

import (
	"encoding/json"

	"github.com/owliabot/ais-sub001/pkg/enginevents"
)

// EncodeTraceJSONLLine implements spec §4.K's encode_trace_jsonl_line:
// redact record under opts, then JSON-encode it with a trailing newline.
func EncodeTraceJSONLLine(record enginevents.Record, opts Options) ([]byte, error) {
	redacted := RedactRecord(record, opts)
	b, err := json.Marshal(redacted)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
