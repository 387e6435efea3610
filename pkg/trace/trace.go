// Package trace redacts engine event records for persistence under Off,
// Default, and Audit modes (spec §4.K). Secret-key matching is grounded on
// the zero-context-lab teacher-adjacent redact package's bounded,
// default-safe regexp approach (internal/redact/redact.go), generalized
// from token-pattern matching to key-name and value-shape matching over an
// arbitrary JSON tree.
package trace

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/owliabot/ais-sub001/pkg/enginevents"
)

// Mode selects the redaction strength applied before a record is persisted.
type Mode string

const (
	Off     Mode = "off"
	Default Mode = "default"
	Audit   Mode = "audit"
)

// Options configures one redaction pass.
type Options struct {
	Mode Mode
	// AllowPathPatterns un-redacts matching event.data.<key>.… paths
	// (prefix match), even under Default/Audit.
	AllowPathPatterns []*regexp.Regexp
}

const redactedPlaceholder = "[REDACTED]"

// secretKeySubstrings are the key-name substrings that mark a field as
// secret regardless of exact key spelling, per spec §4.K.
var secretKeySubstrings = []string{
	"private_key", "mnemonic", "seed_phrase", "seed", "secret", "signature", "raw_tx", "signed_tx",
}

var hex0xPattern = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

const longHexThreshold = 120

// RedactRecord returns a redacted copy of record per opts.Mode. The input
// record is never mutated.
func RedactRecord(record enginevents.Record, opts Options) enginevents.Record {
	if opts.Mode == Off {
		return record
	}

	out := record
	if record.Event.Data != nil {
		out.Event.Data = redactOrderedMap(record.Event.Data, "event.data", opts)
	}
	if record.Event.Extensions != nil {
		out.Event.Extensions = redactOrderedMap(record.Event.Extensions, "event.extensions", opts)
	}
	return out
}

func redactOrderedMap(m *enginevents.OrderedMap, pathPrefix string, opts Options) *enginevents.OrderedMap {
	out := enginevents.NewOrderedMap()
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		path := pathPrefix + "." + key
		out.Set(key, redactValue(key, v, path, opts))
	}
	return out
}

func redactValue(key string, v any, path string, opts Options) any {
	if isAllowed(path, opts) {
		return v
	}

	lowerKey := strings.ToLower(key)
	if isSecretKey(lowerKey) {
		return redactedPlaceholder
	}
	if (lowerKey == "rpc_payload" || lowerKey == "params") && opts.Mode != Audit {
		return redactedPlaceholder
	}

	switch val := v.(type) {
	case string:
		return redactSuspectString(val, opts)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = redactValue(k, nested, path+"."+k, opts)
		}
		return out
	case *enginevents.OrderedMap:
		return redactOrderedMap(val, path, opts)
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = redactValue(key, nested, path, opts)
		}
		return out
	default:
		return v
	}
}

func isSecretKey(lowerKey string) bool {
	for _, substr := range secretKeySubstrings {
		if strings.Contains(lowerKey, substr) {
			return true
		}
	}
	return false
}

func isAllowed(path string, opts Options) bool {
	for _, re := range opts.AllowPathPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func redactSuspectString(s string, opts Options) any {
	lower := strings.ToLower(s)
	suspect := strings.Contains(lower, "private key") ||
		strings.Contains(lower, "seed phrase") ||
		strings.Contains(lower, "mnemonic") ||
		(len(s) > longHexThreshold && hex0xPattern.MatchString(s))

	if !suspect {
		return s
	}

	if opts.Mode == Audit {
		return trimAudit(s)
	}
	return redactedPlaceholder
}

// trimAudit implements Audit mode's "preserve shape, trim content" rule:
// long strings become "<head12>…(len=N)"; short strings pass through.
func trimAudit(s string) string {
	const head = 12
	if len(s) <= head {
		return s
	}
	return s[:head] + "…(len=" + strconv.Itoa(len(s)) + ")"
}
