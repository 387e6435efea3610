// Package canonicaljson provides deterministic JSON serialization and
// stable hashing shared across this module: the runtime patch audit, the
// policy gate's confirmation hash, the plan hash, and the fake executors'
// outputs all hash through here so that "same logical value, same bytes"
// holds regardless of map iteration order or struct field order.
package canonicaljson

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// Options controls canonicalization behavior.
type Options struct {
	// IgnoreObjectKeys are key names dropped at every depth of every object
	// before canonicalization, e.g. {"ts", "timestamp"} for hash stability
	// across time-varying fields.
	IgnoreObjectKeys map[string]bool
}

// Ignore builds an Options with the given ignored key names.
func Ignore(keys ...string) Options {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return Options{IgnoreObjectKeys: m}
}

// CanonicalBytes returns the canonical JSON encoding of v: object keys
// sorted lexicographically at every depth (via RFC 8785 JCS), array order
// preserved, and any key in options.IgnoreObjectKeys dropped at every depth
// before canonicalization.
func CanonicalBytes(v interface{}, opts Options) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: marshal failed: %w", err)
	}

	if len(opts.IgnoreObjectKeys) > 0 {
		var generic interface{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return nil, fmt.Errorf("canonicaljson: decode failed: %w", err)
		}
		pruned := pruneKeys(generic, opts.IgnoreObjectKeys)
		raw, err = marshalStable(pruned)
		if err != nil {
			return nil, fmt.Errorf("canonicaljson: re-marshal after prune failed: %w", err)
		}
	}

	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: jcs transform failed: %w", err)
	}
	return canon, nil
}

// StableHashHex returns lowercase hex SHA-256 of CanonicalBytes(v, opts).
func StableHashHex(v interface{}, opts Options) (string, error) {
	b, err := CanonicalBytes(v, opts)
	if err != nil {
		return "", err
	}
	return HashHex(b), nil
}

// HashHex hashes raw bytes with SHA-256 and returns the lowercase hex digest.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// pruneKeys recursively removes any object key present in ignore, at every
// depth, from a json.Number-decoded generic value.
func pruneKeys(v interface{}, ignore map[string]bool) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if ignore[k] {
				continue
			}
			out[k] = pruneKeys(val, ignore)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, elem := range t {
			out[i] = pruneKeys(elem, ignore)
		}
		return out
	default:
		return v
	}
}

// marshalStable re-encodes a json.Number-decoded generic value back to JSON
// bytes without disturbing number precision, ahead of the final JCS pass.
func marshalStable(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeGeneric(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeGeneric(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case json.Number:
		buf.WriteString(t.String())
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeGeneric(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeGeneric(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
