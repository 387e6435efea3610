// Merkle-rooted trace digest (a supplemented feature beyond spec §4.K):
// one content-addressed root over a run's full redacted event sequence,
// so two traces can be compared for equality without re-reading every
// record, and without requiring the secret-bearing unredacted values. The
// leaf/node domain separation is grounded directly on
// executor/merkle.go's 0x00/0x01-prefixed hashing, adapted from evidence-
// pack leaves to redacted trace-line leaves.
package trace

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/owliabot/ais-sub001/pkg/enginevents"
)

var (
	leafDomainSeparator = []byte{0x00}
	nodeDomainSeparator = []byte{0x01}
)

// Digest computes the Merkle root over a run's trace lines (each line is
// the redacted, JSON-encoded record, matching what EncodeTraceJSONLLine
// would write). Returns "" for an empty trace.
func Digest(records []enginevents.Record, opts Options) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	level := make([][]byte, len(records))
	for i, r := range records {
		line, err := EncodeTraceJSONLLine(r, opts)
		if err != nil {
			return "", err
		}
		level[i] = leafHash(line)
	}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}

	return "sha256:" + hex.EncodeToString(level[0]), nil
}

func leafHash(data []byte) []byte {
	h := sha256.New()
	h.Write(leafDomainSeparator)
	h.Write(data)
	return h.Sum(nil)
}

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write(nodeDomainSeparator)
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
