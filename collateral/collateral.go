/*
Package collateral converts Intel PCS collateral (QE Identity and TCB Info
JSON documents) into Cairo source definitions for embedding as test data.

The generators perform no signature verification; they are strictly a format
conversion. They do refuse collateral whose nextUpdate has passed, so stale
documents are not baked into source trees unnoticed.
*/
package collateral

import (
	"encoding/hex"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// Generator converts collateral JSON documents to Cairo source.
type Generator struct {
	clock clock.PassiveClock
}

// NewGenerator returns a Generator using the system clock.
func NewGenerator() *Generator {
	return &Generator{clock: clock.RealClock{}}
}

// checkFreshness rejects collateral that is past its next scheduled update.
func (g *Generator) checkFreshness(nextUpdate time.Time) error {
	if now := g.clock.Now(); now.After(nextUpdate) {
		return fmt.Errorf("collateral expired: nextUpdate %s is before current time %s",
			nextUpdate.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}

// parseTime parses the RFC 3339 timestamps used throughout PCS collateral.
func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

// decodeHex decodes a hex-encoded collateral field.
func decodeHex(field, value string) ([]byte, error) {
	out, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", field, err)
	}
	return out, nil
}

// tcbDateVar derives the Cairo variable name for a TCB date let binding.
func tcbDateVar(t time.Time) string {
	return fmt.Sprintf("tcb_date_%d_%02d_%02d", t.Year(), int(t.Month()), t.Day())
}
