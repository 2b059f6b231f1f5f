package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// digestInput fingerprints the resolved input together with the tier it is
// judged against, using RFC 8785 canonical JSON.
func digestInput(in resolvedInput, tierID string) (string, error) {
	raw, err := json.Marshal(struct {
		Tier  string        `json:"tier"`
		Input resolvedInput `json:"input"`
	}{Tier: tierID, Input: in})
	if err != nil {
		return "", fmt.Errorf("digest: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("digest: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
