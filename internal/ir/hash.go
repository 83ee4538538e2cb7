package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainPlan = "compgroup/plan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanDigest hashes the externally visible content of a reconciliation plan:
// the group computation, the computations to dispose and the excluded
// series. A dry run and a later live run over an unchanged database print
// the same digest, which lets an operator confirm they are applying the plan
// they reviewed.
func PlanDigest(compID Key, dispose []Key, exclude []TSID) (string, error) {
	disposeIDs := make([]any, len(dispose))
	for i, k := range dispose {
		disposeIDs[i] = k
	}
	excluded := make([]string, len(exclude))
	for i, t := range exclude {
		excluded[i] = t.UniqueString()
	}

	canonical, err := MarshalCanonical(map[string]any{
		"comp_id": compID,
		"dispose": disposeIDs,
		"exclude": excluded,
	})
	if err != nil {
		return "", fmt.Errorf("PlanDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}
