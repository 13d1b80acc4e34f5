package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainInstrument = "restage/instrument/v1"
	DomainPoint      = "restage/point/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies instrument source text. Two sources share a
// fingerprint exactly when their bytes are identical.
func Fingerprint(source string) string {
	return hashWithDomain(DomainInstrument, []byte(source))
}

// PointKey identifies a query point within one result table. It is used to
// collapse concurrent identical requests, so seed, count and gravitation are
// part of the key.
func PointKey(tableID string, q Record) (string, error) {
	obj := map[string]any{
		"table":       tableID,
		"point":       q.Point,
		"gravitation": q.Gravitation,
		"count":       q.Count,
	}
	if q.Seed != nil {
		obj["seed"] = *q.Seed
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PointKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPoint, canonical), nil
}
