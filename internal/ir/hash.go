package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "rindel/program/v1"
	DomainTrace   = "rindel/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes the content digest of a compiled program.
// Two programs with the same structure hash identically regardless of the
// source file layout they were compiled from.
func ProgramHash(p ProgramSpec) (string, error) {
	canonical, err := MarshalCanonical(p.Object())
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// TraceDigest computes a digest over an ordered list of stream writes.
// Running the same edits and input events twice from a fresh runtime must
// produce the same digest.
func TraceDigest(writes []StreamWrite) (string, error) {
	arr := make(IRArray, len(writes))
	for i, w := range writes {
		arr[i] = w.Object()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustTraceDigest is like TraceDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTraceDigest(writes []StreamWrite) string {
	d, err := TraceDigest(writes)
	if err != nil {
		panic(err)
	}
	return d
}
