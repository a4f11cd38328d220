package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
// The version suffix leaves room for algorithm migration.
const (
	DomainDocument  = "akl/document/v1"
	DomainNameTable = "akl/names/v1"
	DomainOutput    = "akl/output/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint canonically marshals v and hashes it under domain.
func Fingerprint(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// DocumentHash identifies an op stream. Two streams with the same hash
// replay to the same store.
func DocumentHash(ops []Op) (string, error) {
	arr := make(IRArray, len(ops))
	for i, op := range ops {
		arr[i] = op.Args()
	}
	return Fingerprint(DomainDocument, arr)
}

// MustDocumentHash is like DocumentHash but panics on error.
// Use only in tests or when ops are known to be valid.
func MustDocumentHash(ops []Op) string {
	h, err := DocumentHash(ops)
	if err != nil {
		panic(err)
	}
	return h
}
