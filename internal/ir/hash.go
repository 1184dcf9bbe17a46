package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the encoding to change later.
const (
	DomainProgram = "tensorcheck/program/v1"
	DomainSite    = "tensorcheck/site/v1"
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

// ProgramHash computes the content hash of a program. Two programs with
// the same buffers, parameters and loop nest hash identically.
func ProgramHash(p *Program) (string, error) {
	canonical, err := MarshalCanonical(EncodeProgram(p))
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// SiteID computes the identity of one access dimension within a program.
// path is the access's position in the loop nest (see walker.Access.Path).
func SiteID(programHash, path string, dim int) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"program": programHash,
		"path":    path,
		"dim":     int64(dim),
	})
	if err != nil {
		return "", fmt.Errorf("SiteID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSite, canonical), nil
}
