package engine

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
)

// Fingerprint is an opaque, equality-comparable digest of a file's
// relevant state: byte size plus a CRC32 Castagnoli hash over the full
// content. Equal fingerprints mean the content is treated as unchanged.
// Modification time is deliberately not an input: it is too coarse and
// unstable across checkouts, CI caches, and clock skew.
type Fingerprint string

// crcTable is pre-computed for faster hash generation.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// fingerprintBytes digests content that has already been read.
func fingerprintBytes(content []byte) Fingerprint {
	sum := crc32.Checksum(content, crcTable)
	return Fingerprint(fmt.Sprintf("%d:%08x", len(content), sum))
}

// FingerprintFile reads path and returns its fingerprint. The result is
// deterministic across runs and processes for the same bytes.
func FingerprintFile(path string) (Fingerprint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return fingerprintBytes(content), nil
}

// configDigest is the canonical form hashed into the config fingerprint.
// Slices are sorted copies so that option ordering never affects the
// digest.
type configDigest struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	ExcludeDirs     []string `json:"exclude_dirs"`
	IncludeExts     []string `json:"include_extensions"`
	IncludeNames    []string `json:"include_names"`
	MaxFileSize     int64    `json:"max_file_size"`
	MaxTextFileSize int64    `json:"max_text_file_size"`
	Tunables        []string `json:"tunables"`
}

// ConfigFingerprint digests the analyzer's tunables. A stored cache whose
// config fingerprint differs from the current one is discarded wholesale.
func ConfigFingerprint(name string, opts Options) string {
	digest := configDigest{
		Name:            name,
		Version:         opts.Version,
		ExcludeDirs:     sortedCopy(opts.ExcludeDirs),
		IncludeExts:     sortedCopy(opts.IncludeExts),
		IncludeNames:    sortedCopy(opts.IncludeNames),
		MaxFileSize:     opts.MaxFileSize,
		MaxTextFileSize: opts.MaxTextFileSize,
		Tunables:        sortedCopy(opts.Tunables),
	}

	encoded, err := json.Marshal(digest)
	if err != nil {
		// Marshaling a struct of strings and ints cannot fail; keep a
		// deterministic fallback anyway.
		encoded = []byte(name + opts.Version)
	}

	return fmt.Sprintf("%08x", crc32.Checksum(encoded, crcTable))
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
