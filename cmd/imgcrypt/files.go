package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const (
	digestExt = ".sha256"
	parityExt = ".par"
)

// writeFile creates the parent directory of path if needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// writeDigest stores digest in sha256sum format next to the artifact.
func writeDigest(path, digest, artifactPath string) error {
	return writeFile(path, []byte(fmt.Sprintf("%s  %s\n", digest, filepath.Base(artifactPath))))
}

// resolveDigest returns the digest given on the command line, or the first
// field of the digest file.
func resolveDigest(digest, digestPath string) (string, error) {
	if digest != "" {
		return digest, nil
	}
	data, err := os.ReadFile(digestPath)
	if err != nil {
		return "", fmt.Errorf("no --hash given and digest file unreadable: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", errors.New("digest file " + digestPath + " is empty")
	}
	return fields[0], nil
}

// acmRounds narrows the --iterations flag to the 32 bits the metadata stores.
func acmRounds(n uint) (uint32, error) {
	if uint64(n) > math.MaxUint32 {
		return 0, fmt.Errorf("acm iterations %d exceed 32 bits", n)
	}
	return uint32(n), nil
}
