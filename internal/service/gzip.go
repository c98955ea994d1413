package service

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Decompress streams a gzipped shard to a sibling file without the .gz
// suffix and returns the output path. An existing output is rewritten
// from the source, so the call is safely re-invocable. With
// deleteCompressed the input is removed after a successful copy.
// A missing input returns ErrNotFound.
func Decompress(gzPath string, deleteCompressed bool) (string, error) {
	in, err := os.Open(gzPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", gzPath, ErrNotFound)
		}
		return "", err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("failed to open gzip stream %s: %w", gzPath, err)
	}
	defer gz.Close()

	outPath := strings.TrimSuffix(gzPath, ".gz")
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		if rerr := os.Remove(outPath); rerr != nil {
			log.Printf("failed to remove partial output %s: %v", outPath, rerr)
		}
		return "", fmt.Errorf("failed to decompress %s: %w", gzPath, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if deleteCompressed {
		in.Close()
		if err := os.Remove(gzPath); err != nil {
			return "", err
		}
	}
	return outPath, nil
}
