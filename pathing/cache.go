package pathing

import (
	"bufio"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrFingerprintMismatch is returned by LoadTable when the cached table was
// computed for a different grid.
var ErrFingerprintMismatch = errors.New("distance table fingerprint mismatch")

type tableFile struct {
	Fingerprint string
	Rows        int
	Cols        int
	Dist        []DistType
}

// Fingerprint hashes the grid shape and passability.
func Fingerprint(rows, cols int, passable []bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%dx%d:", rows, cols)
	buf := make([]byte, len(passable))
	for i, p := range passable {
		if p {
			buf[i] = 1
		}
	}
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}

// CachePath names the cache file for a grid inside dir.
func CachePath(dir string, rows, cols int, passable []bool) string {
	fp := Fingerprint(rows, cols, passable)
	return filepath.Join(dir, "dist-"+fp[:16]+".gob.zst")
}

// SaveTable writes the computed table to path as zstd-compressed gob.
func (f *Finder) SaveTable(path string, passable []bool) error {
	if !f.computed {
		return errors.New("distance table not computed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	tf := tableFile{
		Fingerprint: Fingerprint(f.rows, f.cols, passable),
		Rows:        f.rows,
		Cols:        f.cols,
		Dist:        f.dist,
	}
	if err := gob.NewEncoder(bw).Encode(&tf); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// LoadTable fills the finder from a file written by SaveTable. The stored
// fingerprint must match passable, otherwise ErrFingerprintMismatch is
// returned and the finder is left untouched.
func (f *Finder) LoadTable(path string, passable []bool) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return err
	}
	defer dec.Close()

	var tf tableFile
	if err := gob.NewDecoder(bufio.NewReaderSize(dec, 256*1024)).Decode(&tf); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	if tf.Fingerprint != Fingerprint(f.rows, f.cols, passable) || tf.Rows != f.rows || tf.Cols != f.cols {
		return ErrFingerprintMismatch
	}
	if len(tf.Dist) != f.Cells()*f.Cells() {
		return fmt.Errorf("distance table has %d entries, want %d", len(tf.Dist), f.Cells()*f.Cells())
	}
	f.dist = tf.Dist
	f.computed = true
	return nil
}

// LoadOrCompute tries the cache in dir first and falls back to
// ComputeAllPairs, writing the result back. An empty dir disables caching.
func (f *Finder) LoadOrCompute(dir string, passable []bool) (cached bool) {
	if dir == "" {
		f.ComputeAllPairs(passable)
		return false
	}
	path := CachePath(dir, f.rows, f.cols, passable)
	if err := f.LoadTable(path, passable); err == nil {
		return true
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Warn("distance cache unusable, recomputing", "path", path, "error", err)
	}
	f.ComputeAllPairs(passable)
	if err := f.SaveTable(path, passable); err != nil {
		slog.Warn("could not write distance cache", "path", path, "error", err)
	}
	return false
}
