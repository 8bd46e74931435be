package index

import (
	"bufio"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/dcarrero/mboxshell-go/config"
	"github.com/dcarrero/mboxshell-go/internal/logging"
	"github.com/dcarrero/mboxshell-go/mail"
	"github.com/dcarrero/mboxshell-go/mboxerr"
	"github.com/dcarrero/mboxshell-go/parser"
)

// hashPrefixSize is how much of the archive's head is hashed for the
// staleness check: full-file hashing would defeat the point of caching an
// index for a multi-gigabyte archive, and content at the very front
// changes whenever anything earlier in the file does.
const hashPrefixSize = 4 << 10 // 4 KiB

// Build scans archivePath from scratch via the streaming header parser and
// writes a fresh index file next to the archive, falling back to the
// configured (or OS default) cache directory if that write fails — a
// read-only archive directory is common enough that losing the index
// entirely on such a failure would be wrong. A write failure at both
// locations is logged but never fails the call: the in-memory records are
// still returned.
func Build(archivePath string, cfg config.Config, progress parser.ProgressFunc) ([]mail.Record, error) {
	log := logging.WithComponent("index")

	p, err := parser.Open(archivePath, cfg)
	if err != nil {
		return nil, err
	}

	var records []mail.Record
	var seq uint64

	_, err = p.ScanHeaders(func(offset, length uint64, headerBlock []byte) bool {
		h := parser.ParseHeaderBlock(headerBlock)
		rec := parser.BuildRecord(h, offset, length, seq)
		records = append(records, rec)
		seq++
		return true
	}, progress)
	if err != nil {
		return nil, err
	}

	hash, err := sha256First4KiB(archivePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, mboxerr.New(mboxerr.ArchiveIO, archivePath, err)
	}

	adjacent := adjacentPath(archivePath)
	if err := write(adjacent, records, uint64(info.Size()), info.ModTime().Unix(), hash); err != nil {
		log.Warn().Err(err).Str("path", adjacent).Msg("failed to write index next to archive, falling back to cache dir")

		cache := cachePath(archivePath, cfg)
		if err := write(cache, records, uint64(info.Size()), info.ModTime().Unix(), hash); err != nil {
			log.Warn().Err(err).Str("path", cache).Msg("failed to write index cache copy, continuing without a persisted index")
		}
	}

	log.Info().Str("archive", archivePath).Int("messages", len(records)).
		Str("archiveSize", humanize.Bytes(uint64(info.Size()))).Msg("built index")
	return records, nil
}

// Load returns the records for archivePath, reusing an on-disk index when
// one is present and not stale: the adjacent index is tried first, then
// the cache-directory fallback. forceRebuild skips the reuse check
// entirely. A stale or corrupt index is logged and transparently rebuilt;
// callers never see IndexStale/IndexCorrupt unless the rebuild itself
// fails.
func Load(archivePath string, cfg config.Config, forceRebuild bool, progress parser.ProgressFunc) ([]mail.Record, error) {
	log := logging.WithComponent("index")

	info, err := os.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mboxerr.New(mboxerr.MissingArchive, archivePath, err)
		}
		return nil, mboxerr.New(mboxerr.ArchiveIO, archivePath, err)
	}

	if !forceRebuild {
		if records, ok := tryLoadAnyIndex(archivePath, cfg, info, log); ok {
			return records, nil
		}
	}

	return Build(archivePath, cfg, progress)
}

// tryLoadAnyIndex tries the adjacent index path, then the cache-directory
// fallback. A missing or unreadable index moves on to the next location;
// the first one that parses decides the result: its records if it is
// current, or ok=false (no further location tried) if it is stale.
func tryLoadAnyIndex(archivePath string, cfg config.Config, archiveInfo os.FileInfo, log zerolog.Logger) ([]mail.Record, bool) {
	for _, idxPath := range []string{adjacentPath(archivePath), cachePath(archivePath, cfg)} {
		records, stale, loadErr := loadFromFile(idxPath, archivePath, archiveInfo)
		switch {
		case loadErr == nil && !stale:
			return records, true
		case loadErr == nil && stale:
			log.Info().Str("archive", archivePath).Str("index", idxPath).Msg("index stale, rebuilding")
			return nil, false
		case os.IsNotExist(loadErr):
			continue
		default:
			log.Warn().Err(loadErr).Str("archive", archivePath).Str("index", idxPath).Msg("index unreadable, trying next location")
		}
	}
	return nil, false
}

// loadFromFile reads and validates an existing index file. stale is true
// when the header parses fine but no longer matches the archive's current
// size/mtime/content-hash.
func loadFromFile(idxPath, archivePath string, archiveInfo os.FileInfo) (records []mail.Record, stale bool, err error) {
	f, err := os.Open(idxPath)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		return nil, false, mboxerr.New(mboxerr.IndexCorrupt, idxPath, err)
	}

	h, err := unmarshalHeader(headerBuf)
	if err != nil {
		return nil, false, mboxerr.New(mboxerr.IndexCorrupt, idxPath, err)
	}
	if h.Version != formatVersion {
		return nil, false, mboxerr.New(mboxerr.IndexCorrupt, idxPath, errors.New("version mismatch"))
	}

	var recs []mail.Record
	if err := gob.NewDecoder(f).Decode(&recs); err != nil {
		return nil, false, mboxerr.New(mboxerr.IndexCorrupt, idxPath, err)
	}

	if h.MessageCount != uint64(len(recs)) {
		return nil, false, mboxerr.New(mboxerr.IndexCorrupt, idxPath, errors.New("message count disagrees with deserialized records"))
	}

	if h.FileSize != uint64(archiveInfo.Size()) || h.MTimeUnix != archiveInfo.ModTime().Unix() {
		return recs, true, nil
	}

	hash, hashErr := sha256First4KiB(archivePath)
	if hashErr != nil {
		return recs, true, nil
	}
	if hash != h.Hash {
		return recs, true, nil
	}

	return recs, false, nil
}

// write serializes header+records to idxPath, replacing any existing file.
func write(idxPath string, records []mail.Record, fileSize uint64, mtimeUnix int64, hash [32]byte) error {
	if err := os.MkdirAll(filepath.Dir(idxPath), 0o755); err != nil {
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}

	tmp := idxPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}

	h := newHeader(uint64(len(records)), fileSize, mtimeUnix, hash)
	headerBytes, err := h.marshal()
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	bw := bufio.NewWriter(f)
	if _, err := bw.Write(headerBytes); err != nil {
		f.Close()
		os.Remove(tmp)
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}
	if err := gob.NewEncoder(bw).Encode(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}

	if err := os.Rename(tmp, idxPath); err != nil {
		os.Remove(tmp)
		return mboxerr.New(mboxerr.ArchiveIO, idxPath, err)
	}
	return nil
}

// sha256First4KiB hashes up to the first hashPrefixSize bytes of path.
func sha256First4KiB(path string) ([32]byte, error) {
	var out [32]byte

	f, err := os.Open(path)
	if err != nil {
		return out, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, f, hashPrefixSize); err != nil && err != io.EOF {
		return out, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}

	copy(out[:], h.Sum(nil))
	return out, nil
}

// PathFor returns the path this module tries first for archivePath's
// index: a hidden file next to the archive itself.
func PathFor(archivePath string, cfg config.Config) string {
	return adjacentPath(archivePath)
}

// CachePathFor returns the cache-directory fallback path for archivePath,
// used when the adjacent location can't be written (read-only archive
// directory, permissions, …).
func CachePathFor(archivePath string, cfg config.Config) string {
	return cachePath(archivePath, cfg)
}

// adjacentPath is "<dir>/.<basename>.mboxshell.idx": hidden, and keyed only
// by basename since it lives beside the archive it indexes.
func adjacentPath(archivePath string) string {
	dir := filepath.Dir(archivePath)
	base := filepath.Base(archivePath)
	return filepath.Join(dir, "."+base+".mboxshell.idx")
}

// cachePath is "<cache_root>/mboxshell/<sha256_hex(abs_path)>.idx": keyed
// by the archive's absolute path so two archives sharing a basename never
// collide once they fall back to a shared cache directory.
func cachePath(archivePath string, cfg config.Config) string {
	root := cfg.CacheDir
	if root == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			root = dir
		} else {
			root = os.TempDir()
		}
	}

	abs, err := filepath.Abs(archivePath)
	if err != nil {
		abs = archivePath
	}
	sum := sha256.Sum256([]byte(abs))
	name := hex.EncodeToString(sum[:]) + ".idx"
	return filepath.Join(root, "mboxshell", name)
}

// FileSize stats path and returns its size in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}
	return info.Size(), nil
}
