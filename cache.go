package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/thiremani/lattice/engine"
)

const (
	IR_DIR    = "ir"
	IR_SUFFIX = ".ll"
	HASH_FILE = ".hash"
	LOCK_FILE = ".lock"

	// Old module directories are removed only past keepModules and once
	// older than moduleMinAge.
	keepModules  = 16
	moduleMinAge = 7 * 24 * 60 * 60
)

// defaultCache returns LATTICE_CACHE if it is set, otherwise the per-user
// cache directory for the host OS.
func defaultCache() string {
	if env := os.Getenv("LATTICE_CACHE"); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "lattice")
		}
		return filepath.Join(homeDir, "AppData", "Local", "lattice")
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", "lattice")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "lattice")
		}
		return filepath.Join(homeDir, ".cache", "lattice")
	}
}

// isHashDir returns true if name is an 8-char hex string (matches shortHash format).
func isHashDir(name string) bool {
	if len(name) != 8 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

// moduleHash hashes the textual module together with everything that
// changes how it is code generated on this host.
func moduleHash(text string, opts engine.Options) (shortHash, fullHash string) {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte(runtime.GOOS))
	h.Write([]byte(runtime.GOARCH))
	h.Write([]byte(engine.HostFeatures()))
	fmt.Fprintf(h, "O%d vectorize=%t", opts.OptLevel, opts.Vectorize)
	fullHash = hex.EncodeToString(h.Sum(nil))
	return fullHash[:8], fullHash
}

// cleanupOldModules removes old module hash directories. It keeps at least
// keep of the most recent and never removes one younger than minAge
// seconds, since a concurrent process may still be reading it.
func cleanupOldModules(irDir string, keep int, minAge int64) {
	entries, err := os.ReadDir(irDir)
	if err != nil || len(entries) <= keep {
		return
	}

	type dirInfo struct {
		name  string
		mtime int64
	}
	var dirs []dirInfo
	for _, e := range entries {
		if e.IsDir() && isHashDir(e.Name()) {
			if info, err := e.Info(); err == nil {
				dirs = append(dirs, dirInfo{e.Name(), info.ModTime().Unix()})
			}
		}
	}
	if len(dirs) <= keep {
		return
	}

	cutoff := time.Now().Unix() - minAge
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mtime < dirs[j].mtime })
	for i := 0; i < len(dirs)-keep; i++ {
		if dirs[i].mtime < cutoff {
			path := filepath.Join(irDir, dirs[i].name)
			if err := os.RemoveAll(path); err != nil {
				fmt.Printf("warning: failed to remove old module %s: %v\n", path, err)
			}
		}
	}
}

// cacheModule writes the textual module text for program name under a
// directory named by its hash and returns the path of the .ll file. A
// module already in the cache is reused. The cache lock makes concurrent
// processes see either a complete directory or none.
func cacheModule(cacheDir, name, text string, opts engine.Options) (path string, cached bool, err error) {
	irDir := filepath.Join(cacheDir, IR_DIR)
	if err := os.MkdirAll(irDir, 0755); err != nil {
		return "", false, errors.Wrap(err, "create ir dir")
	}

	lock := flock.New(filepath.Join(irDir, LOCK_FILE))
	if err := lock.Lock(); err != nil {
		return "", false, errors.Wrap(err, "acquire cache lock")
	}
	defer lock.Unlock()

	shortHash, fullHash := moduleHash(text, opts)
	modDir := filepath.Join(irDir, shortHash)
	path = filepath.Join(modDir, name+IR_SUFFIX)
	hashFile := filepath.Join(modDir, HASH_FILE)

	if stored, err := os.ReadFile(hashFile); err == nil {
		if _, statErr := os.Stat(path); statErr == nil && string(stored) == fullHash {
			return path, true, nil
		}
		// Hash collision or an interrupted write.
		if err := os.RemoveAll(modDir); err != nil {
			return "", false, errors.Wrapf(err, "remove stale %s", modDir)
		}
	}

	cleanupOldModules(irDir, keepModules, moduleMinAge)

	if err := os.MkdirAll(modDir, 0755); err != nil {
		return "", false, errors.Wrapf(err, "create %s", modDir)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", false, errors.Wrapf(err, "write %s", path)
	}
	// Written last: marks the directory complete.
	if err := os.WriteFile(hashFile, []byte(fullHash), 0644); err != nil {
		return "", false, errors.Wrap(err, "write hash file")
	}
	return path, false, nil
}
