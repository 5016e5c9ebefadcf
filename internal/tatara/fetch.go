package tatara

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"lukechampine.com/blake3"
)

const fetchRetries = 3

// fetchRetryDelay scales the backoff between attempts; shortened in tests.
var fetchRetryDelay = 2 * time.Second

// httpClient is shared by all component downloads. Fetches are large but
// resumable work is not attempted; a generous timeout covers base snapshots.
var httpClient = &http.Client{Timeout: 30 * time.Minute}

// hashString content-addresses a download cache entry.
func hashString(s string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// hashFile computes the blake3 digest of a file on disk.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// withDownloadLock serializes concurrent fetchers of the same cache entry
// across processes.
func withDownloadLock(path string, fn func() error) error {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}

// fetchComponent downloads a pinned external component into the download
// cache, keyed by blake3(url|version). Repeat fetches are cache hits. The
// retrieval is retried a bounded number of times (transient network faults);
// exhausting retries surfaces a FetchError. Swapped in tests.
var fetchComponent = func(url, version string) (string, error) {
	name := fmt.Sprintf("%s-%s", hashString(url+"|"+version)[:16], filepath.Base(url))
	dest := filepath.Join(downloadDir, name)

	err := withDownloadLock(dest, func() error {
		if _, err := os.Stat(dest); err == nil {
			debugf("download cache hit for %s\n", url)
			return nil
		}

		var lastErr error
		for attempt := 1; attempt <= fetchRetries; attempt++ {
			if attempt > 1 {
				colArrow.Print("-> ")
				colWarn.Printf("Retrying download (%d/%d): %s\n", attempt, fetchRetries, url)
				time.Sleep(time.Duration(attempt) * fetchRetryDelay)
			}
			if lastErr = downloadFile(url, dest); lastErr == nil {
				return nil
			}
			_ = os.Remove(dest + ".part")
		}
		return lastErr
	})
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	return dest, nil
}

// downloadFile streams a URL into the cache, writing a .part file first so a
// torn download never masquerades as a completed entry.
func downloadFile(url, dest string) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(dest))
	_, err = io.Copy(io.MultiWriter(out, bar), resp.Body)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(part)
		return err
	}
	if closeErr != nil {
		_ = os.Remove(part)
		return closeErr
	}
	return os.Rename(part, dest)
}

// verifyPinnedDigest checks a fetched component against its pinned blake3
// digest when one is configured. An empty pin skips verification.
func verifyPinnedDigest(path, pinned string) error {
	if pinned == "" {
		return nil
	}
	got, err := hashFile(path)
	if err != nil {
		return err
	}
	if got != pinned {
		return fmt.Errorf("digest mismatch for %s: got %s, pinned %s", filepath.Base(path), got, pinned)
	}
	return nil
}
