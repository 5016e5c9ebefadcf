package tatara

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const shelfIndexKey = "index.json"

// ShelfEntry is one published artifact on the remote shelf.
type ShelfEntry struct {
	Name     string    `json:"name"`
	Digest   string    `json:"digest"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
}

// uploadArtifacts publishes files from the output directory to the remote
// shelf and updates the index object. Objects are keyed by their blake3
// digest so re-uploading an identical artifact is harmless.
func uploadArtifacts(cfg *Config, paths []string) error {
	client, err := NewShelfClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	index, err := fetchShelfIndex(ctx, client)
	if err != nil {
		colWarn.Printf("Warning: starting a fresh shelf index: %v\n", err)
		index = make(map[string]ShelfEntry)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("artifact %s is a directory; upload the archived form", path)
		}

		digest, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("digest %s: %w", path, err)
		}
		name := filepath.Base(path)
		key := fmt.Sprintf("artifacts/%s/%s", digest[:16], name)

		if existing, ok := index[name]; ok && existing.Digest == digest {
			colArrow.Print("-> ")
			colSuccess.Printf("Shelf already has %s (unchanged)\n", name)
			continue
		}

		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", name)
		if err := client.UploadFile(ctx, key, path); err != nil {
			return err
		}
		index[name] = ShelfEntry{Name: name, Digest: digest, Size: info.Size(), Uploaded: time.Now().UTC()}
	}

	return pushShelfIndex(ctx, client, index)
}

func fetchShelfIndex(ctx context.Context, client *ShelfClient) (map[string]ShelfEntry, error) {
	data, err := client.DownloadObject(ctx, shelfIndexKey)
	if err != nil {
		return nil, err
	}
	var entries []ShelfEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt shelf index: %w", err)
	}
	index := make(map[string]ShelfEntry, len(entries))
	for _, e := range entries {
		index[e.Name] = e
	}
	return index, nil
}

func pushShelfIndex(ctx context.Context, client *ShelfClient, index map[string]ShelfEntry) error {
	entries := make([]ShelfEntry, 0, len(index))
	for _, e := range index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return client.UploadObject(ctx, shelfIndexKey, data)
}
