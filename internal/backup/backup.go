package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/store"
)

const formatVersion = 1

// maxArchiveSize bounds what Import will read.
const maxArchiveSize = 64 << 20

// Keys copied by Export and restored by Import.
var Keys = []string{
	model.KeyNotifications,
	model.KeyPushToken,
	model.KeyWebPushSub,
}

type archive struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Entries   map[string]string `json:"entries"`
}

// Summary describes an exported or imported archive.
type Summary struct {
	CreatedAt     time.Time
	Keys          []string
	Notifications int
}

// Export writes an encrypted archive of the notification state in kv to w.
// Keys absent from the store are skipped.
func Export(ctx context.Context, kv store.KV, w io.Writer, passphrase string) (Summary, error) {
	a := archive{
		Version:   formatVersion,
		CreatedAt: time.Now().UTC(),
		Entries:   make(map[string]string),
	}
	for _, key := range Keys {
		v, err := kv.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read %s: %w", key, err)
		}
		a.Entries[key] = v
	}

	sum, err := summarize(a)
	if err != nil {
		return Summary{}, err
	}

	plain, err := json.Marshal(a)
	if err != nil {
		return Summary{}, fmt.Errorf("marshal archive: %w", err)
	}
	sealed, err := Seal(plain, passphrase)
	if err != nil {
		return Summary{}, err
	}
	if _, err := w.Write(sealed); err != nil {
		return Summary{}, fmt.Errorf("write archive: %w", err)
	}
	return sum, nil
}

// Import decrypts the archive in r and writes its entries to kv. The
// notification collection is validated before anything is written.
func Import(ctx context.Context, kv store.KV, r io.Reader, passphrase string) (Summary, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxArchiveSize))
	if err != nil {
		return Summary{}, fmt.Errorf("read archive: %w", err)
	}
	plain, err := Open(data, passphrase)
	if err != nil {
		return Summary{}, err
	}

	var a archive
	if err := json.Unmarshal(plain, &a); err != nil {
		return Summary{}, fmt.Errorf("decode archive: %w", err)
	}
	if a.Version != formatVersion {
		return Summary{}, fmt.Errorf("unsupported archive version %d", a.Version)
	}
	sum, err := summarize(a)
	if err != nil {
		return Summary{}, err
	}

	for _, key := range sum.Keys {
		if err := kv.Set(ctx, key, a.Entries[key]); err != nil {
			return Summary{}, fmt.Errorf("restore %s: %w", key, err)
		}
	}
	return sum, nil
}

func summarize(a archive) (Summary, error) {
	sum := Summary{CreatedAt: a.CreatedAt}
	for _, key := range Keys {
		raw, ok := a.Entries[key]
		if !ok {
			continue
		}
		sum.Keys = append(sum.Keys, key)
		if key == model.KeyNotifications {
			var ns []model.Notification
			if err := json.Unmarshal([]byte(raw), &ns); err != nil {
				return Summary{}, fmt.Errorf("notifications entry: %w", err)
			}
			sum.Notifications = len(ns)
		}
	}
	return sum, nil
}
