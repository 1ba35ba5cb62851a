package uploader

import (
	"context"
	"crypto/sha1" //nolint:gosec // digest format fixed by the device
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Upload copies a local file or directory tree to the device. Directories
// are created on the device before their contents are written.
func (u *Uploader) Upload(ctx context.Context, from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if !info.IsDir() {
		return u.uploadFile(ctx, from, to)
	}

	if err := u.CreateDirectory(ctx, to); err != nil {
		return err
	}
	return u.uploadContents(ctx, from, to)
}

// Push uploads the contents of the local directory from into the device
// directory to, without creating to itself.
func (u *Uploader) Push(ctx context.Context, from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if !info.IsDir() {
		return &PreconditionError{Op: "push", Path: from, Reason: "not a directory"}
	}
	return u.uploadContents(ctx, from, to)
}

func (u *Uploader) uploadContents(ctx context.Context, from, to string) error {
	entries, err := os.ReadDir(from)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	for _, e := range entries {
		if err := u.Upload(ctx, filepath.Join(from, e.Name()), path.Join(to, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, from, to string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	u.logger.Info("uploading file", map[string]any{"from": from, "to": to, "size": len(data)})
	return u.WriteFile(ctx, to, data)
}

// Pull copies the device directory from into the local directory to.
// It refuses to write into an existing non-empty local directory.
func (u *Uploader) Pull(ctx context.Context, from, to string) error {
	if entries, err := os.ReadDir(to); err == nil && len(entries) > 0 {
		return &PreconditionError{Op: "pull", Path: to, Reason: "directory is not empty"}
	}
	return u.pull(ctx, from, to)
}

func (u *Uploader) pull(ctx context.Context, from, to string) error {
	if err := os.MkdirAll(to, 0o755); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	entries, err := u.ListDirectory(ctx, from)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := path.Join(from, e.Name)
		dst := filepath.Join(to, e.Name)
		if e.IsDir {
			if err := u.pull(ctx, src, dst); err != nil {
				return err
			}
			continue
		}
		data, err := u.ReadFile(ctx, src)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
	}
	return nil
}

// SyncResult lists what UploadIfDifferent changed, as paths relative to
// the device directory.
type SyncResult struct {
	Written   []string `json:"written" yaml:"written"`
	Deleted   []string `json:"deleted" yaml:"deleted"`
	Unchanged []string `json:"unchanged" yaml:"unchanged"`
}

// UploadIfDifferent makes the device directory to mirror the local
// directory from. Only files whose SHA-1 digest differs are written;
// device files with no local counterpart are deleted.
func (u *Uploader) UploadIfDifferent(ctx context.Context, from, to string) (SyncResult, error) {
	var result SyncResult

	info, err := os.Stat(from)
	if err != nil {
		return result, fmt.Errorf("sync: %w", err)
	}
	if !info.IsDir() {
		return result, &PreconditionError{Op: "sync", Path: from, Reason: "not a directory"}
	}

	remote := map[string]string{}
	hashes, err := u.GetDirHashes(ctx, to)
	switch code, isCmd := CodeOf(err); {
	case err == nil:
		for _, h := range hashes {
			remote[h.Name] = h.SHA1
		}
	case isCmd && code == NotFound:
		if err := u.CreateDirectory(ctx, to); err != nil {
			return result, err
		}
	default:
		return result, err
	}

	remoteDirs := map[string]bool{}
	for name := range remote {
		for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
			remoteDirs[dir] = true
		}
	}

	local := map[string]bool{}
	err = filepath.WalkDir(from, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		dst := path.Join(to, rel)

		if d.IsDir() {
			if remoteDirs[rel] {
				return nil
			}
			return u.CreateDirectory(ctx, dst)
		}

		local[rel] = true
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		sum := sha1.Sum(data) //nolint:gosec // digest format fixed by the device
		if remote[rel] == hex.EncodeToString(sum[:]) {
			result.Unchanged = append(result.Unchanged, rel)
			return nil
		}
		u.logger.Info("uploading changed file", map[string]any{"path": dst, "size": len(data)})
		if err := u.WriteFile(ctx, dst, data); err != nil {
			return err
		}
		result.Written = append(result.Written, rel)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("sync: %w", err)
	}

	stale := make([]string, 0, len(remote))
	for name := range remote {
		if !local[name] {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		u.logger.Info("deleting stale file", map[string]any{"path": path.Join(to, name)})
		if err := u.DeleteFile(ctx, path.Join(to, name)); err != nil {
			return result, fmt.Errorf("sync: %w", err)
		}
		result.Deleted = append(result.Deleted, name)
	}
	return result, nil
}
