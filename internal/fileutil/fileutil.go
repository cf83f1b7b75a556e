// Package fileutil provides the small filesystem primitives used by the
// agent: artifact removal, work-directory bookkeeping, and log collection.
package fileutil

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile returns the contents of filename.
func ReadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return data, nil
}

// WriteFile writes contents to filename, creating parent directories as needed.
func WriteFile(filename string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", filename, err)
	}
	if err := os.WriteFile(filename, contents, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// ReadJSON decodes the JSON document in filename into v.
func ReadJSON(filename string, v any) error {
	data, err := ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json %s: %w", filename, err)
	}
	return nil
}

// WriteJSON encodes v as JSON and writes it to filename.
func WriteJSON(filename string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json for %s: %w", filename, err)
	}
	return WriteFile(filename, data)
}

// Remove deletes a single file. Removing an already-absent file is not an
// error: cleanup is idempotent.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveFiles deletes the named files under workdir, returning the number
// removed. Per-file failures are collected but do not stop the sweep.
func RemoveFiles(workdir string, names []string) (int, error) {
	removed := 0
	var errs []string
	for _, name := range names {
		path := filepath.Join(workdir, name)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, err.Error())
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("remove files in %s: %s", workdir, strings.Join(errs, "; "))
	}
	return removed, nil
}

// Copy copies the file at src to dst, preserving the mode bits.
func Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// Tail returns the last n lines of the file, for surfacing worker log context
// in failure reports.
func Tail(filename string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	data, err := ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// FileSize returns the size of the file in bytes.
func FileSize(filename string) (int64, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filename, err)
	}
	return info.Size(), nil
}

// DirSize returns the total size in bytes of the regular files under dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, ierr := d.Info()
			if ierr != nil {
				return ierr
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	return total, nil
}

// TarDirectory archives dir into a gzipped tarball at dst, skipping any file
// whose base name appears in exclude.
func TarDirectory(dir, dst string, exclude []string) error {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[name] = struct{}{}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, skip := excluded[d.Name()]; skip {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		hdr, herr := tar.FileInfoHeader(info, "")
		if herr != nil {
			return herr
		}
		hdr.Name = rel
		if werr := tw.WriteHeader(hdr); werr != nil {
			return werr
		}
		f, oerr := os.Open(path)
		if oerr != nil {
			return oerr
		}
		_, cerr := io.Copy(tw, f)
		f.Close()
		return cerr
	})
	if walkErr != nil {
		return fmt.Errorf("archive %s: %w", dir, walkErr)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar %s: %w", dst, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalize gzip %s: %w", dst, err)
	}
	return nil
}
