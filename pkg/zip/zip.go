// Package zip bundles job deliverables into a single archive.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one file added to a bundle.
type Entry struct {
	// Name is the path inside the archive.
	Name string
	// Path is the file on disk.
	Path string
}

// Media is already compressed; deflating it again only costs CPU.
var storedExtensions = map[string]struct{}{
	".mp4": {},
	".jpg": {},
	".png": {},
}

// Write streams entries into a zip archive on w. Entries whose file is
// missing are skipped; any other error aborts the archive.
func Write(w io.Writer, entries []Entry) (int, error) {
	zw := zip.NewWriter(w)
	written := 0
	for _, entry := range entries {
		ok, err := addFile(zw, entry)
		if err != nil {
			_ = zw.Close()
			return written, err
		}
		if ok {
			written++
		}
	}
	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("zip: close: %w", err)
	}
	return written, nil
}

func addFile(zw *zip.Writer, entry Entry) (bool, error) {
	f, err := os.Open(entry.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("zip: open %s: %w", entry.Name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("zip: stat %s: %w", entry.Name, err)
	}
	if info.IsDir() {
		return false, nil
	}

	method := zip.Deflate
	if _, ok := storedExtensions[strings.ToLower(filepath.Ext(entry.Name))]; ok {
		method = zip.Store
	}
	hdr := &zip.FileHeader{Name: entry.Name, Method: method, Modified: info.ModTime().UTC()}
	if hdr.Modified.IsZero() {
		hdr.Modified = time.Now().UTC()
	}
	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return false, fmt.Errorf("zip: header %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return false, fmt.Errorf("zip: write %s: %w", entry.Name, err)
	}
	return true, nil
}
