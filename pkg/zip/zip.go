package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"
)

// Entry is one file to place in an archive. Data is used when set, otherwise
// the file at Path is streamed in.
type Entry struct {
	Name     string
	Path     string
	Data     []byte
	Modified time.Time
}

// Write streams entries into a zip archive on w.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate}
		if !entry.Modified.IsZero() {
			header.Modified = entry.Modified
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", entry.Name, err)
		}
		if err := copyEntry(fw, entry); err != nil {
			return fmt.Errorf("zip: write %s: %w", entry.Name, err)
		}
	}
	return zw.Close()
}

// Archive builds the archive in memory.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyEntry(w io.Writer, entry Entry) error {
	if entry.Data != nil || entry.Path == "" {
		_, err := w.Write(entry.Data)
		return err
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
