package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode renders the payload as 2-space indented JSON with a trailing newline.
// HTML escaping is off so activity names keep characters like & and <.
func Encode(w io.Writer, p Payload) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	return nil
}

// Write replaces path with the encoded payload. A temp file in the same
// directory is renamed over the target so readers never see a partial feed.
func Write(path string, p Payload) error {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp feed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp feed: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp feed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}
