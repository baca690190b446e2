package store

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Export streams the run's slides and audio to w as a zstd-compressed tar.
// Entries are laid out as {id}/slides/* and {id}/audio/*.
func (s *Store) Export(ctx context.Context, id string, w io.Writer) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrUnknownRun, id)
	}
	visuals := filepath.Join(s.visualsRoot, id)
	if info, err := os.Stat(visuals); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrUnknownRun, id)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(enc)

	err = s.addDir(ctx, tw, visuals, path.Join(id, slidesDir))
	if err == nil {
		err = s.addDir(ctx, tw, filepath.Join(s.audioRoot, id), path.Join(id, audioDir))
	}
	if closeErr := tw.Close(); err == nil {
		err = closeErr
	}
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Store) addDir(ctx context.Context, tw *tar.Writer, dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if err := addFile(tw, filepath.Join(dir, entry.Name()), path.Join(prefix, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func addFile(tw *tar.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("tar copy %s: %w", name, err)
	}
	return nil
}
