package apk

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

// RestoreResources copies resources.arsc and every res/ entry of the original
// APK into the decoded directory dir, byte for byte, replacing whatever the
// decoder left there. This lets the rebuild skip resource recompilation.
//
// It returns the number of files written.
func RestoreResources(archivePath, dir string) (int, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if zr != nil {
			zr.Close()
		}
		return 0, pipe.Wrap(pipe.ArchiveReadError, err, fmt.Sprintf("failed to open %s", filepath.Base(archivePath)))
	}
	defer zr.Close()

	restored := 0
	for _, f := range zr.File {
		if f.Name != ResourceTable && !strings.HasPrefix(f.Name, ResourceDir) {
			continue
		}
		dst, err := entryPath(dir, f.Name)
		if err != nil {
			return restored, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return restored, pipe.Wrap(pipe.Internal, err, "failed to create resource directory")
			}
			continue
		}
		if err := extractFile(f, dst); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// entryPath maps an archive entry name into dir, rejecting names that would
// land outside of it.
func entryPath(dir, name string) (string, error) {
	dst := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, dst)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", pipe.Fail(pipe.ArchiveReadError, "illegal entry path in archive: %s", name)
	}
	return dst, nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return pipe.Wrap(pipe.ArchiveReadError, err, fmt.Sprintf("failed to read %s", f.Name))
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return pipe.Wrap(pipe.Internal, err, "failed to create resource directory")
	}
	// the decoder may leave read-only placeholders behind
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pipe.Wrap(pipe.Internal, err, fmt.Sprintf("failed to replace %s", f.Name))
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return pipe.Wrap(pipe.Internal, err, fmt.Sprintf("failed to create %s", f.Name))
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return pipe.Wrap(pipe.ArchiveReadError, err, fmt.Sprintf("failed to extract %s", f.Name))
	}
	if err := out.Close(); err != nil {
		return pipe.Wrap(pipe.Internal, err, fmt.Sprintf("failed to write %s", f.Name))
	}
	return nil
}
