// Package files performs the file operations the assistant can be asked for:
// organizing and compressing folders, renaming files and saving documents.
// Every path is confined to the home directory.
package files

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// categories maps folder names to the extensions moved into them.
var categories = []struct {
	name       string
	extensions []string
}{
	{"Images", []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".tiff"}},
	{"Documents", []string{".pdf", ".doc", ".docx", ".txt", ".rtf", ".odt", ".xls", ".xlsx", ".ppt", ".pptx", ".csv", ".md"}},
	{"Audio", []string{".mp3", ".wav", ".aac", ".flac", ".ogg", ".m4a"}},
	{"Video", []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".webm"}},
	{"Archives", []string{".zip", ".tar", ".gz", ".7z", ".rar"}},
	{"Code", []string{".py", ".js", ".html", ".css", ".java", ".cpp", ".h", ".json", ".xml", ".sh"}},
	{"Installers", []string{".deb", ".rpm", ".iso", ".appimage", ".exe", ".msi"}},
}

func categoryOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, c := range categories {
		for _, e := range c.extensions {
			if e == ext {
				return c.name
			}
		}
	}
	return ""
}

// Executor runs file operations inside a home directory.
type Executor struct {
	home      string
	documents string
	now       func() time.Time
}

// NewExecutor confines operations to home. documents defaults to home/Documents.
func NewExecutor(home, documents string) *Executor {
	if documents == "" {
		documents = filepath.Join(home, "Documents")
	}
	return &Executor{home: filepath.Clean(home), documents: documents, now: time.Now}
}

// NewHomeExecutor uses the current user's home directory.
func NewHomeExecutor(documents string) (*Executor, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve home directory")
	}
	return NewExecutor(home, documents), nil
}

func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// resolveDir maps spoken folder names to directories under home.
func (e *Executor) resolveDir(name string, known ...string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "home" {
		return e.home
	}
	for _, k := range known {
		if strings.ToLower(k) == lower {
			return filepath.Join(e.home, k)
		}
	}
	return filepath.Join(e.home, name)
}

// isSafe reports whether path, with symlinks resolved, stays inside home.
func (e *Executor) isSafe(path string) bool {
	home, err := filepath.EvalSymlinks(e.home)
	if err != nil {
		return false
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	return resolved == home || strings.HasPrefix(resolved, home+string(filepath.Separator))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// OrganizeDirectory moves files of known types into category folders.
// Hidden files and unknown types stay where they are.
func (e *Executor) OrganizeDirectory(ctx context.Context, name string) (string, error) {
	target := e.resolveDir(name, "Downloads", "Documents", "Desktop", "Pictures", "Videos", "Music")
	if !isDir(target) {
		return fmt.Sprintf("Directory '%s' not found.", name), nil
	}
	if !e.isSafe(target) {
		return "Operation denied: Can only modify files inside your home directory.", nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", target)
	}
	moved := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		category := categoryOf(entry.Name())
		if category == "" {
			continue
		}
		dir := filepath.Join(target, category)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create %s", dir)
		}
		dest := e.uniquePath(dir, entry.Name())
		if err := os.Rename(filepath.Join(target, entry.Name()), dest); err != nil {
			return "", errors.Wrapf(err, "failed to move %s", entry.Name())
		}
		moved++
		slog.Info("files: moved", "file", entry.Name(), "category", category)
	}
	return fmt.Sprintf("Organized %s: Moved %d files into folders.", name, moved), nil
}

// CompressDirectory writes <dir>_backup_<date>.zip next to the directory.
func (e *Executor) CompressDirectory(ctx context.Context, name string) (string, error) {
	target := e.resolveDir(name, "Downloads", "Documents", "Desktop")
	if !isDir(target) {
		return fmt.Sprintf("Directory '%s' not found.", name), nil
	}
	parent := filepath.Dir(target)
	if !e.isSafe(target) || !e.isSafe(parent) {
		return "Operation denied: Unsafe path.", nil
	}

	archive := fmt.Sprintf("%s_backup_%s.zip", filepath.Base(target), e.now().Format("20060102"))
	output := filepath.Join(parent, archive)
	slog.Info("files: compressing", "dir", target, "archive", output)

	if err := zipDir(ctx, target, output); err != nil {
		_ = os.Remove(output)
		return "", err
	}
	return fmt.Sprintf("Created archive: %s in %s", archive, filepath.Base(parent)), nil
}

func zipDir(ctx context.Context, dir, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return errors.Wrap(err, "failed to create archive")
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if walkErr != nil {
		return errors.Wrap(walkErr, "failed to compress")
	}
	return errors.Wrap(zw.Close(), "failed to finish archive")
}

// RenameFile renames a file found in Downloads, Desktop, Documents or home, in that order.
func (e *Executor) RenameFile(ctx context.Context, oldName, newName string) (string, error) {
	var found string
	for _, dir := range []string{"Downloads", "Desktop", "Documents", ""} {
		candidate := filepath.Join(e.home, dir, oldName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			found = candidate
			break
		}
	}
	if found == "" {
		return fmt.Sprintf("Could not find file '%s' in Downloads, Desktop, or Documents.", oldName), nil
	}
	dest := filepath.Join(filepath.Dir(found), filepath.Base(newName))
	if !e.isSafe(found) || !e.isSafe(filepath.Dir(dest)) {
		return "Operation denied.", nil
	}
	if err := os.Rename(found, dest); err != nil {
		return "", errors.Wrap(err, "rename failed")
	}
	slog.Info("files: renamed", "from", found, "to", dest)
	return fmt.Sprintf("Renamed '%s' to '%s'.", oldName, newName), nil
}

// SaveDocument writes content to the documents folder. Names without a .txt
// or .md extension get .md; an existing file is never overwritten.
func (e *Executor) SaveDocument(ctx context.Context, content, filename string) (string, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if !strings.HasSuffix(filename, ".txt") && !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}
	if err := os.MkdirAll(e.documents, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create documents folder")
	}
	output := e.uniquePath(e.documents, filename)
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to save the document")
	}
	slog.Info("files: saved document", "path", output)
	return fmt.Sprintf("I've saved the document as '%s' in your Documents folder.", filepath.Base(output)), nil
}

// uniquePath returns dir/name, or a timestamped variant when it already exists.
func (e *Executor) uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, e.now().Format("20060102_150405"), ext))
}
