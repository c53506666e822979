// Package logdir locates hook day files in the log directory.
package logdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/modoterra/hookscope/pkg/core"
)

// DefaultRoot is where the hook logger writes its day files.
const DefaultRoot = "/tmp/claude-hooks-debug"

// Dir is a directory of hooks-YYYY-MM-DD.json files.
type Dir struct {
	FS   afero.Fs
	Root string
}

// New returns a Dir over the OS filesystem.
func New(root string) Dir {
	if root == "" {
		root = DefaultRoot
	}
	return Dir{FS: afero.NewOsFs(), Root: root}
}

// Path returns the day file path for date.
func (d Dir) Path(date string) string {
	return filepath.Join(d.Root, core.DayFileName(date))
}

// Today returns the date whose file the hook logger is writing at now, in
// local time.
func Today(now time.Time) string {
	return core.DateOf(now.Local())
}

// Files lists the day files, newest date first. A missing directory yields
// an empty list.
func (d Dir) Files() ([]core.DayFile, error) {
	entries, err := afero.ReadDir(d.FS, d.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir %s: %w", d.Root, err)
	}

	var files []core.DayFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, err := core.ParseDayFileName(e.Name())
		if err != nil {
			continue
		}
		files = append(files, core.DayFile{
			Date:    date,
			Name:    e.Name(),
			Size:    e.Size(),
			ModTime: e.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Date > files[j].Date
	})
	return files, nil
}

// Dates lists the available dates, newest first.
func (d Dir) Dates() ([]string, error) {
	files, err := d.Files()
	if err != nil {
		return nil, err
	}
	dates := make([]string, len(files))
	for i, f := range files {
		dates[i] = f.Date
	}
	return dates, nil
}

// Stat returns the size of the day file for date. ok is false when the file
// does not exist.
func (d Dir) Stat(date string) (size int64, ok bool, err error) {
	info, err := d.FS.Stat(d.Path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return info.Size(), true, nil
}
