package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gowa-gateway/internal/wa"

	"github.com/rs/zerolog"
)

const sessionFolderPrefix = "session-"

var (
	sessionIDPattern     = regexp.MustCompile(`^[\w-]+$`)
	sessionFolderPattern = regexp.MustCompile(`^session-(.+)$`)
)

// ValidateSessionID accepts ids made of letters, digits, underscores and hyphens.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

func SessionDir(root, id string) string {
	return filepath.Join(root, sessionFolderPrefix+id)
}

// ListSessionIDs returns the ids of every session folder under root. A
// missing root yields no ids.
func ListSessionIDs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if m := sessionFolderPattern.FindStringSubmatch(e.Name()); m != nil {
			ids = append(ids, m[1])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// deleteSessionFolder removes root/session-{id} after resolving symlinks and
// checking the result is strictly inside root.
func deleteSessionFolder(root, id string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve sessions directory: %w", err)
	}
	realTarget, err := filepath.EvalSymlinks(SessionDir(root, id))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve session folder: %w", err)
	}
	if !strings.HasPrefix(realTarget, realRoot+string(filepath.Separator)) {
		return ErrPathTraversal
	}
	if err := os.RemoveAll(realTarget); err != nil {
		return fmt.Errorf("remove session folder: %w", err)
	}
	return nil
}

// releaseStaleLock removes a lock artifact left behind by a crashed process,
// warning before it does so.
func releaseStaleLock(dir string, log zerolog.Logger) error {
	path := filepath.Join(dir, wa.LockFileName)
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	log.Warn().Str("path", path).Msg("Removing stale session lock")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	return nil
}
