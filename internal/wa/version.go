package wa

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
)

// Version cache modes.
const (
	VersionCacheNone   = "none"
	VersionCacheLocal  = "local"
	VersionCacheRemote = "remote"
)

const versionFileName = ".wa_version"

type VersionConfig struct {
	// Pin forces a protocol version such as "2.3000.1019707846".
	Pin string
	// CacheType is one of VersionCacheNone, VersionCacheLocal or VersionCacheRemote.
	CacheType string
	// Dir holds the local version cache file.
	Dir string
	// Latest fetches the current version for remote mode. nil uses whatsmeow.GetLatestVersion.
	Latest func(ctx context.Context) (store.WAVersionContainer, error)
}

// ApplyVersion sets the protocol version announced by every client in this
// process and returns the version in effect.
func ApplyVersion(ctx context.Context, cfg VersionConfig, log zerolog.Logger) (store.WAVersionContainer, error) {
	ver, source, err := resolveVersion(ctx, cfg)
	if err != nil {
		return store.GetWAVersion(), err
	}
	if source == "" {
		return store.GetWAVersion(), nil
	}
	store.SetWAVersion(ver)
	log.Info().Str("version", ver.String()).Str("source", source).Msg("Protocol version applied")

	if strings.EqualFold(cfg.CacheType, VersionCacheLocal) && source != VersionCacheLocal {
		if err := writeVersionFile(cfg.Dir, ver); err != nil {
			log.Warn().Err(err).Msg("Failed to cache protocol version")
		}
	}
	return ver, nil
}

func resolveVersion(ctx context.Context, cfg VersionConfig) (store.WAVersionContainer, string, error) {
	if cfg.Pin != "" {
		ver, err := store.ParseVersion(cfg.Pin)
		if err != nil {
			return ver, "", fmt.Errorf("parse version pin %q: %w", cfg.Pin, err)
		}
		return ver, "pin", nil
	}

	switch strings.ToLower(cfg.CacheType) {
	case VersionCacheLocal:
		ver, ok, err := readVersionFile(cfg.Dir)
		if err != nil || !ok {
			return ver, "", err
		}
		return ver, VersionCacheLocal, nil
	case VersionCacheRemote:
		latest := cfg.Latest
		if latest == nil {
			latest = fetchLatestVersion
		}
		ver, err := latest(ctx)
		if err != nil {
			return ver, "", fmt.Errorf("fetch latest version: %w", err)
		}
		return ver, VersionCacheRemote, nil
	case "", VersionCacheNone:
		return store.WAVersionContainer{}, "", nil
	default:
		return store.WAVersionContainer{}, "", fmt.Errorf("unknown version cache type %q", cfg.CacheType)
	}
}

func fetchLatestVersion(ctx context.Context) (store.WAVersionContainer, error) {
	ver, err := whatsmeow.GetLatestVersion(ctx, http.DefaultClient)
	if err != nil {
		return store.WAVersionContainer{}, err
	}
	return *ver, nil
}

func readVersionFile(dir string) (store.WAVersionContainer, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	if os.IsNotExist(err) {
		return store.WAVersionContainer{}, false, nil
	}
	if err != nil {
		return store.WAVersionContainer{}, false, err
	}
	ver, err := store.ParseVersion(strings.TrimSpace(string(data)))
	if err != nil {
		return ver, false, fmt.Errorf("parse cached version: %w", err)
	}
	return ver, true, nil
}

func writeVersionFile(dir string, ver store.WAVersionContainer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, versionFileName), []byte(ver.String()+"\n"), 0o644)
}
