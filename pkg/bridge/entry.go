package bridge

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/config"
)

const (
	SourceImport = "import"
	SourceUser   = "user"
)

type EntryData struct {
	Username string
	Password string
	Polling  bool
}

// ConfigEntry is one configured Abode account.
type ConfigEntry struct {
	EntryID string
	Title   string
	Source  string
	Data    EntryData

	// CacheFile is handed to the driver. Empty means DefaultCacheFile.
	CacheFile string
	// Driver names the registered abode driver to open the session with.
	Driver string
	// ScanInterval is how often entities are refreshed in polling mode.
	ScanInterval time.Duration
}

// entryNamespace scopes entry ids derived from usernames.
var entryNamespace = uuid.NewV5(uuid.NamespaceURL, "https://goabode.com/")

// ImportConfig turns the abode section of the YAML configuration into an
// entry. It returns nil when the section is absent.
func ImportConfig(cfg *config.Config) *ConfigEntry {
	if cfg == nil || cfg.Abode == nil {
		return nil
	}

	return &ConfigEntry{
		EntryID: uuid.NewV5(entryNamespace, cfg.Abode.Username).String(),
		Title:   cfg.Abode.Username,
		Source:  SourceImport,
		Data: EntryData{
			Username: cfg.Abode.Username,
			Password: cfg.Abode.Password,
			Polling:  cfg.Abode.Polling,
		},
		CacheFile:    cfg.Abode.CacheFile,
		Driver:       cfg.Abode.Driver,
		ScanInterval: time.Duration(cfg.Abode.ScanInterval) * time.Second,
	}
}
