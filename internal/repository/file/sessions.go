package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/logger"
)

// accountMeta is the sidecar JSON written next to each session file.
type accountMeta struct {
	Phone         string `json:"phone"`
	StringSession string `json:"string_session,omitempty"`
	Proxy         string `json:"proxy,omitempty"`
}

// Sessions discovers account files in the accounts directory and moves
// terminally failed accounts out of it. Layout:
//
//	accounts/<phone>.json       metadata (phone, string session, proxy)
//	accounts/<phone>.session    gotd session storage
//	accounts/banned/            quarantine for dead authorizations
//	accounts/errors/            quarantine for fatal failures
type Sessions struct {
	dir     string
	targets map[string][]domain.ChannelRef
	logger  zerolog.Logger
}

// NewSessions creates a repository over the accounts directory. The
// targets map assigns each discovered account its publish targets.
func NewSessions(dir string, targets map[string][]domain.ChannelRef, log zerolog.Logger) *Sessions {
	return &Sessions{
		dir:     dir,
		targets: targets,
		logger:  log.With().Str("component", "sessions").Logger(),
	}
}

// Discover lists accounts from the metadata files in the directory
// root. Quarantined subdirectories are not descended into. Unreadable
// metadata is logged and skipped so one broken file does not block the
// rest.
func (s *Sessions) Discover() ([]domain.Account, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read accounts dir %s: %w", s.dir, err)
	}

	var accounts []domain.Account
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		metaPath := filepath.Join(s.dir, entry.Name())

		data, err := os.ReadFile(metaPath)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", metaPath).Msg("cannot read account metadata, skipping")
			continue
		}
		var meta accountMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			s.logger.Warn().Err(err).Str("file", metaPath).Msg("malformed account metadata, skipping")
			continue
		}
		if meta.Phone == "" {
			meta.Phone = strings.TrimSuffix(entry.Name(), ".json")
		}

		accounts = append(accounts, domain.Account{
			Phone:       meta.Phone,
			SessionFile: strings.TrimSuffix(metaPath, ".json") + ".session",
			MetaFile:    metaPath,
			Proxy:       meta.Proxy,
			Targets:     s.targets[meta.Phone],
		})
	}

	s.logger.Info().Int("accounts", len(accounts)).Msg("accounts discovered")
	return accounts, nil
}

// StringSession re-reads the account's metadata and returns the stored
// string session, empty when none is recorded.
func (s *Sessions) StringSession(acc domain.Account) (string, error) {
	data, err := os.ReadFile(acc.MetaFile)
	if err != nil {
		return "", fmt.Errorf("read account metadata %s: %w", acc.MetaFile, err)
	}
	var meta accountMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("parse account metadata %s: %w", acc.MetaFile, err)
	}
	return meta.StringSession, nil
}

// Quarantine moves the account's session and metadata files to the
// subdirectory for the reason: dead authorizations go to banned/,
// everything else to errors/. Missing files are tolerated so a repeat
// quarantine cannot fail the scheduler.
func (s *Sessions) Quarantine(acc domain.Account, reason domain.RunOutcome) error {
	sub := "errors"
	if reason == domain.RunAuthTerminal {
		sub = "banned"
	}
	destDir := filepath.Join(s.dir, sub)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create quarantine dir %s: %w", destDir, err)
	}

	for _, path := range []string{acc.SessionFile, acc.MetaFile} {
		if path == "" {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(path))
		if err := os.Rename(path, dest); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("quarantine %s: %w", path, err)
		}
	}

	s.logger.Warn().
		Str("phone", logger.MaskPhone(acc.Phone)).
		Str("reason", reason.String()).
		Str("dir", sub).
		Msg("account quarantined")
	return nil
}

var _ domain.SessionRepository = (*Sessions)(nil)
