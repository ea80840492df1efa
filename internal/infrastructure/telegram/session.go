package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gotd/td/session"
)

// EnsureSession prepares a gotd session file for an account. Accounts
// arrive with a Telethon string session in their metadata; on first use
// it is converted into gotd's native session format and written next to
// the original session file. Later runs load the converted file directly.
func EnsureSession(ctx context.Context, sessionFile, stringSession string) (*session.FileStorage, error) {
	storage := &session.FileStorage{Path: sessionFile}

	if _, err := os.Stat(sessionFile); err == nil {
		return storage, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat session file: %w", err)
	}

	if stringSession == "" {
		return nil, fmt.Errorf("no session file and no string session for %s", sessionFile)
	}

	data, err := session.TelethonSession(stringSession)
	if err != nil {
		return nil, fmt.Errorf("convert telethon session: %w", err)
	}

	loader := session.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("save converted session: %w", err)
	}

	return storage, nil
}
