package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// Blacklist is the durable set of account/channel pairs that must
// never be rejoined. Backed by an append-only text file of
// "phone:channel" lines; loaded once into memory, appends go straight
// to disk. Single-line O_APPEND writes keep concurrent writers safe.
type Blacklist struct {
	path   string
	mu     sync.Mutex
	set    map[string]struct{}
	logger zerolog.Logger
}

// NewBlacklist loads the blacklist file, creating it when absent.
func NewBlacklist(path string, logger zerolog.Logger) (*Blacklist, error) {
	b := &Blacklist{
		path:   path,
		set:    make(map[string]struct{}),
		logger: logger.With().Str("component", "blacklist").Logger(),
	}

	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open blacklist %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b.set[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read blacklist %s: %w", path, err)
	}

	b.logger.Info().Int("entries", len(b.set)).Msg("blacklist loaded")
	return b, nil
}

func blacklistKey(phone string, ref domain.ChannelRef) string {
	return phone + ":" + string(ref.Normalize())
}

// Contains reports whether the pair is blacklisted.
func (b *Blacklist) Contains(phone string, ref domain.ChannelRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.set[blacklistKey(phone, ref)]
	return ok
}

// Add records the pair in memory and appends it to the file. Adding an
// existing pair is a no-op.
func (b *Blacklist) Add(phone string, ref domain.ChannelRef) error {
	key := blacklistKey(phone, ref)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.set[key]; ok {
		return nil
	}

	f, err := os.OpenFile(b.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open blacklist for append: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(key + "\n"); err != nil {
		return fmt.Errorf("append blacklist entry: %w", err)
	}

	b.set[key] = struct{}{}
	b.logger.Info().Str("entry", key).Msg("channel blacklisted")
	return nil
}

var _ domain.BlacklistStore = (*Blacklist)(nil)
