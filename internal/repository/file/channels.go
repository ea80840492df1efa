package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// minRefLength filters out junk lines that cannot be a channel ref.
const minRefLength = 3

// LoadSources reads the source channel list: one reference per line,
// blank lines and obvious junk skipped, references normalized.
func LoadSources(path string) ([]domain.ChannelRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources %s: %w", path, err)
	}
	defer f.Close()

	var refs []domain.ChannelRef
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) < minRefLength {
			continue
		}
		refs = append(refs, domain.ChannelRef(line).Normalize())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("sources file %s is empty", path)
	}
	return refs, nil
}

// LoadTargets reads the target assignment file of "channel phone"
// pairs and groups targets per phone number.
func LoadTargets(path string) (map[string][]domain.ChannelRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets %s: %w", path, err)
	}
	defer f.Close()

	targets := make(map[string][]domain.ChannelRef)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("targets %s line %d: want \"channel phone\", got %q", path, lineNo, line)
		}
		ref := domain.ChannelRef(fields[0]).Normalize()
		phone := fields[1]
		targets[phone] = append(targets[phone], ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets %s: %w", path, err)
	}
	return targets, nil
}
