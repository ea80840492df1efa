package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

func writeAccount(t *testing.T, dir, phone, meta string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, phone+".json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, phone+".session"), []byte("session-data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSessionsDiscover(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "+111", `{"phone":"+111","proxy":"socks5:1.2.3.4:1080:u:p"}`)
	writeAccount(t, dir, "+222", `{"phone":"+222","string_session":"1Abc"}`)

	targets := map[string][]domain.ChannelRef{"+111": {"target_a"}}
	s := NewSessions(dir, targets, zerolog.Nop())

	accounts, err := s.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	byPhone := make(map[string]domain.Account)
	for _, acc := range accounts {
		byPhone[acc.Phone] = acc
	}
	if byPhone["+111"].Proxy != "socks5:1.2.3.4:1080:u:p" {
		t.Errorf("proxy not carried: %+v", byPhone["+111"])
	}
	if len(byPhone["+111"].Targets) != 1 {
		t.Errorf("targets not assigned: %+v", byPhone["+111"])
	}
	if byPhone["+222"].SessionFile == "" {
		t.Error("session file path should be derived from metadata path")
	}

	session, err := s.StringSession(byPhone["+222"])
	if err != nil {
		t.Fatal(err)
	}
	if session != "1Abc" {
		t.Errorf("expected string session, got %q", session)
	}
}

func TestSessionsDiscoverSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeAccount(t, dir, "+111", `{"phone":"+111"}`)
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSessions(dir, nil, zerolog.Nop())
	accounts, err := s.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].Phone != "+111" {
		t.Errorf("malformed metadata should be skipped, got %v", accounts)
	}
}

func TestSessionsQuarantine(t *testing.T) {
	tests := []struct {
		name    string
		reason  domain.RunOutcome
		wantDir string
	}{
		{"auth goes to banned", domain.RunAuthTerminal, "banned"},
		{"fatal goes to errors", domain.RunFatalError, "errors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeAccount(t, dir, "+111", `{"phone":"+111"}`)

			s := NewSessions(dir, nil, zerolog.Nop())
			accounts, err := s.Discover()
			if err != nil {
				t.Fatal(err)
			}

			if err := s.Quarantine(accounts[0], tt.reason); err != nil {
				t.Fatal(err)
			}

			for _, name := range []string{"+111.json", "+111.session"} {
				if _, err := os.Stat(filepath.Join(dir, tt.wantDir, name)); err != nil {
					t.Errorf("%s should be in %s/: %v", name, tt.wantDir, err)
				}
				if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
					t.Errorf("%s should be gone from the accounts dir", name)
				}
			}

			// Quarantined accounts disappear from discovery.
			remaining, err := s.Discover()
			if err != nil {
				t.Fatal(err)
			}
			if len(remaining) != 0 {
				t.Errorf("quarantined account still discovered: %v", remaining)
			}
		})
	}
}

func TestSessionsQuarantineMissingFilesTolerated(t *testing.T) {
	dir := t.TempDir()
	s := NewSessions(dir, nil, zerolog.Nop())

	acc := domain.Account{
		Phone:       "+111",
		SessionFile: filepath.Join(dir, "+111.session"),
		MetaFile:    filepath.Join(dir, "+111.json"),
	}
	if err := s.Quarantine(acc, domain.RunFatalError); err != nil {
		t.Errorf("missing files should not fail quarantine: %v", err)
	}
}
