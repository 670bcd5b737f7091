package schedule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jilsnshah/alignflow/internal/config"
	"golang.org/x/oauth2"
)

func slotConfig() config.CalendarConfig {
	return config.CalendarConfig{
		CalendarID:  "clinic@example.com",
		Timezone:    "Asia/Kolkata",
		SlotMinutes: 30,
	}
}

func TestParseSlot(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, loc)

	t.Run("valid aligned slot", func(t *testing.T) {
		got, err := ParseSlot("2026-03-02 10:30", slotConfig(), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2026, 3, 2, 10, 30, 0, 0, loc)
		if !got.Equal(want) {
			t.Errorf("slot = %v, want %v", got, want)
		}
	})

	t.Run("unaligned minutes rejected", func(t *testing.T) {
		_, err := ParseSlot("2026-03-02 10:45", slotConfig(), now)
		if err == nil || !strings.Contains(err.Error(), "align") {
			t.Errorf("err = %v, want alignment failure", err)
		}
	})

	t.Run("past slot rejected", func(t *testing.T) {
		_, err := ParseSlot("2026-02-01 10:30", slotConfig(), now)
		if err == nil || !strings.Contains(err.Error(), "past") {
			t.Errorf("err = %v, want past-slot failure", err)
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		if _, err := ParseSlot("tomorrowish", slotConfig(), now); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{
		AccessToken:  "at-123",
		RefreshToken: "rt-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := loadToken(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "at-123" || got.RefreshToken != "rt-456" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestLoadToken_Missing(t *testing.T) {
	if _, err := loadToken(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestLoadToken_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadToken(path); err == nil {
		t.Error("expected decode error")
	}
}
