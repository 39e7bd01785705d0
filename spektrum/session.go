package spektrum

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sessionVersion is bumped when the stored schema changes.
const sessionVersion = 1

// Credential is everything needed to resume or establish a session: the
// opaque player identity plus denormalized lobby fields.
type Credential struct {
	PlayerID   uuid.UUID `json:"playerId"`
	PlayerName string    `json:"playerName"`
	LobbyID    uuid.UUID `json:"lobbyId"`
	JoinCode   string    `json:"joinCode"`
	Admin      bool      `json:"admin"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Key returns the storage key for this credential. Keys are unique per
// joined player, so sessions in several lobbies (or several tabs of the
// same lobby) coexist without collision.
func (c Credential) Key() string {
	return c.PlayerID.String()
}

// Valid reports whether the credential carries a usable identity.
func (c Credential) Valid() bool {
	return c.PlayerID != uuid.Nil
}

// SessionStore persists reconnection credentials across restarts. A loaded
// credential is never assumed usable; the server is the authority on whether
// the session still exists (see rest.Client.CheckSessions).
type SessionStore interface {
	Save(cred Credential) error
	// Load returns nil with no error when the key is unknown.
	Load(key string) (*Credential, error)
	List() ([]Credential, error)
	Remove(key string) error
}

// storedSession wraps a credential with a schema version for migrations.
type storedSession struct {
	Version    int        `json:"version"`
	Credential Credential `json:"credential"`
}

// FileStore keeps one JSON file per session under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. An empty dir places sessions
// under the user config directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, WrapError(ErrorStorage, "no user config dir", err)
		}
		dir = filepath.Join(base, "spektrum", "sessions")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapError(ErrorStorage, "failed to create session dir", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save implements SessionStore.
func (s *FileStore) Save(cred Credential) error {
	if !cred.Valid() {
		return NewError(ErrorStorage, "refusing to store empty credential")
	}
	data, err := json.MarshalIndent(storedSession{Version: sessionVersion, Credential: cred}, "", "  ")
	if err != nil {
		return WrapError(ErrorStorage, "failed to encode session", err)
	}
	return writeFileAtomic(s.path(cred.Key()), data)
}

// Load implements SessionStore.
func (s *FileStore) Load(key string) (*Credential, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(ErrorStorage, "failed to read session", err)
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, WrapError(ErrorStorage, "corrupt session file", err)
	}
	return &stored.Credential, nil
}

// List implements SessionStore.
func (s *FileStore) List() ([]Credential, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(ErrorStorage, "failed to list sessions", err)
	}
	var creds []Credential
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		cred, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil || cred == nil {
			// Skip unreadable files; a half-written session must not
			// prevent restoring the others.
			continue
		}
		creds = append(creds, *cred)
	}
	return creds, nil
}

// Remove implements SessionStore. Removing an unknown key is not an error.
func (s *FileStore) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapError(ErrorStorage, "failed to remove session", err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	// Keys are UUID strings; anything else is flattened to a safe name.
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, key+".json")
}

func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp", path)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return WrapError(ErrorStorage, "failed to write session", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return WrapError(ErrorStorage, "failed to replace session", err)
	}
	return nil
}

// NopStore is the degraded store used when durable storage is unavailable:
// saves vanish and reads come back empty.
type NopStore struct{}

func (NopStore) Save(Credential) error            { return nil }
func (NopStore) Load(string) (*Credential, error) { return nil, nil }
func (NopStore) List() ([]Credential, error)      { return nil, nil }
func (NopStore) Remove(string) error              { return nil }

// DefaultStore returns a FileStore under the user config directory, or a
// NopStore when the filesystem is not usable.
func DefaultStore() SessionStore {
	store, err := NewFileStore("")
	if err != nil {
		return NopStore{}
	}
	return store
}
