package spektrum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kottz/spektrum-client-go/spektrum/rest"
)

type fakeChecker struct {
	valid []rest.SessionRef
	err   error
	seen  *rest.CheckSessionsRequest
}

func (f *fakeChecker) CheckSessions(_ context.Context, req rest.CheckSessionsRequest) (*rest.CheckSessionsResponse, error) {
	f.seen = &req
	if f.err != nil {
		return nil, f.err
	}
	return &rest.CheckSessionsResponse{Valid: f.valid}, nil
}

func TestRestoreSessionPicksNewestValid(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	older := Credential{PlayerID: uuid.New(), LobbyID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	newer := Credential{PlayerID: uuid.New(), LobbyID: uuid.New(), CreatedAt: time.Now()}
	stale := Credential{PlayerID: uuid.New(), LobbyID: uuid.New(), CreatedAt: time.Now()}
	for _, cred := range []Credential{older, newer, stale} {
		if err := store.Save(cred); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	checker := &fakeChecker{valid: []rest.SessionRef{
		{PlayerID: older.PlayerID, LobbyID: older.LobbyID},
		{PlayerID: newer.PlayerID, LobbyID: newer.LobbyID},
	}}
	got, err := RestoreSession(context.Background(), checker, store)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if got == nil || got.PlayerID != newer.PlayerID {
		t.Fatalf("restored %+v, want newest valid credential", got)
	}
	if checker.seen == nil || len(checker.seen.Sessions) != 3 {
		t.Fatalf("checker saw %+v, want all three stored sessions", checker.seen)
	}

	// The server-rejected session is pruned; the valid ones stay.
	if cred, _ := store.Load(stale.Key()); cred != nil {
		t.Fatalf("stale session survived pruning")
	}
	if cred, _ := store.Load(older.Key()); cred == nil {
		t.Fatalf("valid session was pruned")
	}
}

func TestRestoreSessionEmptyStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	checker := &fakeChecker{}
	got, err := RestoreSession(context.Background(), checker, store)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if got != nil {
		t.Fatalf("restored %+v from empty store", got)
	}
	if checker.seen != nil {
		t.Fatalf("checker consulted with nothing stored")
	}
}

func TestRestoreSessionNoneRecognized(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cred := Credential{PlayerID: uuid.New(), LobbyID: uuid.New(), CreatedAt: time.Now()}
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := RestoreSession(context.Background(), &fakeChecker{}, store)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if got != nil {
		t.Fatalf("restored %+v with no server-recognized session", got)
	}
	if stored, _ := store.Load(cred.Key()); stored != nil {
		t.Fatalf("unrecognized session should be pruned")
	}
}

func TestRestoreSessionCheckerFailure(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cred := Credential{PlayerID: uuid.New(), LobbyID: uuid.New(), CreatedAt: time.Now()}
	if err := store.Save(cred); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err = RestoreSession(context.Background(), &fakeChecker{err: errors.New("server down")}, store)
	if !IsConnectionError(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	// On validation failure nothing is pruned; the session may still be good.
	if stored, _ := store.Load(cred.Key()); stored == nil {
		t.Fatalf("session pruned on a failed validation round-trip")
	}
}
