package spektrum

import (
	"context"
	"sort"

	"github.com/kottz/spektrum-client-go/spektrum/rest"
)

// SessionChecker is the validation round-trip consulted before a stored
// credential is trusted. rest.Client satisfies it.
type SessionChecker interface {
	CheckSessions(ctx context.Context, req rest.CheckSessionsRequest) (*rest.CheckSessionsResponse, error)
}

// RestoreSession finds the most recently created stored credential that the
// server still recognizes, pruning every stored session the server no
// longer knows about. It returns nil when nothing restorable is found;
// callers then fall back to a fresh join.
func RestoreSession(ctx context.Context, checker SessionChecker, store SessionStore) (*Credential, error) {
	creds, err := store.List()
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, nil
	}

	req := rest.CheckSessionsRequest{Sessions: make([]rest.SessionRef, 0, len(creds))}
	for _, cred := range creds {
		req.Sessions = append(req.Sessions, rest.SessionRef{
			PlayerID: cred.PlayerID,
			LobbyID:  cred.LobbyID,
		})
	}
	resp, err := checker.CheckSessions(ctx, req)
	if err != nil {
		return nil, WrapError(ErrorConnection, "session validation failed", err)
	}

	valid := make(map[rest.SessionRef]bool, len(resp.Valid))
	for _, ref := range resp.Valid {
		valid[ref] = true
	}

	var alive []Credential
	for _, cred := range creds {
		if valid[rest.SessionRef{PlayerID: cred.PlayerID, LobbyID: cred.LobbyID}] {
			alive = append(alive, cred)
			continue
		}
		// The lobby is gone; keeping the file would retrigger this dance
		// on every start.
		_ = store.Remove(cred.Key())
	}
	if len(alive) == 0 {
		return nil, nil
	}

	sort.Slice(alive, func(i, j int) bool {
		return alive[i].CreatedAt.After(alive[j].CreatedAt)
	})
	cred := alive[0]
	return &cred, nil
}
