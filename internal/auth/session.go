package auth

import (
	"encoding/json"
	"strings"
)

// sessionVersion is the current layout of the persisted session.
//
//	v0: {"email": "..."}                 (no userId; written by old clients)
//	v1: {"v": 1, "userId": "...", "email": "..."}
const sessionVersion = 1

// Session points at the logged-in user. It holds no credentials.
type Session struct {
	UserID string
	Email  string
}

type sessionPayload struct {
	Version int    `json:"v,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
}

func encodeSession(s Session) (string, error) {
	b, err := json.Marshal(sessionPayload{Version: sessionVersion, UserID: s.UserID, Email: s.Email})
	return string(b), err
}

func decodeSession(raw string) (sessionPayload, error) {
	var p sessionPayload
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

// migrateSession normalizes any stored payload into a Session. lookup finds
// a user by email and is only consulted for v0 payloads. rewrite reports that
// the payload is outdated and should be stored again; ok is false when the
// payload cannot be resolved to a user id at all.
func migrateSession(p sessionPayload, lookup func(email string) (id string, found bool)) (s Session, rewrite, ok bool) {
	if p.Version >= sessionVersion {
		return Session{UserID: p.UserID, Email: p.Email}, false, p.UserID != ""
	}
	if p.UserID != "" {
		return Session{UserID: p.UserID, Email: p.Email}, true, true
	}
	if strings.TrimSpace(p.Email) == "" {
		return Session{}, false, false
	}
	id, found := lookup(p.Email)
	if !found {
		return Session{}, false, false
	}
	return Session{UserID: id, Email: p.Email}, true, true
}
