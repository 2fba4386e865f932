package likes

import (
	"errors"
	"strings"
)

// TargetType tags the kind of entity a like points at.
type TargetType string

const (
	TargetPost    TargetType = "POST"
	TargetComment TargetType = "COMMENT"
	TargetCar     TargetType = "CAR"
	TargetAlbum   TargetType = "ALBUM"
)

var (
	ErrUnauthenticated = errors.New("likes: login required")
	ErrInvalidTarget   = errors.New("likes: invalid target")
)

// ParseTargetType accepts the type tag case-insensitively.
func ParseTargetType(s string) (TargetType, error) {
	t := TargetType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidTarget
	}
	return t, nil
}

func (t TargetType) Valid() bool {
	switch t {
	case TargetPost, TargetComment, TargetCar, TargetAlbum:
		return true
	}
	return false
}

// Target identifies a likeable entity.
type Target struct {
	Type TargetType `json:"targetType"`
	ID   string     `json:"targetId"`
}

func (t Target) Valid() bool {
	return t.Type.Valid() && t.ID != ""
}

func (t Target) String() string {
	return string(t.Type) + "/" + t.ID
}

// counterKey is the key of the target's aggregate counter.
func (t Target) counterKey() string {
	return string(t.Type) + ":" + t.ID
}

// Status is what a user sees for one target.
type Status struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

func validate(userID string, t Target) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	if !t.Valid() {
		return ErrInvalidTarget
	}
	return nil
}
