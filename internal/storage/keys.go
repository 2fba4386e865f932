package storage

import "strings"

// Prefix namespaces every key the application writes.
const Prefix = "fahrme_"

const (
	KeySession       = Prefix + "session"
	KeyUsers         = Prefix + "users"
	KeyHostedSession = Prefix + "hosted_session"
	KeyLikes         = Prefix + "likes"
	KeyLikeCounts    = Prefix + "like_counts"
	KeyProbe         = Prefix + "probe"

	PrefixProfile      = Prefix + "profile_"
	PrefixDraft        = Prefix + "draft_"
	PrefixInteractions = Prefix + "interactions_"
	PrefixLikeRate     = Prefix + "like_rate_"
	PrefixCars         = Prefix + "cars_"
)

func ProfileKey(userID string) string      { return PrefixProfile + userID }
func InteractionsKey(userID string) string { return PrefixInteractions + userID }
func LikeRateKey(userID string) string     { return PrefixLikeRate + userID }
func CarsKey(userID string) string         { return PrefixCars + userID }

// DraftPrefix is the prefix shared by all drafts of one user.
func DraftPrefix(userID string) string { return PrefixDraft + userID + "_" }

func DraftKey(userID, name string) string { return DraftPrefix(userID) + name }

// IsLikesKey reports whether a change to key affects like state.
func IsLikesKey(key string) bool {
	return key == KeyLikes || key == KeyLikeCounts
}

// IsTransient reports whether key holds session-scoped data that logout clears.
func IsTransient(key string) bool {
	switch {
	case key == KeySession, key == KeyHostedSession:
		return true
	case strings.HasPrefix(key, PrefixProfile),
		strings.HasPrefix(key, PrefixDraft),
		strings.HasPrefix(key, PrefixInteractions),
		strings.HasPrefix(key, PrefixLikeRate):
		return true
	}
	return false
}
