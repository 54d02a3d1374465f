package store

import "strings"

const (
	RootChallenges = "rimcity.challenges"
	RootPresence   = "rimcity.presence"
	RootLedger     = "rimcity.ledger"
	VersionPath    = "server_info.version"
)

// Key makes s safe to use as a single path segment.
func Key(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

func Join(parts ...string) string {
	return strings.Join(parts, ".")
}

// ChallengeBucket is the mailbox holding every challenge copy for gid.
func ChallengeBucket(gid string) string {
	return Join(RootChallenges, Key(gid))
}

func ChallengePath(gid, challengeID string) string {
	return Join(RootChallenges, Key(gid), Key(challengeID))
}

func PresencePath(gid string) string {
	return Join(RootPresence, Key(gid))
}

func LedgerPath(gid, challengeID string) string {
	return Join(RootLedger, Key(gid), Key(challengeID))
}

// SplitPath returns the segments of a dotted path, or nil when any segment
// is empty.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil
		}
	}
	return segs
}
