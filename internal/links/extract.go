// Package links extracts Telegram group links from free text.
package links

import (
	"regexp"
	"strings"
)

// Kind classifies an extracted link.
type Kind string

const (
	// KindInvite is a private invite link (t.me/joinchat/… or t.me/+…).
	// Joining these may require manual approval on the remote side.
	KindInvite Kind = "invite"
	// KindUsername is a public @username or t.me/username link.
	KindUsername Kind = "username"
)

// Link is one extracted, de-duplicated group reference.
type Link struct {
	Text string
	Kind Kind
}

var (
	inviteRe   = regexp.MustCompile(`(?:https?://)?t\.me/(?:joinchat/|\+)[A-Za-z0-9_-]+`)
	publicRe   = regexp.MustCompile(`(?:https?://)?t\.me/[A-Za-z0-9_]{4,}`)
	usernameRe = regexp.MustCompile(`@[A-Za-z0-9_]{4,}`)
)

// Extract returns the unique group links found in text, preserving the
// order of first appearance. Invite links keep their full URL form;
// public t.me links and bare @usernames are both username joins.
func Extract(text string) []Link {
	seen := make(map[string]bool)
	var out []Link

	add := func(raw string, kind Kind) {
		key := strings.ToLower(raw)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Link{Text: raw, Kind: kind})
	}

	for _, m := range inviteRe.FindAllString(text, -1) {
		add(m, KindInvite)
	}

	for _, m := range publicRe.FindAllString(text, -1) {
		// skip what the invite pattern already claimed
		seg := m[strings.LastIndex(m, "/")+1:]
		if seg == "joinchat" || strings.HasPrefix(seg, "+") {
			continue
		}
		add(m, KindUsername)
	}

	for _, m := range usernameRe.FindAllString(text, -1) {
		add(m, KindUsername)
	}

	return out
}
