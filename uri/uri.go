// Package uri implements the grid:// addressing scheme used for
// point-to-point command delivery between vehicles.
//
// Grammar:
//
//	grid://<nodeName>/<targetName>[/<path>][?<query>]
//
// nodeName and targetName are opaque tokens containing neither '/' nor
// '?'. path may itself contain '/'. query is opaque trailing text.
//
// A parsed URI compiles into the two wire strings the bus carries: the
// routing tag "NET:<nodeName>" and the payload
// "block://<targetName>[/<path>][?<query>]". The standard net/url parser
// is unusable here: it canonicalizes hosts and escapes queries, which
// would corrupt both wire forms.
package uri

import (
	"errors"
	"strings"
)

const (
	// Scheme prefixes the command addressing form.
	Scheme = "grid://"

	// TagPrefix prefixes every routing tag.
	TagPrefix = "NET:"

	// PayloadScheme prefixes the compiled command payload.
	PayloadScheme = "block://"
)

var (
	ErrBadScheme   = errors.New("uri: missing grid:// scheme")
	ErrEmptyNode   = errors.New("uri: empty node name")
	ErrEmptyTarget = errors.New("uri: empty target name")
)

// GridURI is a validated command address. Zero value is invalid; only
// Parse produces valid values.
type GridURI struct {
	NodeName   string
	TargetName string
	Path       string // without leading '/', empty if absent
	Query      string // without leading '?', empty if absent
}

// Parse validates s against the grid:// grammar. It returns a sentinel
// error when the string does not match; it never panics on malformed
// input.
func Parse(s string) (GridURI, error) {
	rest, ok := strings.CutPrefix(s, Scheme)
	if !ok {
		return GridURI{}, ErrBadScheme
	}

	// Split off the query first so that '/' inside it stays opaque.
	rest, query, _ := cut(rest, '?')

	node, rest, hasMore := cut(rest, '/')
	if node == "" {
		return GridURI{}, ErrEmptyNode
	}
	if !hasMore {
		return GridURI{}, ErrEmptyTarget
	}

	target, path, _ := cut(rest, '/')
	if target == "" {
		return GridURI{}, ErrEmptyTarget
	}

	return GridURI{
		NodeName:   node,
		TargetName: target,
		Path:       path,
		Query:      query,
	}, nil
}

// CompileTag returns the routing tag the destination vehicle listens on.
func (u GridURI) CompileTag() string {
	return TagPrefix + u.NodeName
}

// CompileData returns the command payload delivered to the destination's
// router. Empty path and query contribute nothing, not empty segments.
func (u GridURI) CompileData() string {
	var b strings.Builder
	b.WriteString(PayloadScheme)
	b.WriteString(u.TargetName)
	if u.Path != "" {
		b.WriteByte('/')
		b.WriteString(u.Path)
	}
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	return b.String()
}

func cut(s string, sep byte) (before, after string, found bool) {
	if i := strings.IndexByte(s, sep); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
