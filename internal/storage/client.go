// Package storage turns indirect image references into URLs that can be
// downloaded directly.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned when no resolver handles a reference.
var ErrUnsupportedScheme = errors.New("storage: unsupported reference scheme")

// Kind classifies an image reference.
type Kind int

const (
	KindEmpty Kind = iota
	KindHTTP       // Directly downloadable
	KindLocal      // file:// URI or absolute path
	KindObject     // Indirect bucket reference, e.g. s3://bucket/key
	KindUnknown
)

// Ref is a parsed image reference.
type Ref struct {
	Raw    string
	Kind   Kind
	Scheme string
	Bucket string
	Key    string
	Path   string // Local file path for KindLocal
}

// Parse classifies raw without touching the network.
func Parse(raw string) Ref {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{Kind: KindEmpty}
	}
	if strings.HasPrefix(raw, "/") {
		return Ref{Raw: raw, Kind: KindLocal, Scheme: "file", Path: raw}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Ref{Raw: raw, Kind: KindUnknown}
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https":
		return Ref{Raw: raw, Kind: KindHTTP, Scheme: scheme}
	case "file":
		return Ref{Raw: raw, Kind: KindLocal, Scheme: scheme, Path: u.Path}
	default:
		return Ref{
			Raw:    raw,
			Kind:   KindObject,
			Scheme: scheme,
			Bucket: u.Host,
			Key:    strings.TrimPrefix(u.Path, "/"),
		}
	}
}

// URLResolver translates an object reference into a downloadable URL.
type URLResolver interface {
	ResolveURL(ctx context.Context, ref Ref) (string, error)
}

// Resolvers dispatches object references by scheme.
type Resolvers map[string]URLResolver

// ResolveURL returns the downloadable address for ref. HTTP references are
// returned unchanged.
func (r Resolvers) ResolveURL(ctx context.Context, ref Ref) (string, error) {
	switch ref.Kind {
	case KindHTTP:
		return ref.Raw, nil
	case KindObject:
		res, ok := r[ref.Scheme]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, ref.Scheme)
		}
		if ref.Bucket == "" || ref.Key == "" {
			return "", fmt.Errorf("storage: malformed object reference %q", ref.Raw)
		}
		return res.ResolveURL(ctx, ref)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, ref.Raw)
	}
}
