package dom

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dataSourceAttrs are checked in order when an image carries no src. Lazy
// loading libraries stash the real source in one of these.
var dataSourceAttrs = []string{"data-src", "data-original", "data-url"}

// ImageSourceCandidate resolves the best source attribute of an image node:
// src first, then lazy-loading data attributes, then the first URL of srcset.
func ImageSourceCandidate(img *html.Node) string {
	if src := strings.TrimSpace(GetAttr(img, "src")); src != "" {
		return src
	}
	for _, key := range dataSourceAttrs {
		if src := strings.TrimSpace(GetAttr(img, key)); src != "" {
			return src
		}
	}
	for _, part := range strings.Split(GetAttr(img, "srcset"), ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 && fields[0] != "" {
			return fields[0]
		}
	}
	return ""
}

// IsAbsoluteHTTP reports whether src is an absolute http or https URL.
func IsAbsoluteHTTP(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// SourceOrigin infers the origin of a pasted fragment: the scheme and host of
// the first absolute http(s) URL found on a link or an image anywhere in the
// fragment. Best-effort provenance, empty when the fragment carries no
// absolute URL.
func SourceOrigin(nodes []*html.Node) string {
	for _, root := range nodes {
		origin := ""
		Walk(root, func(n *html.Node) bool {
			if origin != "" {
				return false
			}
			var target string
			switch {
			case IsElement(n, atom.A):
				target = GetAttr(n, "href")
			case IsElement(n, atom.Img):
				target = GetAttr(n, "src")
				if target == "" {
					for _, key := range dataSourceAttrs[:2] {
						if target = GetAttr(n, key); target != "" {
							break
						}
					}
				}
			default:
				return true
			}
			target = strings.TrimSpace(target)
			if !IsAbsoluteHTTP(target) {
				return true
			}
			if u, err := url.Parse(target); err == nil && u.Host != "" {
				origin = u.Scheme + "://" + u.Host
				return false
			}
			return true
		})
		if origin != "" {
			return origin
		}
	}
	return ""
}

// ResolveImageSource canonicalizes a raw candidate source: protocol-relative
// sources are upgraded to https and root-relative ones are resolved against
// the inferred origin. Everything else is returned trimmed but unchanged.
func ResolveImageSource(src, origin string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/") && origin != "":
		return origin + src
	default:
		return src
	}
}
