// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// arxivIDPattern matches new-style arXiv IDs with an optional version:
// "2301.07041", "2301.07041v2".
var arxivIDPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})(?:v\d+)?`)

// fileExt matches document extensions dropped from path segments. Numeric
// suffixes such as "1234.5678" are part of the identifier and stay.
var fileExt = regexp.MustCompile(`\.[A-Za-z][A-Za-z0-9]{0,4}$`)

// slugUnsafe matches runs of characters folded to "-" in query slugs.
var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9._]+`)

// IdentifierFor derives a stable record identifier from a paper URL. arXiv
// links yield the bare arXiv ID without version. Other URLs yield their last
// path segment without a file extension, suffixed with a slug of the query
// when there is one, so "forum?id=A" and "forum?id=B" stay distinct.
// Anything else yields a hash slug.
func IdentifierFor(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if m := arxivIDPattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
		return urlHashSlug(rawURL)
	}

	if strings.HasSuffix(strings.ToLower(u.Hostname()), "arxiv.org") {
		if m := arxivIDPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	}

	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	base = fileExt.ReplaceAllString(base, "")
	if base == "" || base == "." || base == "/" {
		return urlHashSlug(rawURL)
	}
	if u.RawQuery != "" {
		q := strings.Trim(slugUnsafe.ReplaceAllString(u.RawQuery, "-"), "-")
		if q == "" {
			return urlHashSlug(rawURL)
		}
		return base + "-" + q
	}
	return base
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}
