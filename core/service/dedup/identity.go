// Package dedup derives stable job identities and tests candidates against
// stored postings.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Hash input prefixes keep URL-derived and title/company-derived identities
// in disjoint keyspaces.
const (
	urlKeyPrefix = "job_url_"
	tcKeyPrefix  = "job_tc_"
)

// JobID derives the deterministic content-hash identity for a posting.
// It hashes the normalized apply URL when one is usable, otherwise the
// normalized title and company. Two extractions of the same real posting
// must yield the same id across processes and time.
func JobID(title, company, applyURL string) string {
	if normalized := NormalizeURL(applyURL); normalized != "" {
		return hash(urlKeyPrefix + normalized)
	}
	return hash(tcKeyPrefix + NormalizeText(title) + "|" + NormalizeText(company))
}

// NormalizeURL canonicalizes an apply URL: lower-cased scheme, host, and
// path, query string and fragment stripped (tracking parameters must not
// change identity). Returns "" when the input is unusable.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Host)
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))
	return scheme + "://" + host + path
}

// NormalizeText lower-cases and collapses internal whitespace.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
