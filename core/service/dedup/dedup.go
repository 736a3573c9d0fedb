package dedup

import (
	"context"

	"jobscout/core/port/out"
)

// Checker tests posting candidates against the store in two tiers: an exact
// content-hash lookup, then a fuzzy lookup over normalized descriptive
// fields for candidates whose URL identity differs only by tracking noise.
type Checker struct {
	store out.JobStore
}

// NewChecker creates a duplicate checker over the given store.
func NewChecker(store out.JobStore) *Checker {
	return &Checker{store: store}
}

// IsDuplicate reports whether a candidate with the given fields is already
// stored. Tier 1 is the exact id match; tier 2 searches stored postings
// whose normalized title+company+applyUrl combination matches.
func (c *Checker) IsDuplicate(ctx context.Context, title, company, applyURL string) (bool, error) {
	id := JobID(title, company, applyURL)

	exists, err := c.store.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	similar, err := c.store.FindSimilar(ctx, NormalizeText(title), NormalizeText(company), NormalizeURL(applyURL))
	if err != nil {
		return false, err
	}
	for _, job := range similar {
		if NormalizeText(job.Title) == NormalizeText(title) &&
			NormalizeText(job.Company) == NormalizeText(company) {
			return true, nil
		}
		if u := NormalizeURL(applyURL); u != "" && NormalizeURL(job.ApplyURL) == u {
			return true, nil
		}
	}
	return false, nil
}
