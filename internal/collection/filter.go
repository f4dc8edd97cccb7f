package collection

import (
	"strings"

	"github.com/and161185/studyshare/internal/model"
)

// ApplyFilter projects the filter onto rs. The search term matches
// case-insensitively as a substring of title, description or subject;
// subject and semester match exactly when set; dimensions compose with
// AND and an empty dimension matches everything. The result is always a
// subsequence of rs: order-preserving, idempotent, and recomputed from
// scratch so it cannot drift from the predicate.
func ApplyFilter(rs []model.Resource, f model.Filter) []model.Resource {
	out := make([]model.Resource, 0, len(rs))
	q := strings.ToLower(f.Search)
	for _, r := range rs {
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) &&
			!strings.Contains(strings.ToLower(r.Subject), q) {
			continue
		}
		if f.Subject != "" && r.Subject != f.Subject {
			continue
		}
		if f.Semester != "" && r.Semester != f.Semester {
			continue
		}
		out = append(out, r)
	}
	return out
}
