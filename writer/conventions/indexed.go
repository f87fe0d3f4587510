package conventions

import (
	"sort"
	"strconv"
	"strings"

	"github.com/metrico/qryn-ai/writer/model"
)

// GroupIndexed collects attributes named {prefix}.{N}.{field} into one record
// per N, ordered by N. Keys with a non-numeric or negative N or without a
// field segment are ignored.
func GroupIndexed(attrs model.Attributes, prefix string) []map[string]any {
	p := prefix + "."
	groups := map[int]map[string]any{}
	for k, v := range attrs {
		if !strings.HasPrefix(k, p) {
			continue
		}
		idxStr, field, ok := strings.Cut(k[len(p):], ".")
		if !ok || field == "" {
			continue
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 {
			continue
		}
		g, ok := groups[idx]
		if !ok {
			g = map[string]any{}
			groups[idx] = g
		}
		g[field] = v.Any()
	}
	if len(groups) == 0 {
		return nil
	}
	idxs := make([]int, 0, len(groups))
	for i := range groups {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	res := make([]map[string]any, 0, len(idxs))
	for _, i := range idxs {
		res = append(res, groups[i])
	}
	return res
}
