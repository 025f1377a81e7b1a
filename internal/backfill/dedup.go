// internal/backfill/dedup.go
package backfill

import (
	"sort"
	"strings"

	"dealflow-workers/internal/models"
)

var legalSuffixes = map[string]bool{
	"llc": true, "inc": true, "corp": true, "lp": true, "ltd": true,
}

// NormalizeName folds a company name for duplicate grouping: lowercase,
// punctuation stripped, trailing legal suffixes dropped, spaces
// collapsed. "Summit Roll-Up Partners, LLC" and "summit roll up
// partners" land on the same key.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '\'':
			// dropped outright so "L.L.C." folds to "llc"
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 0 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// MergePlan describes one duplicate group: the keeper with merged
// fields already applied, and the rows to archive under it.
type MergePlan struct {
	NormalizedName string
	Keeper         models.BuyerCriteria
	DuplicateIDs   []string
}

// PlanMerges groups active buyers by normalized name and plans one
// merge per group with more than one member. Archived rows are ignored,
// so running the plan over an already-deduplicated set yields nothing.
func PlanMerges(buyers []models.BuyerCriteria) []MergePlan {
	groups := make(map[string][]models.BuyerCriteria)
	var order []string
	for _, b := range buyers {
		if b.Archived {
			continue
		}
		key := NormalizeName(b.CompanyName)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], b)
	}
	sort.Strings(order)

	var plans []MergePlan
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		plans = append(plans, planGroup(key, group))
	}
	return plans
}

func planGroup(key string, group []models.BuyerCriteria) MergePlan {
	// keeper: most populated scalars, then oldest, then lowest id
	sort.Slice(group, func(i, j int) bool {
		si, sj := scalarCount(group[i]), scalarCount(group[j])
		if si != sj {
			return si > sj
		}
		if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		}
		return group[i].BuyerID < group[j].BuyerID
	})

	keeper := group[0]
	dups := make([]models.BuyerCriteria, len(group)-1)
	copy(dups, group[1:])

	// scalars fill oldest-first so the earliest recorded value wins
	sort.Slice(dups, func(i, j int) bool {
		if !dups[i].CreatedAt.Equal(dups[j].CreatedAt) {
			return dups[i].CreatedAt.Before(dups[j].CreatedAt)
		}
		return dups[i].BuyerID < dups[j].BuyerID
	})

	dupIDs := make([]string, 0, len(dups))
	for _, d := range dups {
		fillScalars(&keeper, d)
		keeper.TargetGeographies = unionSorted(keeper.TargetGeographies, d.TargetGeographies)
		keeper.TargetServices = unionSorted(keeper.TargetServices, d.TargetServices)
		dupIDs = append(dupIDs, d.BuyerID)
	}
	keeper.TargetGeographies = unionSorted(keeper.TargetGeographies, nil)
	keeper.TargetServices = unionSorted(keeper.TargetServices, nil)

	return MergePlan{NormalizedName: key, Keeper: keeper, DuplicateIDs: dupIDs}
}

func scalarCount(b models.BuyerCriteria) int {
	n := 0
	for _, s := range []string{b.FirmID, b.ContactEmail, b.BuyerType, b.ThesisText, b.GeographyMode} {
		if s != "" {
			n++
		}
	}
	for _, v := range []int64{b.RevenueMin, b.RevenueMax, b.EBITDAMin, b.EBITDAMax} {
		if v != 0 {
			n++
		}
	}
	return n
}

func fillScalars(keeper *models.BuyerCriteria, dup models.BuyerCriteria) {
	if keeper.FirmID == "" {
		keeper.FirmID = dup.FirmID
	}
	if keeper.ContactEmail == "" {
		keeper.ContactEmail = dup.ContactEmail
	}
	if keeper.BuyerType == "" {
		keeper.BuyerType = dup.BuyerType
	}
	if keeper.ThesisText == "" {
		keeper.ThesisText = dup.ThesisText
	}
	if keeper.GeographyMode == "" {
		keeper.GeographyMode = dup.GeographyMode
	}
	if keeper.RevenueMin == 0 {
		keeper.RevenueMin = dup.RevenueMin
	}
	if keeper.RevenueMax == 0 {
		keeper.RevenueMax = dup.RevenueMax
	}
	if keeper.EBITDAMin == 0 {
		keeper.EBITDAMin = dup.EBITDAMin
	}
	if keeper.EBITDAMax == 0 {
		keeper.EBITDAMax = dup.EBITDAMax
	}
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		if s != "" {
			set[s] = true
		}
	}
	for _, s := range b {
		if s != "" {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
