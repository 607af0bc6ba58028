// Package assemble selects and pairs manifest filings into the master task table.
//
// Every step is deterministic: sorts are stable and groups are visited in sorted key
// order, so identical manifests always produce an identical table.
package assemble

import (
	"sort"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/models"
)

// Counts caps each category.
type Counts struct {
	A    int
	B    int
	YoY  int
	Peer int
}

// CountsFrom reads the category caps from configuration.
func CountsFrom(cfg config.AssembleConfig) Counts {
	return Counts{A: cfg.ACount, B: cfg.BCount, YoY: cfg.YoYCount, Peer: cfg.PeerCount}
}

// Assemble builds rows A, B, C (YoY), C (Peer) in that order.
func Assemble(ab, two []models.FilingRecord, counts Counts) []models.TaskRow {
	sorted := SortAB(ab)

	aRows, bRows := PickAB(sorted, counts.A, counts.B)
	yoyRows := PickYoY(two, counts.YoY)

	used := make(map[companyKey]bool, len(yoyRows))
	for _, r := range yoyRows {
		used[companyKey{r.First.Company, r.First.Ticker}] = true
	}
	peerRows := PickPeers(sorted, counts.Peer, used)

	rows := make([]models.TaskRow, 0, len(aRows)+len(bRows)+len(yoyRows)+len(peerRows))
	rows = append(rows, aRows...)
	rows = append(rows, bRows...)
	rows = append(rows, yoyRows...)
	rows = append(rows, peerRows...)
	return rows
}

// SortAB orders a copy of the AB manifest by Sector, then Company, then FilingDate
// descending.
func SortAB(ab []models.FilingRecord) []models.FilingRecord {
	sorted := append([]models.FilingRecord(nil), ab...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Sector != b.Sector {
			return a.Sector < b.Sector
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		return a.FilingDate > b.FilingDate
	})
	return sorted
}

// PickAB takes the first aCount sorted rows as A and the next bCount as B.
// Short inputs yield fewer rows.
func PickAB(sorted []models.FilingRecord, aCount, bCount int) (a, b []models.TaskRow) {
	aEnd := clamp(aCount, len(sorted))
	bEnd := clamp(aEnd+max(bCount, 0), len(sorted))

	for i, r := range sorted[:aEnd] {
		a = append(a, models.NewSingleTask(models.FormatTaskID(models.PrefixA, i+1), models.CategoryA, r))
	}
	for i, r := range sorted[aEnd:bEnd] {
		b = append(b, models.NewSingleTask(models.FormatTaskID(models.PrefixB, i+1), models.CategoryB, r))
	}
	return a, b
}

type yoyKey struct {
	Company string
	Ticker  string
	Sector  string
}

type yoyPick struct {
	key    yoyKey
	r1, r2 models.FilingRecord
}

// PickYoY pairs the two most recent distinct filing years of each company in the TWO
// manifest and keeps the first k companies by (Sector, Company). Rows with a blank
// Company, Ticker or Sector belong to no company.
func PickYoY(two []models.FilingRecord, k int) []models.TaskRow {
	if k <= 0 {
		return nil
	}

	groups := make(map[yoyKey][]models.FilingRecord)
	var keys []yoyKey
	for _, r := range two {
		if r.Company == "" || r.Ticker == "" || r.Sector == "" {
			continue
		}
		key := yoyKey{r.Company, r.Ticker, r.Sector}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Sector < b.Sector
	})

	var picks []yoyPick
	for _, key := range keys {
		grp := groups[key]
		if distinctYears(grp) < 2 {
			continue
		}

		byDate := append([]models.FilingRecord(nil), grp...)
		sort.SliceStable(byDate, func(i, j int) bool {
			return byDate[i].FilingDate > byDate[j].FilingDate
		})

		r1 := byDate[0]
		for _, r2 := range byDate[1:] {
			if r2.Year() != r1.Year() {
				picks = append(picks, yoyPick{key: key, r1: r1, r2: r2})
				break
			}
		}
	}

	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].key.Sector != picks[j].key.Sector {
			return picks[i].key.Sector < picks[j].key.Sector
		}
		return picks[i].key.Company < picks[j].key.Company
	})

	rows := make([]models.TaskRow, 0, min(k, len(picks)))
	for i, p := range picks[:clamp(k, len(picks))] {
		rows = append(rows, models.NewPairTask(models.FormatTaskID(models.PrefixYoY, i+1), models.CategoryYoY, p.r1, p.r2))
	}
	return rows
}

func distinctYears(records []models.FilingRecord) int {
	years := make(map[string]bool)
	for _, r := range records {
		if y := r.Year(); y != "" {
			years[y] = true
		}
	}
	return len(years)
}

type companyKey struct {
	Company string
	Ticker  string
}

// PickPeers pairs companies of the same sector from the sorted AB manifest, skipping
// companies in used and rows without a sector. Same-year pairs come first; when they
// fall short of k the whole sector is re-paired ignoring year, which may repeat pairs
// from the first stage. Rows without a filing year only take part in the second stage.
func PickPeers(abSorted []models.FilingRecord, k int, used map[companyKey]bool) []models.TaskRow {
	if k <= 0 {
		return nil
	}

	var candidates []models.FilingRecord
	for _, r := range abSorted {
		if !used[companyKey{r.Company, r.Ticker}] {
			candidates = append(candidates, r)
		}
	}

	sectors, bySector := groupBy(candidates, func(r models.FilingRecord) string { return r.Sector })

	var pairs [][2]models.FilingRecord
	full := func() bool { return len(pairs) >= k }

	// Stage 1: same sector, same year.
	for _, sector := range sectors {
		years, byYear := groupBy(bySector[sector], models.FilingRecord.Year)
		for _, year := range years {
			grp := append([]models.FilingRecord(nil), byYear[year]...)
			sort.SliceStable(grp, func(i, j int) bool { return grp[i].Company < grp[j].Company })
			pairs = appendPairs(pairs, grp, k)
			if full() {
				return peerRows(pairs)
			}
		}
	}

	// Stage 2: same sector, any year.
	for _, sector := range sectors {
		grp := append([]models.FilingRecord(nil), bySector[sector]...)
		sort.SliceStable(grp, func(i, j int) bool {
			yi, yj := grp[i].Year(), grp[j].Year()
			if (yi == "") != (yj == "") {
				return yj == ""
			}
			if yi != yj {
				return yi < yj
			}
			return grp[i].Company < grp[j].Company
		})
		pairs = appendPairs(pairs, grp, k)
		if full() {
			break
		}
	}

	return peerRows(pairs)
}

// appendPairs pairs rows 0-1, 2-3, ... dropping a trailing odd row, until k pairs exist.
func appendPairs(pairs [][2]models.FilingRecord, rows []models.FilingRecord, k int) [][2]models.FilingRecord {
	for i := 0; i+1 < len(rows) && len(pairs) < k; i += 2 {
		pairs = append(pairs, [2]models.FilingRecord{rows[i], rows[i+1]})
	}
	return pairs
}

func peerRows(pairs [][2]models.FilingRecord) []models.TaskRow {
	rows := make([]models.TaskRow, 0, len(pairs))
	for i, p := range pairs {
		rows = append(rows, models.NewPairTask(models.FormatTaskID(models.PrefixPeer, i+1), models.CategoryPeer, p[0], p[1]))
	}
	return rows
}

// groupBy buckets records by key, preserving input order within a bucket, and returns
// the keys sorted. Records with a blank key are dropped.
func groupBy(records []models.FilingRecord, keyOf func(models.FilingRecord) string) ([]string, map[string][]models.FilingRecord) {
	groups := make(map[string][]models.FilingRecord)
	var keys []string
	for _, r := range records {
		k := keyOf(r)
		if k == "" {
			continue
		}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Strings(keys)
	return keys, groups
}

func clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
