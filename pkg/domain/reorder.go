package domain

import "fmt"

// ReindexPeaks sorts peaks by ascending retention time and assigns 1-based
// retention indices. Each peak's rank is the number of peaks with a strictly
// smaller retention time; ties are broken by list position and reported.
func (t *Trace) ReindexPeaks() Result {
	n := len(t.Peaks)
	if n <= 1 {
		// The rank pass below has nothing to compare against here.
		if n == 1 {
			t.Peaks[0].RetentionIndex = 1
		}
		return Result{}
	}

	var res Result
	ranks := make([]int, n)
	for i := range t.Peaks {
		rank := 0
		for j := range t.Peaks {
			if i == j {
				continue
			}
			ti, tj := t.Peaks[i].RetentionTime, t.Peaks[j].RetentionTime
			switch {
			case tj < ti:
				rank++
			case tj == ti && j < i:
				rank++
				res.Add(Issue{
					Code:     IssueDuplicateRetention,
					Severity: SeverityWarn,
					Message:  fmt.Sprintf("peaks %d and %d in %s share retention time %g", j+1, i+1, t.label(), ti),
					Trace:    t.ID,
					Peak:     i + 1,
				})
			}
		}
		ranks[i] = rank
	}

	sorted := make([]Peak, n)
	for i, rank := range ranks {
		sorted[rank] = t.Peaks[i]
		sorted[rank].RetentionIndex = rank + 1
	}
	t.Peaks = sorted
	return res
}
