package db

import (
	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/ValentinKolb/sKV/lib/value"
)

// samplesPerTable bounds the work Info does per table
const samplesPerTable = 100

// Info summarizes the engine state
type Info struct {
	Keyspaces int   `json:"keyspaces"`
	Tables    int   `json:"tables"`
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"` // estimate

	// spread of entries across all tables
	TableDistribution util.DistributionStats `json:"table_distribution"`
}

// Info collects statistics. All sizes are estimates based on a bounded sample of
// every table, so the cost does not grow with the number of entries.
func (e *Engine) Info() Info {
	var (
		info      Info
		histogram = util.NewSizeHistogram()
		sizes     []float64
	)

	e.keyspaces.Range(func(_ string, ks *keyspace) bool {
		info.Keyspaces++
		ks.tables.Range(func(_ string, t *table) bool {
			info.Tables++
			n := t.data.Size()
			info.Entries += n
			sizes = append(sizes, float64(n))

			count := 0
			t.data.Range(func(k string, v value.Value) bool {
				histogram.AddSample(len(k) + v.SizeBytes())
				count++
				return count < samplesPerTable
			})
			return true
		})
		return true
	})

	// weighted estimate, the median is less sensitive to a few large values
	perEntry := (histogram.MedianEstimate()*60 + histogram.AverageSize()*40) / 100
	info.SizeBytes = int64(perEntry) * int64(info.Entries)
	info.TableDistribution = util.NewDistributionStats(sizes)
	return info
}
