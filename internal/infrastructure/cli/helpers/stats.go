package helpers

import (
	"sort"

	"github.com/doeshing/dexplorer/internal/domain"
)

// KindStatistic counts executions of one query kind.
type KindStatistic struct {
	Kind      domain.QueryKind
	Count     int
	Failed    int
	AverageMS float64
}

// HistoryStatistics summarizes a slice of log entries.
type HistoryStatistics struct {
	Total      int
	Successful int
	Kinds      []KindStatistic
	TopQueries []QueryStatistic
}

// QueryStatistic represents how often a piece of code was run.
type QueryStatistic struct {
	Code  string
	Count int
}

// AnalyzeHistory computes statistics over entries.
func AnalyzeHistory(entries []domain.LogEntry, topN int) HistoryStatistics {
	stats := HistoryStatistics{Total: len(entries)}
	byKind := make(map[domain.QueryKind]*KindStatistic)
	totalMS := make(map[domain.QueryKind]int64)
	frequency := make(map[string]int)

	for _, entry := range entries {
		ks, ok := byKind[entry.Type]
		if !ok {
			ks = &KindStatistic{Kind: entry.Type}
			byKind[entry.Type] = ks
		}
		ks.Count++
		totalMS[entry.Type] += entry.ExecutionTimeMS
		if entry.Failed() {
			ks.Failed++
		} else {
			stats.Successful++
		}
		frequency[entry.CodeInfo]++
	}

	for kind, ks := range byKind {
		ks.AverageMS = float64(totalMS[kind]) / float64(ks.Count)
		stats.Kinds = append(stats.Kinds, *ks)
	}
	sort.Slice(stats.Kinds, func(i, j int) bool {
		if stats.Kinds[i].Count == stats.Kinds[j].Count {
			return stats.Kinds[i].Kind < stats.Kinds[j].Kind
		}
		return stats.Kinds[i].Count > stats.Kinds[j].Count
	})

	stats.TopQueries = calculateTopQueries(frequency, topN)
	return stats
}

// SuccessRate returns the share of successful executions as a percentage.
func (h HistoryStatistics) SuccessRate() float64 {
	return CalculateSuccessRate(h.Successful, h.Total)
}

func calculateTopQueries(frequency map[string]int, limit int) []QueryStatistic {
	stats := make([]QueryStatistic, 0, len(frequency))
	for code, count := range frequency {
		stats = append(stats, QueryStatistic{Code: code, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Code < stats[j].Code
		}
		return stats[i].Count > stats[j].Count
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, executedCount int) float64 {
	if executedCount == 0 {
		return 0.0
	}
	return float64(successfulCount) / float64(executedCount) * 100.0
}
