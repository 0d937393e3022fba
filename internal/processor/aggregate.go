package processor

import "tokentra/internal/models"

// Bucket accumulates cost and request count for one dimension value.
type Bucket struct {
	Cost  float64
	Count int
}

// Aggregated is the rollup of one record batch, sliced by the
// dimensions alerts can scope to.
type Aggregated struct {
	TotalCost    float64
	TotalTokens  int
	RequestCount int
	ErrorCount   int
	ByFeature    map[string]Bucket
	ByTeam       map[string]Bucket
	ByProject    map[string]Bucket
	ByModel      map[string]Bucket
}

// Aggregate rolls up a record batch.
func Aggregate(records []*models.UsageRecord) *Aggregated {
	agg := &Aggregated{
		RequestCount: len(records),
		ByFeature:    make(map[string]Bucket),
		ByTeam:       make(map[string]Bucket),
		ByProject:    make(map[string]Bucket),
		ByModel:      make(map[string]Bucket),
	}

	for _, record := range records {
		cost := record.TotalCost()
		agg.TotalCost += cost
		agg.TotalTokens += record.TotalTokens()
		if record.IsError {
			agg.ErrorCount++
		}

		if record.Feature != nil && *record.Feature != "" {
			add(agg.ByFeature, *record.Feature, cost)
		}
		if record.TeamID != nil && *record.TeamID != "" {
			add(agg.ByTeam, *record.TeamID, cost)
		}
		if record.ProjectID != nil && *record.ProjectID != "" {
			add(agg.ByProject, *record.ProjectID, cost)
		}
		add(agg.ByModel, record.Model, cost)
	}
	return agg
}

func add(buckets map[string]Bucket, key string, cost float64) {
	bucket := buckets[key]
	bucket.Cost += cost
	bucket.Count++
	buckets[key] = bucket
}
