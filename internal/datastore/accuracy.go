// accuracy.go: running accuracy computed from user corrections
package datastore

// AccuracySummary is the count-correctness ratio over corrected results.
// A corrected result is "correct" when the corrected count equals the
// original count. Precision and recall are defined identically to accuracy
// in this design: the store tracks count-correctness, not a per-class
// confusion matrix.
type AccuracySummary struct {
	TotalCorrected  int64   `json:"total_corrected"`
	Correct         int64   `json:"correct"`
	AccuracyPercent float64 `json:"accuracy_percent"`
}

// PrecisionPercent equals AccuracyPercent under the simplified metric.
func (a AccuracySummary) PrecisionPercent() float64 { return a.AccuracyPercent }

// RecallPercent equals AccuracyPercent under the simplified metric.
func (a AccuracySummary) RecallPercent() float64 { return a.AccuracyPercent }

type accuracyRow struct {
	ObjectType string
	Total      int64
	Correct    int64
}

// AccuracySummary computes the overall accuracy across all corrected results.
func (ds *DataStore) AccuracySummary() (AccuracySummary, error) {
	var row accuracyRow
	err := ds.DB.Model(&Correction{}).
		Select("COUNT(*) as total, SUM(CASE WHEN corrections.corrected_count = count_results.count THEN 1 ELSE 0 END) as correct").
		Joins("JOIN count_results ON count_results.result_id = corrections.result_ref").
		Scan(&row).Error
	if err != nil {
		return AccuracySummary{}, dbError("computing accuracy", err)
	}
	return summaryFromRow(row), nil
}

// AccuracyByType computes per-object-type accuracy across corrected results.
func (ds *DataStore) AccuracyByType() (map[string]AccuracySummary, error) {
	var rows []accuracyRow
	err := ds.DB.Model(&Correction{}).
		Select("count_results.object_type as object_type, COUNT(*) as total, SUM(CASE WHEN corrections.corrected_count = count_results.count THEN 1 ELSE 0 END) as correct").
		Joins("JOIN count_results ON count_results.result_id = corrections.result_ref").
		Group("count_results.object_type").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError("computing accuracy by type", err)
	}

	out := make(map[string]AccuracySummary, len(rows))
	for _, row := range rows {
		out[row.ObjectType] = summaryFromRow(row)
	}
	return out, nil
}

func summaryFromRow(row accuracyRow) AccuracySummary {
	s := AccuracySummary{TotalCorrected: row.Total, Correct: row.Correct}
	if row.Total > 0 {
		s.AccuracyPercent = float64(row.Correct) / float64(row.Total) * 100
	}
	return s
}
