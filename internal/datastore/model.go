// model.go this code defines the data model for the application
package datastore

import "time"

// CountResult represents one produced object count. Immutable once written
// except for the attached correction.
type CountResult struct {
	ID                 uint   `gorm:"primaryKey"`
	ResultID           string `gorm:"uniqueIndex;size:36;not null"` // external UUID handed to callers
	ObjectType         string `gorm:"index:idx_results_type"`
	Count              int    `gorm:"not null"`
	Confidence         float64
	ImagePath          string // stored upload, relative to the data dir
	SegmentedImagePath string // annotated image, empty when count == 0
	Source             string `gorm:"size:16"` // "detector" or "fewshot"
	ProcessingTimeMs   int64
	CreatedAt          time.Time   `gorm:"index"`
	Correction         *Correction `gorm:"foreignKey:ResultRef;references:ResultID;constraint:OnDelete:CASCADE"`
}

// Correction holds the caller-submitted corrected count for a result. The
// unique index on ResultRef enforces at most one retained correction per
// result; resubmissions overwrite (last write wins).
type Correction struct {
	ID             uint   `gorm:"primaryKey"`
	ResultRef      string `gorm:"uniqueIndex;size:36;not null"`
	CorrectedCount int    `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LearnedCategory is the registry entry for a few-shot object category.
type LearnedCategory struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex;size:128;not null"` // case-normalized
	TrainingImages int    `gorm:"not null"`
	CreatedAt      time.Time
}

// Sources for CountResult records.
const (
	SourceDetector = "detector"
	SourceFewShot  = "fewshot"
)
