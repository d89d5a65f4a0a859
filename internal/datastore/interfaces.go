// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the rest of the system performs against it.
type Interface interface {
	Open() error
	Close() error

	SaveResult(result *CountResult) error
	GetResult(resultID string) (CountResult, error)
	GetAllResults(limit, offset int) ([]CountResult, error)

	SaveCorrection(resultID string, correctedCount int) error
	AccuracySummary() (AccuracySummary, error)
	AccuracyByType() (map[string]AccuracySummary, error)

	SaveLearnedCategory(category *LearnedCategory) error
	GetLearnedCategories() ([]LearnedCategory, error)
	DeleteLearnedCategory(name string) error

	Statistics() (Statistics, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a new datastore instance based on the output settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// SaveResult stores a new count result.
func (ds *DataStore) SaveResult(result *CountResult) error {
	if err := ds.DB.Create(result).Error; err != nil {
		return errors.New(fmt.Errorf("saving count result: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("result_id", result.ResultID).
			Build()
	}
	return nil
}

// GetResult retrieves a count result by its external id, including any
// attached correction.
func (ds *DataStore) GetResult(resultID string) (CountResult, error) {
	var result CountResult
	err := ds.DB.Preload("Correction").Where("result_id = ?", resultID).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CountResult{}, errors.Newf("result %q not found", resultID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return CountResult{}, errors.New(fmt.Errorf("getting result %s: %w", resultID, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return result, nil
}

// GetAllResults returns stored results newest first, with pagination.
func (ds *DataStore) GetAllResults(limit, offset int) ([]CountResult, error) {
	if limit <= 0 {
		limit = 10
	}
	var results []CountResult
	err := ds.DB.Preload("Correction").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("listing results: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return results, nil
}

// SaveCorrection stores the corrected count for a result, overwriting any
// previous correction for the same result id.
func (ds *DataStore) SaveCorrection(resultID string, correctedCount int) error {
	// The result must exist; a correction for an unknown id is a distinct
	// not-found condition rather than a silent insert.
	if _, err := ds.GetResult(resultID); err != nil {
		return err
	}

	correction := Correction{
		ResultRef:      resultID,
		CorrectedCount: correctedCount,
	}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "result_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"corrected_count", "updated_at"}),
	}).Create(&correction).Error
	if err != nil {
		return errors.New(fmt.Errorf("saving correction: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("result_id", resultID).
			Build()
	}
	return nil
}

// SaveLearnedCategory stores a learned category registry entry.
func (ds *DataStore) SaveLearnedCategory(category *LearnedCategory) error {
	if err := ds.DB.Create(category).Error; err != nil {
		return errors.New(fmt.Errorf("saving learned category: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("name", category.Name).
			Build()
	}
	return nil
}

// GetLearnedCategories returns all registered learned categories.
func (ds *DataStore) GetLearnedCategories() ([]LearnedCategory, error) {
	var categories []LearnedCategory
	if err := ds.DB.Find(&categories).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing learned categories: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return categories, nil
}

// DeleteLearnedCategory removes a learned category registry entry by name.
func (ds *DataStore) DeleteLearnedCategory(name string) error {
	res := ds.DB.Where("name = ?", name).Delete(&LearnedCategory{})
	if res.Error != nil {
		return errors.New(fmt.Errorf("deleting learned category: %w", res.Error)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("name", name).
			Build()
	}
	if res.RowsAffected == 0 {
		return errors.Newf("learned category %q not found", name).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// Statistics summarizes the stored results.
type Statistics struct {
	TotalResults      int64            `json:"total_results"`
	TotalCorrections  int64            `json:"total_corrections"`
	AverageConfidence float64          `json:"average_confidence"`
	ByObjectType      map[string]int64 `json:"by_object_type"`
}

// Statistics returns aggregate counts over the stored results.
func (ds *DataStore) Statistics() (Statistics, error) {
	stats := Statistics{ByObjectType: make(map[string]int64)}

	if err := ds.DB.Model(&CountResult{}).Count(&stats.TotalResults).Error; err != nil {
		return stats, dbError("counting results", err)
	}
	if err := ds.DB.Model(&Correction{}).Count(&stats.TotalCorrections).Error; err != nil {
		return stats, dbError("counting corrections", err)
	}

	var avg *float64
	if err := ds.DB.Model(&CountResult{}).Select("AVG(confidence)").Scan(&avg).Error; err != nil {
		return stats, dbError("averaging confidence", err)
	}
	if avg != nil {
		stats.AverageConfidence = *avg
	}

	type typeCount struct {
		ObjectType string
		N          int64
	}
	var rows []typeCount
	err := ds.DB.Model(&CountResult{}).
		Select("object_type, COUNT(*) as n").
		Group("object_type").
		Scan(&rows).Error
	if err != nil {
		return stats, dbError("grouping results by type", err)
	}
	for _, row := range rows {
		stats.ByObjectType[row.ObjectType] = row.N
	}
	return stats, nil
}

func dbError(op string, err error) error {
	return errors.New(fmt.Errorf("%s: %w", op, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}
