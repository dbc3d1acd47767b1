package cases

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/meridianlaw/caseflow/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Case numbers look like 2608-0042: a YYMM bucket and a four-digit sequence
// that is strictly increasing within the bucket.
var caseNumberPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// ValidCaseNumber reports whether s is a well-formed case number.
func ValidCaseNumber(s string) bool {
	return caseNumberPattern.MatchString(s)
}

// nextCaseNumber allocates the next number for the current year-month
// bucket. The counter row is advanced with a single conditional upsert and
// read back inside tx, so concurrent creates serialize on the row and can
// never draw the same sequence.
func nextCaseNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	bucket := now.Format("0601")

	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"sequence": gorm.Expr("case_counters.sequence + 1")}),
	}).Create(&models.CaseCounter{Bucket: bucket, Sequence: 1}).Error
	if err != nil {
		return "", fmt.Errorf("advancing case counter: %w", err)
	}

	var counter models.CaseCounter
	if err := tx.WithContext(ctx).First(&counter, "bucket = ?", bucket).Error; err != nil {
		return "", fmt.Errorf("reading case counter: %w", err)
	}

	return fmt.Sprintf("%s-%04d", bucket, counter.Sequence), nil
}
