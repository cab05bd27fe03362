package models

import (
	"time"

	"gorm.io/gorm"
)

const hasChildren = "(EXISTS (SELECT 1 FROM accounts WHERE accounts.group_id = budget_groups.id) OR EXISTS (SELECT 1 FROM sub_accounts WHERE sub_accounts.group_id = budget_groups.id))"

// PruneEmptyGroups deletes groups that have not had any children for
// longer than after.
//
// Groups that lost their last child are marked with the current time,
// groups that gained children again are unmarked. It returns the number
// of deleted groups.
func PruneEmptyGroups(db *gorm.DB, now time.Time, after time.Duration) (int64, error) {
	var deleted int64
	now = now.In(time.UTC)

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Group{}).
			Where("empty_since IS NOT NULL").
			Where(hasChildren).
			UpdateColumn("empty_since", nil).Error
		if err != nil {
			return err
		}

		err = tx.Model(&Group{}).
			Where("empty_since IS NULL").
			Where("NOT " + hasChildren).
			UpdateColumn("empty_since", now).Error
		if err != nil {
			return err
		}

		res := tx.
			Where("empty_since IS NOT NULL AND empty_since <= ?", now.Add(-after)).
			Where("NOT " + hasChildren).
			Delete(&Group{})

		deleted = res.RowsAffected
		return res.Error
	})

	return deleted, err
}
