package recommend

import (
	"errors"
	"fmt"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// Contract violations by the caller. Anything else the engine meets in a
// snapshot (unknown users, unknown products, brandless products) is skipped.
var (
	ErrNilSnapshot       = errors.New("snapshot is nil")
	ErrMissingUserID     = errors.New("user has no id")
	ErrMissingOrderOwner = errors.New("order has no owning user")
	ErrMissingProductID  = errors.New("product has no id")
)

// Validate checks the snapshot for malformed records
func Validate(snap *models.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	for i, u := range snap.Users {
		if u.ID == "" {
			return fmt.Errorf("users[%d]: %w", i, ErrMissingUserID)
		}
	}
	for i, o := range snap.Orders {
		if o.UserID == "" {
			return fmt.Errorf("orders[%d] (id %q): %w", i, o.ID, ErrMissingOrderOwner)
		}
	}
	for i, p := range snap.Products {
		if p.ID == "" {
			return fmt.Errorf("products[%d] (%q): %w", i, p.Name, ErrMissingProductID)
		}
	}
	return nil
}
