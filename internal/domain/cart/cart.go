package cart

import "context"

// Item is one product row in a user's cart.
type Item struct {
	UserID    string
	ProductID string
	Quantity  int
}

// Repository defines cart persistence operations. Clearing happens inside the
// order transaction, so it lives on the order side; this interface covers the
// read path used to build order lines.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Item, error)
}
