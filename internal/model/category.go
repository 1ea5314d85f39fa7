package model

import "time"

// Category is a minimal view of the chart of accounts: just enough for
// rule targets to be verified at creation time. The full category tree is
// owned elsewhere.
type Category struct {
	CreatedAt time.Time
	Name      string
	ID        int64
	Active    bool
}
