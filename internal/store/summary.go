package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Summary holds the registry totals shown on the dashboard.
type Summary struct {
	Holders        int            `json:"holders"`
	Weapons        int            `json:"weapons"`
	Movements      int            `json:"movements"`
	Municipalities int            `json:"municipalities"`
	ByCategory     map[string]int `json:"by_category"`
}

// GetSummary counts active holders and weapons, all movements and the
// weapons per category.
func GetSummary(ctx context.Context, db *sql.DB) (*Summary, error) {
	s := &Summary{ByCategory: make(map[string]int)}
	err := db.QueryRowContext(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM detentori WHERE deleted_at IS NULL),
		     (SELECT COUNT(*) FROM armi WHERE deleted_at IS NULL),
		     (SELECT COUNT(*) FROM trasferimenti),
		     (SELECT COUNT(*) FROM comuni)`,
	).Scan(&s.Holders, &s.Weapons, &s.Movements, &s.Municipalities)
	if err != nil {
		return nil, fmt.Errorf("counting registry: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT categoria, COUNT(*) FROM armi WHERE deleted_at IS NULL
		 GROUP BY categoria ORDER BY categoria`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting weapons by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		s.ByCategory[category] = n
	}
	return s, rows.Err()
}
