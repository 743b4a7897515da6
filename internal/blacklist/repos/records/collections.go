package records

import "github.com/haukened/rr-blacklist/internal/blacklist/domain"

type (
	BlacklistTypes   = Collection[domain.BlacklistType]
	BlacklistEntries = Collection[domain.BlacklistEntry]
	Recommendations  = Collection[domain.RecommendationEntry]
	Users            = Collection[domain.User]
)

// Gateways bundles the collections the engine watches and writes.
type Gateways struct {
	Types           *BlacklistTypes
	Entries         *BlacklistEntries
	Recommendations *Recommendations
	Users           *Users
}

// OpenGateways creates (if needed) and returns every collection on db.
func OpenGateways(db *DB) (*Gateways, error) {
	types, err := NewCollection[domain.BlacklistType](db, BucketBlacklistTypes)
	if err != nil {
		return nil, err
	}
	entries, err := NewCollection[domain.BlacklistEntry](db, BucketBlacklistEntries)
	if err != nil {
		return nil, err
	}
	recs, err := NewCollection[domain.RecommendationEntry](db, BucketRecommendations)
	if err != nil {
		return nil, err
	}
	users, err := NewCollection[domain.User](db, BucketUsers)
	if err != nil {
		return nil, err
	}
	return &Gateways{Types: types, Entries: entries, Recommendations: recs, Users: users}, nil
}
