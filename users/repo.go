package users

import "context"

// Repository is the external user-record collaborator. Records are looked up
// or created idempotently by (username, email); the percentile-rank formula is
// owned by the implementation and treated here as an opaque pure function.
type Repository interface {
	// CreateOrGetUserRecord returns the record for the given identity,
	// creating it with zero points if it does not exist yet.
	CreateOrGetUserRecord(ctx context.Context, username, email string) (*UserRecord, error)

	// PercentileRank returns the standing of the given point total relative
	// to the whole population.
	PercentileRank(ctx context.Context, points int) (int, error)
}
