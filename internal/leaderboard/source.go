package leaderboard

import "context"

// Source is one strategy for obtaining a raw ranking list.
type Source interface {
	Name() string
	Tag() SourceTag
	// Shape is the field layout of the records Attempt returns.
	Shape() Shape
	// Attempt returns at least one record or an error, an empty list with a
	// nil error is treated the same as a failure.
	Attempt(ctx context.Context, token, country string, limit int) ([]Record, error)
}

type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type UserLookup interface {
	User(ctx context.Context, token string, id int64) (map[string]any, error)
}
