package domain

import "context"

type Service interface {
	// Load reads the pipeline input for s from its collaborators.
	Load(ctx context.Context, s Subject) (Input, error)
	// Quote loads and prices s without persisting anything.
	Quote(ctx context.Context, s Subject) (*Quote, error)
}
