package archive

import (
	"context"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Repository interface {
		InsertAttributions(ctx context.Context, attributions []model.Attribution) error
		MinerCounts(ctx context.Context) ([]model.AggregateEntry, error)
	}
)
