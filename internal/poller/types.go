package poller

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockpie/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	ChainClient interface {
		GetTip(ctx context.Context) (model.ChainTip, error)
		GetBlock(ctx context.Context, q model.BlockQuery) (*model.Block, error)
	}
	Attributor interface {
		Attribute(block *model.Block) model.Attribution
	}
	AggregateStore interface {
		Merge(attr model.Attribution)
		Persist() error
		Dirty() bool
		Snapshot() []model.AggregateEntry
	}
	CheckpointStore interface {
		Save(cursor model.Cursor) error
	}
	Archive interface {
		Write(ctx context.Context, attr model.Attribution) error
	}
	Renderer interface {
		Render(ctx context.Context, report model.Report) error
	}
	BlockProcessor interface {
		Process(ctx context.Context, heights []uint64, merged func(height uint64)) error
	}
	Metrics interface {
		ObserveFetchTip(err error, started time.Time)
		ObserveProcessBatch(err error, heights int, started time.Time)
		ObserveProcessHeight(err error, height uint64, started time.Time)
		ObservePersist(err error, started time.Time)
		ObserveAttribution(algorithm model.Algorithm)
		ObserveState(state string)
		SetTip(tip model.ChainTip)
		SetLastProcessed(height uint64)
	}
)
