package poller

import "github.com/goodnatureofminers/blockpie/internal/model"

// PlanHeights returns the ascending heights to process for the given tip.
//
// A cursor that has not started yields only the tip. Otherwise every height
// after the last processed one (or from the start height, if nothing was
// processed yet) up to and including the tip is planned. Heights below the
// start height are never planned. When limit is positive at most limit of the
// lowest heights are returned and backlog reports whether any were left out.
func PlanHeights(cursor model.Cursor, tip uint64, limit int) (heights []uint64, backlog bool) {
	if !cursor.Started {
		return []uint64{tip}, false
	}

	from := cursor.StartHeight
	if cursor.Processed && cursor.LastProcessedHeight >= from {
		if cursor.LastProcessedHeight >= tip {
			return nil, false
		}
		from = cursor.LastProcessedHeight + 1
	}
	if from > tip {
		return nil, false
	}

	count := tip - from + 1
	if limit > 0 && count > uint64(limit) {
		count = uint64(limit)
		backlog = true
	}

	heights = make([]uint64, 0, count)
	for h := from; uint64(len(heights)) < count; h++ {
		heights = append(heights, h)
	}
	return heights, backlog
}
