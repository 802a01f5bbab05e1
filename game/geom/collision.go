package geom

import "sort"

// Item is a static collision target: a lost object or an office.
type Item struct {
	Position Point
	Width    float64
}

// Gatherer is a collector that moved in a straight line during one tick.
type Gatherer struct {
	Start Point
	End   Point
	Width float64
}

// ItemGathererProvider supplies the indexed items and gatherers examined by
// FindGatherEvents. Indices reported in events refer back to the provider.
type ItemGathererProvider interface {
	ItemsCount() int
	Item(i int) Item
	GatherersCount() int
	Gatherer(i int) Gatherer
}

// GatheringEvent records that a gatherer came within collection range of an
// item. Time is the fraction of the gatherer's displacement, in [0, 1].
type GatheringEvent struct {
	ItemIndex     int
	GathererIndex int
	SqDistance    float64
	Time          float64
}

// collectPoint projects c onto the segment a->b. It returns the squared
// distance from c to the line through a and b, and the projection ratio.
// The displacement must be nonzero.
func collectPoint(a, b, c Point) (sqDistance, projRatio float64) {
	ux := c.X - a.X
	uy := c.Y - a.Y
	vx := b.X - a.X
	vy := b.Y - a.Y

	uDotV := ux*vx + uy*vy
	uLen2 := ux*ux + uy*uy
	vLen2 := vx*vx + vy*vy

	return uLen2 - (uDotV*uDotV)/vLen2, uDotV / vLen2
}

// FindGatherEvents returns every item/gatherer collection within the tick,
// stably sorted by ascending time. Gatherers that did not move produce no
// events. An item is collected when its projection falls inside the segment
// and its distance to the path is strictly less than the combined widths.
func FindGatherEvents(provider ItemGathererProvider) []GatheringEvent {
	var events []GatheringEvent

	for g := 0; g < provider.GatherersCount(); g++ {
		gatherer := provider.Gatherer(g)
		if gatherer.Start.X == gatherer.End.X && gatherer.Start.Y == gatherer.End.Y {
			continue
		}

		for i := 0; i < provider.ItemsCount(); i++ {
			item := provider.Item(i)

			sqDistance, projRatio := collectPoint(gatherer.Start, gatherer.End, item.Position)
			collectRadius := item.Width + gatherer.Width

			if projRatio < 0 || projRatio > 1 || sqDistance >= collectRadius*collectRadius {
				continue
			}

			events = append(events, GatheringEvent{
				ItemIndex:     i,
				GathererIndex: g,
				SqDistance:    sqDistance,
				Time:          projRatio,
			})
		}
	}

	sort.SliceStable(events, func(lhs, rhs int) bool {
		return events[lhs].Time < events[rhs].Time
	})
	return events
}
