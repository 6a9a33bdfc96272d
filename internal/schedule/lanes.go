package schedule

import (
	"sort"
	"time"

	"leihlokal/internal/models"
)

// Block is one visual booking: a single booking, or several identical bookings
// (same item, customer and range) merged across contiguous lanes.
type Block struct {
	ItemID       string
	CustomerName string
	StartDate    time.Time
	EndDate      time.Time
	Bookings     []*models.Booking
	Lane         int
}

// CopyCount is the number of merged bookings, equal to the number of lanes spanned.
func (b Block) CopyCount() int {
	return len(b.Bookings)
}

// Assignment is the result of one lane-packing pass.
type Assignment struct {
	Lanes     map[string]int
	Blocks    []Block
	LanesUsed map[string]int
	// Overflow holds bookings that did not fit into any lane of their item.
	Overflow []*models.Booking
	// Orphans reference items that were not supplied.
	Orphans []*models.Booking
}

// LaneOf returns the lane of a booking.
func (a Assignment) LaneOf(bookingID string) (int, bool) {
	lane, ok := a.Lanes[bookingID]
	return lane, ok
}

func (a Assignment) OverflowCount() int {
	return len(a.Overflow)
}

// OverflowByItem counts unplaceable bookings per item.
func (a Assignment) OverflowByItem() map[string]int {
	out := make(map[string]int)
	for _, b := range a.Overflow {
		out[b.ItemID]++
	}
	return out
}

type mergeKey struct {
	itemID   string
	customer string
	start    time.Time
	end      time.Time
}

type group struct {
	key      mergeKey
	bookings []*models.Booking
}

// AssignLanes packs bookings into per-item lanes with a deterministic first-fit.
// Bookings are processed by start date, ties broken by ID. Identical bookings are
// placed together on the first run of contiguous free lanes; if no run exists they
// fall back to individual placement. Lanes are never opened beyond the item's
// copy count; what does not fit is reported in Overflow.
func AssignLanes(items []models.Item, bookings []*models.Booking, policy OverlapPolicy) Assignment {
	copies := make(map[string]int, len(items))
	for _, it := range items {
		copies[it.ID] = it.CopyCount()
	}

	res := Assignment{
		Lanes:     make(map[string]int, len(bookings)),
		LanesUsed: make(map[string]int),
	}

	byItem := make(map[string][]*group)
	index := make(map[mergeKey]*group)
	for _, b := range bookings {
		if b == nil {
			continue
		}
		if _, ok := copies[b.ItemID]; !ok {
			res.Orphans = append(res.Orphans, b)
			continue
		}
		key := mergeKey{
			itemID:   b.ItemID,
			customer: b.CustomerName,
			start:    Day(b.StartDate),
			end:      Day(b.EndDate),
		}
		g, ok := index[key]
		if !ok {
			g = &group{key: key}
			index[key] = g
			byItem[b.ItemID] = append(byItem[b.ItemID], g)
		}
		g.bookings = append(g.bookings, b)
	}

	itemIDs := make([]string, 0, len(byItem))
	for id := range byItem {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		groups := byItem[itemID]
		for _, g := range groups {
			sort.Slice(g.bookings, func(i, j int) bool { return g.bookings[i].ID < g.bookings[j].ID })
		}
		sort.SliceStable(groups, func(i, j int) bool {
			if !groups[i].key.start.Equal(groups[j].key.start) {
				return groups[i].key.start.Before(groups[j].key.start)
			}
			return groups[i].bookings[0].ID < groups[j].bookings[0].ID
		})

		p := packer{capacity: copies[itemID], policy: policy}
		for _, g := range groups {
			p.place(g, &res)
		}
		res.LanesUsed[itemID] = len(p.laneEnds)
	}

	return res
}

type packer struct {
	capacity int
	policy   OverlapPolicy
	laneEnds []time.Time
}

func (p *packer) free(lane int, start time.Time) bool {
	if lane >= len(p.laneEnds) {
		return true
	}
	return p.policy.laneFree(p.laneEnds[lane], start)
}

// findRun returns the first lane of k contiguous free lanes within capacity.
func (p *packer) findRun(k int, start time.Time) (int, bool) {
	for s := 0; s+k <= p.capacity; s++ {
		ok := true
		for l := s; l < s+k; l++ {
			if !p.free(l, start) {
				ok = false
				break
			}
		}
		if ok {
			return s, true
		}
	}
	return 0, false
}

func (p *packer) occupy(lane int, end time.Time) {
	for len(p.laneEnds) <= lane {
		p.laneEnds = append(p.laneEnds, time.Time{})
	}
	p.laneEnds[lane] = end
}

func (p *packer) place(g *group, res *Assignment) {
	if lane, ok := p.findRun(len(g.bookings), g.key.start); ok {
		for i, b := range g.bookings {
			p.occupy(lane+i, g.key.end)
			res.Lanes[b.ID] = lane + i
		}
		res.Blocks = append(res.Blocks, newBlock(g.key, g.bookings, lane))
		return
	}

	for _, b := range g.bookings {
		lane, ok := p.findRun(1, g.key.start)
		if !ok {
			res.Overflow = append(res.Overflow, b)
			continue
		}
		p.occupy(lane, g.key.end)
		res.Lanes[b.ID] = lane
		res.Blocks = append(res.Blocks, newBlock(g.key, []*models.Booking{b}, lane))
	}
}

func newBlock(key mergeKey, bookings []*models.Booking, lane int) Block {
	return Block{
		ItemID:       key.itemID,
		CustomerName: key.customer,
		StartDate:    key.start,
		EndDate:      key.end,
		Bookings:     bookings,
		Lane:         lane,
	}
}
