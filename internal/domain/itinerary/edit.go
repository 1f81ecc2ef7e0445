package itinerary

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

// EditType is the kind of mutation requested.
type EditType string

const (
	EditPace         EditType = "pace"
	EditSwap         EditType = "swap"
	EditAdd          EditType = "add"
	EditRemove       EditType = "remove"
	EditReplace      EditType = "replace"
	EditReduceTravel EditType = "reduce_travel"
	EditWeather      EditType = "weather"
)

// Scope is the declared blast radius of an edit.
type Scope string

const (
	ScopeDay   Scope = "day"
	ScopeBlock Scope = "block"
	ScopePOI   Scope = "poi"
	ScopeFull  Scope = "full"
)

// EditRequest is a structured edit command. It usually comes from a language model and is
// treated as untrusted.
type EditRequest struct {
	EditType EditType   `json:"edit_type"`
	Scope    Scope      `json:"scope"`
	Day      *int       `json:"day,omitempty"`
	Block    *BlockType `json:"block,omitempty"`
	Value    string     `json:"value,omitempty"`
	Category string     `json:"category,omitempty"`
}

// Normalized returns a copy with trimmed, lower-cased enum fields.
func (r EditRequest) Normalized() EditRequest {
	out := r
	out.EditType = EditType(strings.ToLower(strings.TrimSpace(string(r.EditType))))
	out.Scope = Scope(strings.ToLower(strings.TrimSpace(string(r.Scope))))
	out.Value = strings.TrimSpace(r.Value)
	out.Category = strings.TrimSpace(r.Category)
	if r.Block != nil {
		b := BlockType(strings.ToLower(strings.TrimSpace(string(*r.Block))))
		if b == "" {
			out.Block = nil
		} else {
			out.Block = &b
		}
	}
	if r.Day != nil {
		d := *r.Day
		out.Day = &d
	}
	return out
}

// ChangeType labels an entry in the change log.
type ChangeType string

const (
	ChangePaceReduced  ChangeType = "pace_reduced"
	ChangePaceNote     ChangeType = "pace_note"
	ChangeSwap         ChangeType = "swap"
	ChangeSwapError    ChangeType = "swap_error"
	ChangeAdd          ChangeType = "add"
	ChangeAddError     ChangeType = "add_error"
	ChangeRemove       ChangeType = "remove"
	ChangeReduceTravel ChangeType = "reduce_travel"
)

// Change is an audit record of one mutation.
type Change struct {
	Type        ChangeType `json:"type"`
	Day         int        `json:"day"`
	Block       BlockType  `json:"block,omitempty"`
	Old         string     `json:"old,omitempty"`
	New         string     `json:"new,omitempty"`
	Note        string     `json:"note,omitempty"`
	FromCount   int        `json:"fromCount,omitempty"`
	ToCount     int        `json:"toCount,omitempty"`
	POIsRemoved int        `json:"poisRemoved,omitempty"`
}

// EditResult is returned by Editor.Apply.
type EditResult struct {
	Success   bool      `json:"success"`
	Itinerary Itinerary `json:"itinerary"`
	Changes   []Change  `json:"changes"`
	EditType  EditType  `json:"editType"`
	Scope     Scope     `json:"scope"`
	Error     string    `json:"error,omitempty"`
}

// SearchQuery is what the editor asks a supplier for.
type SearchQuery struct {
	City          string
	Interests     []string
	IndoorOnly    bool
	Accessibility bool
	Limit         int
}

// POISupplier finds candidate POIs. Ordering and ranking are the supplier's responsibility.
type POISupplier interface {
	Search(ctx context.Context, q SearchQuery) ([]POI, error)
}

const editSearchLimit = 50

// Editor applies scoped edits to copies of itineraries.
type Editor struct {
	supplier  POISupplier
	estimator TravelTimeEstimator
}

// NewEditor wires the editor's collaborators.
func NewEditor(supplier POISupplier, estimator TravelTimeEstimator) *Editor {
	if estimator == nil {
		estimator = NewGreatCircleEstimator()
	}
	return &Editor{supplier: supplier, estimator: estimator}
}

type editState struct {
	it      Itinerary
	req     EditRequest
	c       Constraints
	changes []Change
	touched map[[2]int]struct{}
}

type editHandler func(ctx context.Context, e *Editor, st *editState)

var editHandlers = map[EditType]editHandler{
	EditPace:         applyPace,
	EditSwap:         applySwap,
	EditReplace:      applySwap,
	EditWeather:      applySwap,
	EditAdd:          applyAdd,
	EditRemove:       applyRemove,
	EditReduceTravel: applyReduceTravel,
}

// Apply runs the edit against a deep copy of it. The caller's itinerary is never modified.
// An unknown edit type yields Success=false together with an unknown_edit_type error.
// Supplier failures inside a block become *_error changes and do not fail the call.
func (e *Editor) Apply(ctx context.Context, it Itinerary, req EditRequest, c Constraints) (EditResult, error) {
	req = req.Normalized()
	handler, ok := editHandlers[req.EditType]
	if !ok {
		msg := fmt.Sprintf("Unknown edit type: %s", req.EditType)
		return EditResult{
			Success:   false,
			Itinerary: it.Clone(),
			Changes:   []Change{},
			EditType:  req.EditType,
			Scope:     req.Scope,
			Error:     msg,
		}, apperrors.Wrap(CodeUnknownEditType, msg, nil)
	}

	st := &editState{
		it:      it.Clone(),
		req:     req,
		c:       c,
		changes: []Change{},
		touched: make(map[[2]int]struct{}),
	}
	handler(ctx, e, st)
	e.settle(st)

	return EditResult{
		Success:   true,
		Itinerary: st.it,
		Changes:   st.changes,
		EditType:  req.EditType,
		Scope:     req.Scope,
	}, nil
}

// targetDays honours "day null means all days".
func (st *editState) targetDays() []int {
	if st.req.Day == nil {
		idx := make([]int, len(st.it.Days))
		for i := range st.it.Days {
			idx[i] = i
		}
		return idx
	}
	if i := st.it.FindDay(*st.req.Day); i >= 0 {
		return []int{i}
	}
	return nil
}

// targetBlocks honours "block null means every block of the day".
func (st *editState) targetBlocks(dayIdx int) []int {
	blocks := st.it.Days[dayIdx].Blocks
	var idx []int
	for i, b := range blocks {
		if st.req.Block == nil || b.Type == *st.req.Block {
			idx = append(idx, i)
		}
	}
	return idx
}

func (st *editState) block(dayIdx, blockIdx int) *TimeBlock {
	return &st.it.Days[dayIdx].Blocks[blockIdx]
}

func (st *editState) record(dayIdx, blockIdx int, ch Change) {
	ch.Day = st.it.Days[dayIdx].Day
	if blockIdx >= 0 && ch.Block == "" {
		ch.Block = st.it.Days[dayIdx].Blocks[blockIdx].Type
	}
	st.changes = append(st.changes, ch)
}

func (st *editState) touch(dayIdx, blockIdx int) {
	st.touched[[2]int{dayIdx, blockIdx}] = struct{}{}
}

func applyPace(_ context.Context, _ *Editor, st *editState) {
	pace := ParsePace(st.req.Value)
	for _, di := range st.targetDays() {
		for _, bi := range st.targetBlocks(di) {
			b := st.block(di, bi)
			switch pace {
			case PaceRelaxed:
				if len(b.POIs) <= 1 {
					continue
				}
				from := len(b.POIs)
				b.POIs = b.POIs[:1]
				st.touch(di, bi)
				st.record(di, bi, Change{Type: ChangePaceReduced, FromCount: from, ToCount: 1})
			case PaceFast:
				if len(b.POIs) < 2 {
					st.record(di, bi, Change{Type: ChangePaceNote, Note: "Would add more POIs for fast pace"})
				}
			}
		}
	}
}

func applySwap(ctx context.Context, e *Editor, st *editState) {
	query := st.searchQuery()
	note := ""
	if st.req.EditType == EditWeather {
		note = "weather"
	}
	for _, di := range st.targetDays() {
		for _, bi := range st.targetBlocks(di) {
			b := st.block(di, bi)
			if len(b.POIs) == 0 {
				continue
			}
			candidates, err := e.search(ctx, query)
			if err != nil {
				st.record(di, bi, Change{Type: ChangeSwapError, Old: b.POIs[0].POIID, Note: err.Error()})
				continue
			}
			if len(candidates) == 0 {
				st.record(di, bi, Change{Type: ChangeSwapError, Old: b.POIs[0].POIID, Note: "no replacement candidates found"})
				continue
			}
			pick, ok := firstUnused(st.it, candidates)
			if !ok {
				continue
			}
			old := b.POIs[0]
			b.POIs[0] = PlacedPOI{
				POIID:       pick.ID,
				Name:        pick.Name,
				Category:    pick.Category,
				Coordinates: pick.Coordinates,
				Duration:    pick.VisitDuration(),
			}
			st.touch(di, bi)
			changeNote := note
			if changeNote == "" {
				changeNote = fmt.Sprintf("Swapped for %s", pick.Name)
			}
			st.record(di, bi, Change{Type: ChangeSwap, Old: old.POIID, New: pick.ID, Note: changeNote})
		}
	}
}

func applyAdd(ctx context.Context, e *Editor, st *editState) {
	dayNum := 1
	if st.req.Day != nil {
		dayNum = *st.req.Day
	}
	blockType := BlockAfternoon
	if st.req.Block != nil {
		blockType = *st.req.Block
	}
	di := st.it.FindDay(dayNum)
	if di < 0 {
		return
	}
	bi := -1
	for i, b := range st.it.Days[di].Blocks {
		if b.Type == blockType {
			bi = i
			break
		}
	}
	if bi < 0 {
		return
	}

	candidates, err := e.search(ctx, st.searchQuery())
	if err != nil {
		st.record(di, bi, Change{Type: ChangeAddError, Note: err.Error()})
		return
	}
	if len(candidates) == 0 {
		st.record(di, bi, Change{Type: ChangeAddError, Note: "no candidates found"})
		return
	}
	pick, ok := firstUnused(st.it, candidates)
	if !ok {
		return
	}
	b := st.block(di, bi)
	b.POIs = append(b.POIs, PlacedPOI{
		POIID:       pick.ID,
		Name:        pick.Name,
		Category:    pick.Category,
		Coordinates: pick.Coordinates,
		Duration:    pick.VisitDuration(),
	})
	st.touch(di, bi)
	st.record(di, bi, Change{Type: ChangeAdd, New: pick.ID, Note: fmt.Sprintf("Added %s", pick.Name)})
}

func applyRemove(_ context.Context, _ *Editor, st *editState) {
	needle := strings.ToLower(st.req.Value)
	for _, di := range st.targetDays() {
		for _, bi := range st.targetBlocks(di) {
			b := st.block(di, bi)
			if len(b.POIs) == 0 {
				continue
			}
			if needle == "" {
				last := b.POIs[len(b.POIs)-1]
				b.POIs = b.POIs[:len(b.POIs)-1]
				st.touch(di, bi)
				st.record(di, bi, Change{Type: ChangeRemove, Old: last.POIID})
				continue
			}
			kept := b.POIs[:0]
			var dropped []PlacedPOI
			for _, p := range b.POIs {
				if strings.Contains(strings.ToLower(p.POIID), needle) {
					dropped = append(dropped, p)
					continue
				}
				kept = append(kept, p)
			}
			if len(dropped) == 0 {
				continue
			}
			b.POIs = kept
			st.touch(di, bi)
			for _, p := range dropped {
				st.record(di, bi, Change{Type: ChangeRemove, Old: p.POIID})
			}
		}
	}
}

func applyReduceTravel(_ context.Context, _ *Editor, st *editState) {
	for _, di := range st.targetDays() {
		removed := 0
		for _, bi := range st.targetBlocks(di) {
			b := st.block(di, bi)
			if len(b.POIs) <= 1 {
				continue
			}
			removed += len(b.POIs) - 1
			b.POIs = b.POIs[:1]
			st.touch(di, bi)
		}
		if removed > 0 {
			st.record(di, -1, Change{Type: ChangeReduceTravel, POIsRemoved: removed, Note: "Reduced POIs to minimize travel"})
		}
	}
}

func (st *editState) searchQuery() SearchQuery {
	q := SearchQuery{
		City:          st.c.City,
		IndoorOnly:    st.c.Preferences.IndoorOnly,
		Accessibility: st.c.Preferences.Accessibility,
		Limit:         editSearchLimit,
	}
	value := strings.ToLower(st.req.Value)
	if st.req.EditType == EditWeather || value == "indoor" || value == "indoors" {
		q.IndoorOnly = true
		value = ""
	}
	switch {
	case st.req.Category != "":
		q.Interests = []string{st.req.Category}
	case value != "":
		q.Interests = []string{st.req.Value}
	default:
		q.Interests = append([]string(nil), st.c.Preferences.Interests...)
	}
	return q
}

func (e *Editor) search(ctx context.Context, q SearchQuery) ([]POI, error) {
	if e.supplier == nil {
		return nil, apperrors.Wrap(CodeSupplierFailure, "no poi supplier configured", nil)
	}
	pois, err := e.supplier.Search(ctx, q)
	if err != nil {
		return nil, apperrors.Wrap(CodeSupplierFailure, "poi search failed", err)
	}
	return pois, nil
}

// firstUnused picks the first candidate with usable coordinates that is not yet scheduled.
func firstUnused(it Itinerary, candidates []POI) (POI, bool) {
	for _, c := range candidates {
		if c.ID == "" || it.Contains(c.ID) {
			continue
		}
		if ValidateCoordinates(c.Coordinates) != nil {
			continue
		}
		return c, true
	}
	return POI{}, false
}

// settle re-times touched blocks and refreshes the totals of their days.
func (e *Editor) settle(st *editState) {
	days := make(map[int]struct{})
	for key := range st.touched {
		e.retime(st.block(key[0], key[1]))
		days[key[0]] = struct{}{}
	}
	maxTravel := travelBudget(st.c)
	for di := range days {
		d := &st.it.Days[di]
		travel := 0
		for _, b := range d.Blocks {
			travel += b.TravelTime
		}
		d.TotalTravelTime = travel
		d.FeasibilityScore = ScoreDay(*d, maxTravel)
	}
}

// retime lays POIs out back to back from the block start, as the scheduler does.
func (e *Editor) retime(b *TimeBlock) {
	elapsed := 0
	travelSum := 0
	for i := range b.POIs {
		p := &b.POIs[i]
		travel := 0
		if i > 0 {
			if minutes, err := travelMinutes(e.estimator, b.POIs[i-1].Coordinates, p.Coordinates); err == nil {
				travel = minutes
			}
		}
		if p.Duration <= 0 {
			p.Duration = DefaultVisitDuration
		}
		p.ArrivalTime = b.Window.Start.Add(time.Duration(elapsed+travel) * time.Minute)
		p.DepartureTime = p.ArrivalTime.Add(time.Duration(p.Duration) * time.Minute)
		elapsed += travel + p.Duration
		travelSum += travel
	}
	b.TravelTime = travelSum
	b.TotalDuration = elapsed
}
