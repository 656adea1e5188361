package resource

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultPageSize is used when a controller is created without one
const DefaultPageSize = 10

var (
	// ErrStale is returned by a load that was superseded by a newer one; its result was discarded
	ErrStale = errors.New("load superseded by a newer request")

	// ErrBusy is returned when a create, update or delete is already in flight
	ErrBusy = errors.New("another change is still being saved")

	// ErrNoSelection is returned when the selection does not match the requested action
	ErrNoSelection = errors.New("no matching selection for this action")
)

// Identifiable is implemented by every listed record
type Identifiable interface {
	ResourceID() int64
}

// Page is one page of results as returned by an adapter
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	TotalCount int
}

// Adapter is the entity-specific part of a list screen
type Adapter[T any, P any] interface {
	FetchPage(ctx context.Context, search string, page, pageSize int) (Page[T], error)
	Create(ctx context.Context, payload P) error
	Update(ctx context.Context, id int64, payload P) error
	Remove(ctx context.Context, id int64) error
}

// PageInfo describes the loaded page
type PageInfo struct {
	CurrentPage int
	TotalPages  int
	TotalCount  int
	PageSize    int
}

// StatusKind is the load status of the list
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "Idle"
	case StatusLoading:
		return "Loading"
	case StatusLoaded:
		return "Loaded"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Status is the load status plus the failure reason when Kind is StatusFailed
type Status struct {
	Kind StatusKind
	Err  error
}

// Intent is the modal a selection opens
type Intent int

const (
	IntentNone Intent = iota
	IntentCreating
	IntentEditing
	IntentViewingDetails
	IntentConfirmingDelete
)

func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "None"
	case IntentCreating:
		return "Creating"
	case IntentEditing:
		return "Editing"
	case IntentViewingDetails:
		return "ViewingDetails"
	case IntentConfirmingDelete:
		return "ConfirmingDelete"
	default:
		return "Unknown"
	}
}

// Selection is the single active modal intent.
// Item is the zero value for IntentNone and IntentCreating.
type Selection[T any] struct {
	Intent Intent
	Item   T
	Err    error // last failed submit or delete, kept for retry
	Saving bool
}

// Active reports whether a modal is open
func (s Selection[T]) Active() bool {
	return s.Intent != IntentNone
}

// Snapshot is a consistent copy of the controller state
type Snapshot[T any] struct {
	Items      []T
	PageInfo   PageInfo
	SearchTerm string
	Status     Status
	Selection  Selection[T]
}

// Controller holds the state of one paginated, searchable list screen.
//
// Every load takes a token; the response of a superseded load is discarded and
// its context cancelled. Create, update and delete are single-flight.
type Controller[T Identifiable, P any] struct {
	adapter Adapter[T, P]
	logger  zerolog.Logger

	mu        sync.Mutex
	items     []T
	info      PageInfo
	search    string
	status    Status
	selection Selection[T]
	// selGen changes whenever the selection is replaced or cleared
	selGen     uint64
	token      uint64
	cancelLoad context.CancelFunc
	mutating   bool
}

// New creates a controller in the Idle state
func New[T Identifiable, P any](adapter Adapter[T, P], pageSize int, logger zerolog.Logger) *Controller[T, P] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller[T, P]{
		adapter: adapter,
		logger:  logger,
		info:    PageInfo{CurrentPage: 1, PageSize: pageSize},
	}
}

// Load fetches a page. A search term different from the current one always
// loads page 1. On failure the previous items stay visible.
func (c *Controller[T, P]) Load(ctx context.Context, page int, search string) error {
	return c.load(ctx, page, search, true)
}

func (c *Controller[T, P]) load(ctx context.Context, page int, search string, clamp bool) error {
	c.mu.Lock()
	newSearch := search != c.search
	if newSearch || page < 1 {
		page = 1
	}
	if page != c.info.CurrentPage || newSearch {
		c.clearSelectionLocked()
	}
	if newSearch {
		// A new term starts over at page 1 even if this fetch fails
		c.info.CurrentPage = 1
	}
	c.search = search

	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.token++
	token := c.token
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel
	c.status = Status{Kind: StatusLoading}
	size := c.info.PageSize
	c.mu.Unlock()

	defer cancel()
	result, err := c.adapter.FetchPage(loadCtx, search, page, size)

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		c.logger.Debug().Uint64("token", token).Str("search", search).Int("page", page).Msg("discarding stale page")
		return ErrStale
	}
	c.cancelLoad = nil

	if err != nil {
		c.status = Status{Kind: StatusFailed, Err: err}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("search", search).Int("page", page).Msg("page load failed")
		return err
	}

	// An empty page past the end means records vanished since the last load
	last := max(1, result.TotalPages)
	if clamp && len(result.Items) == 0 && page > last {
		c.mu.Unlock()
		c.logger.Debug().Int("page", page).Int("last", last).Msg("clamping to last page")
		return c.load(ctx, last, search, false)
	}

	current := result.Page
	if current < 1 {
		current = page
	}
	c.items = result.Items
	c.info = PageInfo{
		CurrentPage: current,
		TotalPages:  result.TotalPages,
		TotalCount:  result.TotalCount,
		PageSize:    size,
	}
	c.status = Status{Kind: StatusLoaded}
	c.mu.Unlock()
	return nil
}

// Search applies a new search term, starting from page 1
func (c *Controller[T, P]) Search(ctx context.Context, term string) error {
	return c.Load(ctx, 1, term)
}

// GoToPage loads a page with the current search term
func (c *Controller[T, P]) GoToPage(ctx context.Context, page int) error {
	return c.Load(ctx, page, c.SearchTerm())
}

// NextPage loads the following page; it is a no-op on the last page
func (c *Controller[T, P]) NextPage(ctx context.Context) error {
	info := c.PageInfo()
	if info.CurrentPage >= info.TotalPages {
		return nil
	}
	return c.GoToPage(ctx, info.CurrentPage+1)
}

// PrevPage loads the preceding page; it is a no-op on the first page
func (c *Controller[T, P]) PrevPage(ctx context.Context) error {
	info := c.PageInfo()
	if info.CurrentPage <= 1 {
		return nil
	}
	return c.GoToPage(ctx, info.CurrentPage-1)
}

// Refresh reloads the current page
func (c *Controller[T, P]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	page, search := c.info.CurrentPage, c.search
	c.mu.Unlock()
	return c.Load(ctx, page, search)
}

// BeginCreate opens the create form, replacing any open modal
func (c *Controller[T, P]) BeginCreate() {
	var zero T
	c.begin(IntentCreating, zero)
}

// BeginEdit opens the edit form for item
func (c *Controller[T, P]) BeginEdit(item T) {
	c.begin(IntentEditing, item)
}

// BeginDetails opens the details view for item
func (c *Controller[T, P]) BeginDetails(item T) {
	c.begin(IntentViewingDetails, item)
}

// BeginDelete asks for confirmation before deleting item
func (c *Controller[T, P]) BeginDelete(item T) {
	c.begin(IntentConfirmingDelete, item)
}

func (c *Controller[T, P]) begin(intent Intent, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selGen++
	c.selection = Selection[T]{Intent: intent, Item: item}
}

// Cancel closes the open modal
func (c *Controller[T, P]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearSelectionLocked()
}

func (c *Controller[T, P]) clearSelectionLocked() {
	c.selGen++
	c.selection = Selection[T]{}
}

// Submit saves the payload of the open create or edit form. On success the
// form closes and the current page is reloaded; on failure the form stays
// open with the error attached.
func (c *Controller[T, P]) Submit(ctx context.Context, payload P) error {
	c.mu.Lock()
	sel := c.selection
	if sel.Intent != IntentCreating && sel.Intent != IntentEditing {
		c.mu.Unlock()
		return ErrNoSelection
	}
	gen, err := c.startMutationLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if sel.Intent == IntentCreating {
		err = c.adapter.Create(ctx, payload)
	} else {
		err = c.adapter.Update(ctx, sel.Item.ResourceID(), payload)
	}
	if err != nil {
		c.logger.Info().Err(err).Str("intent", sel.Intent.String()).Msg("save failed")
	}

	page, search, ok := c.finishMutation(gen, err)
	if !ok {
		return err
	}
	c.reload(ctx, page, search)
	return nil
}

// ConfirmDelete removes the item awaiting confirmation and reloads the
// current page, stepping back when the deleted record was the only one on it.
func (c *Controller[T, P]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	sel := c.selection
	if sel.Intent != IntentConfirmingDelete {
		c.mu.Unlock()
		return ErrNoSelection
	}
	gen, err := c.startMutationLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	err = c.adapter.Remove(ctx, sel.Item.ResourceID())
	if err != nil {
		c.logger.Info().Err(err).Int64("id", sel.Item.ResourceID()).Msg("delete failed")
	}

	page, search, ok := c.finishMutation(gen, err)
	if !ok {
		return err
	}

	c.mu.Lock()
	page = min(page, lastPageAfterDelete(c.info.TotalCount, c.info.PageSize))
	c.mu.Unlock()
	c.reload(ctx, page, search)
	return nil
}

func (c *Controller[T, P]) startMutationLocked() (uint64, error) {
	if c.mutating {
		return 0, ErrBusy
	}
	c.mutating = true
	c.selection.Saving = true
	c.selection.Err = nil
	return c.selGen, nil
}

// finishMutation records the outcome; ok is true when the mutation succeeded
func (c *Controller[T, P]) finishMutation(gen uint64, err error) (page int, search string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutating = false

	if err != nil {
		// The modal may have been replaced while saving; only annotate the one we started from
		if c.selGen == gen {
			c.selection.Saving = false
			c.selection.Err = err
		}
		return 0, "", false
	}
	if c.selGen == gen {
		c.clearSelectionLocked()
	}
	return c.info.CurrentPage, c.search, true
}

// reload refreshes after a successful change; a failure shows up in Status
func (c *Controller[T, P]) reload(ctx context.Context, page int, search string) {
	if err := c.Load(ctx, page, search); err != nil && !errors.Is(err, ErrStale) {
		c.logger.Debug().Err(err).Msg("reload after change failed")
	}
}

// lastPageAfterDelete is the last valid page once one record is gone
func lastPageAfterDelete(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	remaining := max(0, total-1)
	return max(1, (remaining+size-1)/size)
}

// Items returns the loaded records in server order
func (c *Controller[T, P]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

func (c *Controller[T, P]) PageInfo() PageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *Controller[T, P]) SearchTerm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

func (c *Controller[T, P]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller[T, P]) Selection() Selection[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Snapshot returns all observable state read together
func (c *Controller[T, P]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{
		Items:      append([]T(nil), c.items...),
		PageInfo:   c.info,
		SearchTerm: c.search,
		Status:     c.status,
		Selection:  c.selection,
	}
}
