package billing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Timing of the list views
const (
	SearchDebounce = 300 * time.Millisecond
	StatusTimeout  = 3 * time.Second
)

// Entity is anything the backend identifies by an integer id.
type Entity interface {
	EntityID() int
}

// Resource is the REST surface of one collection.
type Resource[T Entity] interface {
	List(ctx context.Context, search string) ([]T, error)
	Create(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, id int, v T) (T, error)
	Delete(ctx context.Context, id int) error
}

// Field describes one form input.
type Field struct {
	Label       string
	Placeholder string
	Required    bool
}

// Schema maps an entity to and from the raw values of its form.
type Schema[T Entity] interface {
	Noun() string // singular, lower case: "medicine"
	Fields() []Field
	Values(v T) []string
	Parse(values []string) (T, error)
}

// StatusKind is the flavour of a status message
type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is a transient banner. ID identifies it so that a clear timer scheduled
// for an older message does not remove a newer one.
type Status struct {
	Kind StatusKind
	Text string
	ID   uint64
}

// statusBoard is the transient message shared by every view.
type statusBoard struct {
	Status Status
	seq    uint64
}

func (s *statusBoard) setStatus(kind StatusKind, text string) {
	s.seq++
	s.Status = Status{Kind: kind, Text: text, ID: s.seq}
}

// ClearStatus removes the status if it is still the one identified by id.
func (s *statusBoard) ClearStatus(id uint64) bool {
	if s.Status.ID != id || s.Status.Text == "" {
		return false
	}
	s.Status = Status{}
	return true
}

// deleteGate holds a destructive action until it is confirmed.
type deleteGate struct {
	pendingDelete int
	confirming    bool
}

// RequestDelete arms the confirmation gate for id.
func (g *deleteGate) RequestDelete(id int) {
	g.pendingDelete = id
	g.confirming = true
}

// ConfirmingDelete returns the id awaiting confirmation, if any.
func (g *deleteGate) ConfirmingDelete() (int, bool) {
	return g.pendingDelete, g.confirming
}

// CancelDelete disarms the confirmation gate.
func (g *deleteGate) CancelDelete() {
	g.pendingDelete = 0
	g.confirming = false
}

// take disarms the gate and returns the id it held.
func (g *deleteGate) take() (int, bool) {
	id, ok := g.pendingDelete, g.confirming
	g.CancelDelete()
	return id, ok
}

// FetchRequest is a tagged list request.
type FetchRequest struct {
	Seq    uint64
	Search string
}

// FetchResult carries the reply to a FetchRequest.
type FetchResult[T Entity] struct {
	Seq   uint64
	Items []T
	Err   error
}

// MutationKind tells create, update and delete apart
type MutationKind int

const (
	MutationCreate MutationKind = iota
	MutationUpdate
	MutationDelete
)

// MutationRequest is a prepared write.
type MutationRequest[T Entity] struct {
	Kind   MutationKind
	ID     int
	Entity T
	Search string // filter to re-fetch with afterwards
}

// MutationResult is the outcome of a write and the re-fetch that follows it.
type MutationResult[T Entity] struct {
	Request  MutationRequest[T]
	Err      error
	Items    []T
	FetchErr error
}

// Collection is the state behind a searchable list with create, edit and delete.
// State changes happen in the Prepare/Apply methods; Fetch and Execute only talk
// to the backend so they can run off the UI goroutine.
type Collection[T Entity] struct {
	statusBoard

	resource Resource[T]
	schema   Schema[T]

	Items       []T
	Search      string
	Loading     bool
	FormVisible bool
	Editing     *T
	FormValues  []string

	deleteGate

	keySeq   uint64
	fetchSeq uint64
}

// NewCollection creates an empty collection over resource.
func NewCollection[T Entity](resource Resource[T], schema Schema[T]) *Collection[T] {
	return &Collection[T]{resource: resource, schema: schema}
}

// Schema returns the form schema of the collection.
func (c *Collection[T]) Schema() Schema[T] {
	return c.schema
}

// SetSearch records a keystroke in the search box and returns its tag. The caller
// waits SearchDebounce and then asks SearchSettled with that tag.
func (c *Collection[T]) SetSearch(term string) uint64 {
	c.Search = term
	c.keySeq++
	return c.keySeq
}

// SearchSettled reports whether no keystroke happened after the one tagged tag.
func (c *Collection[T]) SearchSettled(tag uint64) bool {
	return tag == c.keySeq
}

// BeginFetch starts a list request with the current search term.
func (c *Collection[T]) BeginFetch() FetchRequest {
	c.fetchSeq++
	c.Loading = true
	return FetchRequest{Seq: c.fetchSeq, Search: c.Search}
}

// Fetch runs req against the backend.
func (c *Collection[T]) Fetch(ctx context.Context, req FetchRequest) FetchResult[T] {
	items, err := c.resource.List(ctx, req.Search)
	return FetchResult[T]{Seq: req.Seq, Items: items, Err: err}
}

// ApplyFetch installs res unless a newer request has been issued since; it
// reports whether res was used.
func (c *Collection[T]) ApplyFetch(res FetchResult[T]) bool {
	if res.Seq != c.fetchSeq {
		return false
	}
	c.Loading = false
	if res.Err != nil {
		c.setStatus(StatusError, fmt.Sprintf("Failed to fetch %ss", c.schema.Noun()))
		return true
	}
	c.Items = res.Items
	return true
}

// Refresh re-reads the collection from the backend.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	res := c.Fetch(ctx, c.BeginFetch())
	c.ApplyFetch(res)
	return res.Err
}

// StartCreate opens an empty form.
func (c *Collection[T]) StartCreate() {
	c.Editing = nil
	c.FormValues = make([]string, len(c.schema.Fields()))
	c.FormVisible = true
}

// StartEdit opens the form pre-filled with v.
func (c *Collection[T]) StartEdit(v T) {
	c.Editing = &v
	c.FormValues = c.schema.Values(v)
	c.FormVisible = true
}

// ToggleForm opens a create form, or closes whatever form is open.
func (c *Collection[T]) ToggleForm() {
	if c.FormVisible {
		c.CancelForm()
		return
	}
	c.StartCreate()
}

// CancelForm closes the form and forgets the edit target.
func (c *Collection[T]) CancelForm() {
	c.FormVisible = false
	c.Editing = nil
	c.FormValues = nil
}

// PrepareSubmit validates the form values and builds the create or update request.
func (c *Collection[T]) PrepareSubmit(values []string) (MutationRequest[T], error) {
	c.FormValues = values
	v, err := c.schema.Parse(values)
	if err != nil {
		c.setStatus(StatusError, MessageFor(err, fmt.Sprintf("Failed to save %s", c.schema.Noun())))
		return MutationRequest[T]{}, err
	}
	if c.Editing != nil {
		return MutationRequest[T]{Kind: MutationUpdate, ID: (*c.Editing).EntityID(), Entity: v, Search: c.Search}, nil
	}
	return MutationRequest[T]{Kind: MutationCreate, Entity: v, Search: c.Search}, nil
}

// PrepareDelete turns a confirmed delete into a request; ok is false when nothing
// was awaiting confirmation.
func (c *Collection[T]) PrepareDelete() (req MutationRequest[T], ok bool) {
	id, ok := c.take()
	if !ok {
		return req, false
	}
	return MutationRequest[T]{Kind: MutationDelete, ID: id, Search: c.Search}, true
}

// Execute performs req and, if it succeeded, re-reads the whole collection.
func (c *Collection[T]) Execute(ctx context.Context, req MutationRequest[T]) MutationResult[T] {
	res := MutationResult[T]{Request: req}
	switch req.Kind {
	case MutationCreate:
		_, res.Err = c.resource.Create(ctx, req.Entity)
	case MutationUpdate:
		_, res.Err = c.resource.Update(ctx, req.ID, req.Entity)
	case MutationDelete:
		res.Err = c.resource.Delete(ctx, req.ID)
	}
	if res.Err != nil {
		return res
	}
	res.Items, res.FetchErr = c.resource.List(ctx, req.Search)
	return res
}

// ApplyMutation folds a write result into the state. It reports whether the search
// term changed while the write was in flight, in which case the caller should
// Refresh again.
func (c *Collection[T]) ApplyMutation(res MutationResult[T]) bool {
	noun := c.schema.Noun()
	c.Loading = false
	if res.Err != nil {
		if res.Request.Kind == MutationDelete {
			c.setStatus(StatusError, MessageFor(res.Err, fmt.Sprintf("Failed to delete %s", noun)))
		} else {
			c.setStatus(StatusError, MessageFor(res.Err, fmt.Sprintf("Failed to save %s", noun)))
		}
		return false
	}

	if res.Request.Kind != MutationDelete {
		c.CancelForm()
	}

	// Anything fetched before this write is older than the list we now hold.
	c.fetchSeq++

	if res.FetchErr != nil {
		c.setStatus(StatusError, fmt.Sprintf("Failed to fetch %ss", noun))
		return false
	}
	c.Items = res.Items

	title := strings.ToUpper(noun[:1]) + noun[1:]
	switch res.Request.Kind {
	case MutationCreate:
		c.setStatus(StatusSuccess, title+" created successfully!")
	case MutationUpdate:
		c.setStatus(StatusSuccess, title+" updated successfully!")
	case MutationDelete:
		c.setStatus(StatusSuccess, title+" deleted successfully!")
	}
	return res.Request.Search != c.Search
}

// SubmitForm validates values, creates or updates, and re-reads the collection.
func (c *Collection[T]) SubmitForm(ctx context.Context, values []string) error {
	req, err := c.PrepareSubmit(values)
	if err != nil {
		return err
	}
	res := c.Execute(ctx, req)
	c.ApplyMutation(res)
	if res.Err != nil {
		return res.Err
	}
	return res.FetchErr
}

// ConfirmDelete deletes the entity awaiting confirmation and re-reads the collection.
func (c *Collection[T]) ConfirmDelete(ctx context.Context) error {
	req, ok := c.PrepareDelete()
	if !ok {
		return nil
	}
	res := c.Execute(ctx, req)
	c.ApplyMutation(res)
	if res.Err != nil {
		return res.Err
	}
	return res.FetchErr
}

// Endpoint implements Resource over a DRF-style collection such as /medicines/.
type Endpoint[T Entity] struct {
	client *Client
	path   string
}

func (r Endpoint[T]) List(ctx context.Context, search string) ([]T, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}
	var items []T
	if err := r.client.Request(ctx, http.MethodGet, r.path, query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r Endpoint[T]) Get(ctx context.Context, id int) (T, error) {
	var v T
	err := r.client.Request(ctx, http.MethodGet, fmt.Sprintf("%s%d/", r.path, id), nil, nil, &v)
	return v, err
}

func (r Endpoint[T]) Create(ctx context.Context, v T) (T, error) {
	var created T
	err := r.client.Request(ctx, http.MethodPost, r.path, nil, v, &created)
	return created, err
}

func (r Endpoint[T]) Update(ctx context.Context, id int, v T) (T, error) {
	var updated T
	err := r.client.Request(ctx, http.MethodPut, fmt.Sprintf("%s%d/", r.path, id), nil, v, &updated)
	return updated, err
}

func (r Endpoint[T]) Delete(ctx context.Context, id int) error {
	return r.client.Request(ctx, http.MethodDelete, fmt.Sprintf("%s%d/", r.path, id), nil, nil, nil)
}
