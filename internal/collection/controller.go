// Package collection owns the fetched resource list, the client-side
// filter state and the per-item operation lifecycle (rating, download,
// delete) on top of it.
package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/studyshare/internal/errs"
	"github.com/and161185/studyshare/internal/model"
	"github.com/and161185/studyshare/internal/perm"
	"github.com/and161185/studyshare/internal/tracker"
)

// API is the slice of the REST client the controller depends on.
type API interface {
	Resources(ctx context.Context) ([]model.Resource, error)
	Download(ctx context.Context, id string, w io.Writer) (string, error)
	Delete(ctx context.Context, id string) error
	SubmitRating(ctx context.Context, id string, value int) error
	MyRating(ctx context.Context, id string) (int, error)
}

// ownRatingConcurrency bounds the per-resource rating fetch fan-out.
const ownRatingConcurrency = 8

// Controller maintains a read-through cached copy of the server's
// resource list. Aggregate fields (averageRating, ratingCount) are never
// recomputed locally: any rating submission triggers a wholesale reload.
// The one optimistic field is the download counter. Completion handlers
// of in-flight fetches become no-ops after Close or after a newer fetch
// has started (last fetch wins).
type Controller struct {
	api API
	ops *tracker.Tracker
	log *zap.Logger

	mu        sync.Mutex
	resources []model.Resource
	filter    model.Filter
	ratings   map[string]int // resource id -> caller's own rating
	loadGen   uint64
	loading   bool
	loadErr   error
	closed    bool
}

// New constructs a Controller. ops may be nil (a fresh tracker is used);
// the logger may be nil.
func New(api API, ops *tracker.Tracker, log *zap.Logger) *Controller {
	if ops == nil {
		ops = tracker.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		api:     api,
		ops:     ops,
		log:     log,
		ratings: make(map[string]int),
	}
}

// Tracker exposes the operation tracker so the view layer can disable
// affordances for in-flight items.
func (c *Controller) Tracker() *tracker.Tracker { return c.ops }

// Load fetches the full resource list. A fetch that resolves after a
// newer Load has started, or after Close, is discarded without touching
// state. On failure the controller enters a retryable error state
// distinct from an empty (and valid) list.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.loadGen++
	gen := c.loadGen
	c.mu.Unlock()

	rs, err := c.api.Resources(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.loadGen {
		c.log.Debug("discarding stale resource fetch", zap.Uint64("gen", gen))
		return nil
	}
	c.loading = false
	if err != nil {
		c.loadErr = fmt.Errorf("load resources: %w", err)
		return c.loadErr
	}
	c.loadErr = nil
	c.resources = rs
	return nil
}

// Err returns the retryable load error, if the last completed load failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Loading reports whether a load is outstanding.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Len returns the size of the raw fetched list.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resources)
}

// SetFilter replaces the filter state. The visible view is derived, so
// no recomputation happens until Visible is called.
func (c *Controller) SetFilter(f model.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// Filter returns the current filter state.
func (c *Controller) Filter() model.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Visible returns the filtered projection of the raw list, recomputed
// from the current filter on every call.
func (c *Controller) Visible() []model.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ApplyFilter(c.resources, c.filter)
}

// Resource returns the cached resource with the given id.
func (c *Controller) Resource(id string) (model.Resource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.resources {
		if r.ID == id {
			return r, true
		}
	}
	return model.Resource{}, false
}

// RecordDownload optimistically bumps the local download counter by one.
// The server keeps the authoritative count; no re-fetch happens here.
func (c *Controller) RecordDownload(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i := range c.resources {
		if c.resources[i].ID == id {
			c.resources[i].Downloads++
			return
		}
	}
}

// Download streams the resource file into w, guarded by the per-item
// flag: a second download for the same id while one is outstanding
// returns ErrBusy. The flag is cleared on every path; the counter is
// bumped only on success.
func (c *Controller) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	if !c.ops.Begin(id, tracker.Download) {
		return "", fmt.Errorf("%w: download %s", errs.ErrBusy, id)
	}
	defer c.ops.End(id, tracker.Download)

	name, err := c.api.Download(ctx, id, w)
	if err != nil {
		return "", err
	}
	if name == "" {
		if r, ok := c.Resource(id); ok {
			name = fallbackName(r)
		}
	}
	c.RecordDownload(id)
	return name, nil
}

func fallbackName(r model.Resource) string {
	if r.FileURL != "" {
		// Last path segment of the stored file url.
		for i := len(r.FileURL) - 1; i >= 0; i-- {
			if r.FileURL[i] == '/' {
				return r.FileURL[i+1:]
			}
		}
		return r.FileURL
	}
	return r.Title
}

// Rate submits the caller's rating, guarded by the per-item flag. On
// success the own-rating map is updated and a full reload is triggered,
// because averageRating/ratingCount are not derivable client-side. On
// failure no local state changes.
func (c *Controller) Rate(ctx context.Context, id string, value int) error {
	if !c.ops.Begin(id, tracker.Rate) {
		return fmt.Errorf("%w: rate %s", errs.ErrBusy, id)
	}
	defer c.ops.End(id, tracker.Rate)

	if err := c.api.SubmitRating(ctx, id, value); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.closed {
		c.ratings[id] = value
	}
	c.mu.Unlock()

	if err := c.Load(ctx); err != nil {
		// The rating itself succeeded; the stale aggregates surface
		// through the retryable load error state instead.
		c.log.Warn("reload after rating failed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// OwnRating returns the caller's known rating for id.
func (c *Controller) OwnRating(id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ratings[id]
	return v, ok
}

// RefreshOwnRatings fetches the caller's rating for every cached
// resource as independent requests. Results apply per id in completion
// order; an unrated resource (ErrNotFound) and individual failures are
// both ignored, so no aggregate consistency is assumed across the batch.
func (c *Controller) RefreshOwnRatings(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.resources))
	for _, r := range c.resources {
		ids = append(ids, r.ID)
	}
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ownRatingConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			v, err := c.api.MyRating(ctx, id)
			if err != nil {
				if !errors.Is(err, errs.ErrNotFound) {
					c.log.Debug("own rating fetch failed", zap.String("id", id), zap.Error(err))
				}
				return nil
			}
			c.mu.Lock()
			if !c.closed {
				c.ratings[id] = v
			}
			c.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// Remove deletes a resource after a local permission check. The resource
// leaves both the raw list and (being derived) the filtered view, so it
// cannot reappear until the next full reload. A permission rejection is
// ErrForbidden, distinct from transport failures.
func (c *Controller) Remove(ctx context.Context, u *model.User, id string) error {
	r, ok := c.Resource(id)
	if !ok {
		return fmt.Errorf("%w: resource %s", errs.ErrNotFound, id)
	}
	if !perm.CanManage(u, r) {
		return fmt.Errorf("%w: delete %s", errs.ErrForbidden, id)
	}
	if err := c.api.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	for i := range c.resources {
		if c.resources[i].ID == id {
			c.resources = append(c.resources[:i], c.resources[i+1:]...)
			break
		}
	}
	delete(c.ratings, id)
	return nil
}

// Close marks the controller torn down: completion handlers of any
// still-outstanding fetches become no-ops instead of mutating state that
// may belong to a remounted instance.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
