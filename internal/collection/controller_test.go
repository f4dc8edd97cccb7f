package collection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/studyshare/internal/errs"
	"github.com/and161185/studyshare/internal/model"
	"github.com/and161185/studyshare/internal/tracker"
)

type fakeAPI struct {
	mu sync.Mutex

	resources     []model.Resource
	resourcesErr  error
	resourcesFn   func(call int) ([]model.Resource, error)
	resourceCalls int

	downloadData  string
	downloadName  string
	downloadErr   error
	downloadGate  chan struct{} // when non-nil, Download blocks until closed
	downloadCalls int

	deleteErr error
	rateErr   error
	myRatings map[string]int
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) Resources(context.Context) ([]model.Resource, error) {
	f.mu.Lock()
	f.resourceCalls++
	n := f.resourceCalls
	fn := f.resourcesFn
	rs, err := f.resources, f.resourcesErr
	f.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return rs, err
}

func (f *fakeAPI) Download(_ context.Context, _ string, w io.Writer) (string, error) {
	f.mu.Lock()
	f.downloadCalls++
	gate := f.downloadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	_, _ = io.WriteString(w, f.downloadData)
	return f.downloadName, nil
}

func (f *fakeAPI) Delete(context.Context, string) error { return f.deleteErr }

func (f *fakeAPI) SubmitRating(context.Context, string, int) error { return f.rateErr }

func (f *fakeAPI) MyRating(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.myRatings[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	return v, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resourceCalls
}

func loaded(t *testing.T, f *fakeAPI) *Controller {
	t.Helper()
	c := New(f, nil, nil)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestController_LoadErrorStateAndRetry(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{resourcesErr: fmt.Errorf("%w: refused", errs.ErrUnavailable)}
	c := New(f, nil, nil)

	err := c.Load(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, c.Err(), errs.ErrUnavailable)

	// Retry succeeds and clears the error state.
	f.mu.Lock()
	f.resourcesErr = nil
	f.resources = sample()
	f.mu.Unlock()
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Err())
	require.Equal(t, 3, c.Len())
}

func TestController_EmptyListIsNotAnError(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{resources: []model.Resource{}}
	c := loaded(t, f)
	require.NoError(t, c.Err())
	require.Zero(t, c.Len())
	require.Empty(t, c.Visible())
}

func TestController_LastFetchWins(t *testing.T) {
	t.Parallel()
	listA := []model.Resource{{ID: "old"}}
	listB := []model.Resource{{ID: "new"}}

	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{}
	f.resourcesFn = func(call int) ([]model.Resource, error) {
		if call == 1 {
			close(started)
			<-release
			return listA, nil
		}
		return listB, nil
	}
	c := New(f, nil, nil)

	first := make(chan error, 1)
	go func() { first <- c.Load(context.Background()) }()
	<-started

	// A newer fetch starts and completes while the first is in flight.
	require.NoError(t, c.Load(context.Background()))

	// The stale fetch resolves last; its result must be discarded.
	close(release)
	require.NoError(t, <-first)

	rs := c.Visible()
	require.Len(t, rs, 1)
	require.Equal(t, "new", rs[0].ID, "stale fetch must not overwrite newer data")
}

func TestController_ClosedControllerDiscardsCompletions(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{}
	f.resourcesFn = func(int) ([]model.Resource, error) {
		close(started)
		<-release
		return sample(), nil
	}
	c := New(f, nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	<-started
	c.Close()
	close(release)
	require.NoError(t, <-done, "completion after teardown must be a silent no-op")
	require.Zero(t, c.Len())

	// Loads after Close are no-ops too.
	require.NoError(t, c.Load(context.Background()))
	require.Zero(t, c.Len())
}

func TestController_VisibleFollowsFilter(t *testing.T) {
	t.Parallel()
	c := loaded(t, &fakeAPI{resources: sample()})

	c.SetFilter(model.Filter{Search: "notes", Semester: "3"})
	require.Len(t, c.Visible(), 2)

	c.SetFilter(model.Filter{Subject: "Physics"})
	got := c.Visible()
	require.Len(t, got, 1)
	require.Equal(t, "r1", got[0].ID)

	c.SetFilter(model.Filter{})
	require.Len(t, c.Visible(), 3)
}

func TestController_DownloadLifecycle(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{resources: sample(), downloadData: "content", downloadName: "notes.pdf"}
	c := loaded(t, f)

	var buf bytes.Buffer
	name, err := c.Download(context.Background(), "r1", &buf)
	require.NoError(t, err)
	require.Equal(t, "notes.pdf", name)
	require.Equal(t, "content", buf.String())

	// Optimistic counter bumped exactly once, flag cleared.
	r, ok := c.Resource("r1")
	require.True(t, ok)
	require.Equal(t, 1, r.Downloads)
	require.False(t, c.Tracker().InFlight("r1", tracker.Download))
}

func TestController_DuplicateDownloadRejected(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	f := &fakeAPI{resources: sample(), downloadGate: gate, downloadData: "x"}
	c := loaded(t, f)

	first := make(chan error, 1)
	go func() {
		_, err := c.Download(context.Background(), "r1", io.Discard)
		first <- err
	}()

	// Wait for the first download to take the flag.
	require.Eventually(t, func() bool {
		return c.Tracker().InFlight("r1", tracker.Download)
	}, time.Second, 5*time.Millisecond)

	_, err := c.Download(context.Background(), "r1", io.Discard)
	require.ErrorIs(t, err, errs.ErrBusy)

	// A different resource proceeds independently.
	f.mu.Lock()
	f.downloadGate = nil
	f.mu.Unlock()
	_, err = c.Download(context.Background(), "r2", io.Discard)
	require.NoError(t, err)

	close(gate)
	require.NoError(t, <-first)
	require.False(t, c.Tracker().InFlight("r1", tracker.Download))
}

func TestController_DownloadFailureClearsFlagAndCounter(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{resources: sample(), downloadErr: errors.New("boom")}
	c := loaded(t, f)

	_, err := c.Download(context.Background(), "r1", io.Discard)
	require.Error(t, err)
	require.False(t, c.Tracker().InFlight("r1", tracker.Download), "flag must clear on failure")

	r, _ := c.Resource("r1")
	require.Zero(t, r.Downloads, "unconfirmed optimistic state must not be applied")
}

func TestController_DownloadFilenameFallsBackToFileURL(t *testing.T) {
	t.Parallel()
	rs := sample()
	rs[0].FileURL = "/uploads/12345-physics.pdf"
	f := &fakeAPI{resources: rs, downloadData: "x"} // no Content-Disposition name
	c := loaded(t, f)

	name, err := c.Download(context.Background(), "r1", io.Discard)
	require.NoError(t, err)
	require.Equal(t, "12345-physics.pdf", name)
}

func TestController_RateSuccessSetsRatingAndReloads(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{resources: sample()}
	c := loaded(t, f)
	before := f.calls()

	require.NoError(t, c.Rate(context.Background(), "r1", 4))

	v, ok := c.OwnRating("r1")
	require.True(t, ok)
	require.Equal(t, 4, v)
	require.Equal(t, before+1, f.calls(), "rating success must trigger a full reload")
	require.False(t, c.Tracker().InFlight("r1", tracker.Rate))
}

func TestController_RateFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{resources: sample(), rateErr: errors.New("boom")}
	c := loaded(t, f)
	before := f.calls()

	require.Error(t, c.Rate(context.Background(), "r1", 4))
	_, ok := c.OwnRating("r1")
	require.False(t, ok)
	require.Equal(t, before, f.calls(), "failed rating must not reload")
	require.False(t, c.Tracker().InFlight("r1", tracker.Rate))
}

func TestController_RefreshOwnRatings(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{
		resources: sample(),
		myRatings: map[string]int{"r1": 5, "r3": 2}, // r2 unrated -> 404, ignored
	}
	c := loaded(t, f)

	c.RefreshOwnRatings(context.Background())

	v, ok := c.OwnRating("r1")
	require.True(t, ok)
	require.Equal(t, 5, v)
	_, ok = c.OwnRating("r2")
	require.False(t, ok)
	v, ok = c.OwnRating("r3")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestController_RemovePermissionAndLocalRemoval(t *testing.T) {
	t.Parallel()
	rs := sample()
	rs[0].UploadedBy = model.Uploader{ID: "u1"}
	rs[1].UploadedBy = model.Uploader{ID: "u2"}
	f := &fakeAPI{resources: rs}
	c := loaded(t, f)

	owner := &model.User{ID: "u1", Role: model.RoleStudent}
	admin := &model.User{ID: "u9", Role: model.RoleAdmin}
	ctx := context.Background()

	// Non-owner, non-admin: rejected before any network call.
	err := c.Remove(ctx, owner, "r2")
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.Equal(t, 3, c.Len())

	// Owner deletes own resource; it leaves raw list and filtered view.
	c.SetFilter(model.Filter{Semester: "3"})
	require.NoError(t, c.Remove(ctx, owner, "r1"))
	require.Equal(t, 2, c.Len())
	for _, r := range c.Visible() {
		require.NotEqual(t, "r1", r.ID, "deleted resource must not reappear in the filtered view")
	}

	// Admin deletes anything.
	require.NoError(t, c.Remove(ctx, admin, "r2"))
	require.Equal(t, 1, c.Len())

	// Unknown id.
	err = c.Remove(ctx, admin, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestController_RemoveServerFailureKeepsResource(t *testing.T) {
	t.Parallel()
	rs := sample()
	rs[0].UploadedBy = model.Uploader{ID: "u1"}
	f := &fakeAPI{resources: rs, deleteErr: fmt.Errorf("%w: down", errs.ErrUnavailable)}
	c := loaded(t, f)

	err := c.Remove(context.Background(), &model.User{ID: "u1"}, "r1")
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.Equal(t, 3, c.Len(), "failed delete must not remove locally")
}
