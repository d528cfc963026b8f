package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/bitfantasy/procurement/internal/shared/apperr"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
	fail    bool
}

func (m *memorySink) Record(_ context.Context, e Entry) error {
	if m.fail {
		return errors.New("audit table unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

type fakeService struct {
	items map[int64]*item
	next  int64
}

func (f *fakeService) Create(_ context.Context, dto *item) (*item, error) {
	if dto.Name == "" {
		return nil, apperr.Validation(map[string]string{"name": "name is required"})
	}
	f.next++
	out := &item{ID: f.next, Name: dto.Name}
	f.items[out.ID] = out
	return out, nil
}

func (f *fakeService) Get(_ context.Context, id int64) (*item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("Item", id)
	}
	cp := *it
	return &cp, nil
}

func (f *fakeService) GetWithRelations(ctx context.Context, id int64) (*item, error) {
	return f.Get(ctx, id)
}

func (f *fakeService) List(context.Context, crud.Pageable) (*crud.Page[item], error) {
	return &crud.Page[item]{}, nil
}

func (f *fakeService) Search(context.Context, string, crud.Pageable) (*crud.Page[item], error) {
	return &crud.Page[item]{}, nil
}

func (f *fakeService) Update(ctx context.Context, id int64, dto *item) (*item, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	f.items[id].Name = dto.Name
	return f.Get(ctx, id)
}

func (f *fakeService) Patch(ctx context.Context, id int64, patch json.RawMessage) (*item, error) {
	cur, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := crud.MergeJSON(cur, patch); err != nil {
		return nil, err
	}
	return f.Update(ctx, id, cur)
}

func (f *fakeService) Delete(ctx context.Context, id int64) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

func newAudited(sink Sink) crud.Service[item] {
	return Wrap[item](&fakeService{items: map[int64]*item{}}, "Item", NewRecorder(sink, nil))
}

func TestWrapRecordsSuccessfulMutations(t *testing.T) {
	sink := &memorySink{}
	svc := newAudited(sink)
	ctx := WithRequestID(WithActor(context.Background(), "amina"), "req-1")

	created, err := svc.Create(ctx, &item{Name: "first"})
	require.NoError(t, err)
	_, err = svc.Patch(ctx, created.ID, json.RawMessage(`{"name":"second"}`))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	require.Len(t, sink.entries, 3)

	c := sink.entries[0]
	assert.Equal(t, ActionCreate, c.Action)
	assert.Equal(t, "amina", c.Actor)
	assert.Equal(t, "req-1", c.RequestID)
	assert.Equal(t, StatusSuccess, c.Status)
	require.NotNil(t, c.EntityID)
	assert.Equal(t, created.ID, *c.EntityID)

	p := sink.entries[1]
	assert.Equal(t, "Patch", p.Method)
	assert.Equal(t, "first", p.Before.(*item).Name)
	assert.Equal(t, "second", p.After.(*item).Name)

	d := sink.entries[2]
	assert.Equal(t, ActionDelete, d.Action)
	assert.Equal(t, "second", d.Before.(*item).Name)
}

func TestWrapRecordsFailures(t *testing.T) {
	sink := &memorySink{}
	svc := newAudited(sink)

	_, err := svc.Create(context.Background(), &item{})
	require.Error(t, err)

	require.Len(t, sink.entries, 1)
	e := sink.entries[0]
	assert.Equal(t, StatusFailure, e.Status)
	assert.Equal(t, SystemActor, e.Actor)
	assert.Contains(t, e.ErrorDetail, "validation failed")
	assert.Nil(t, e.EntityID)
}

func TestWrapRedactsParameters(t *testing.T) {
	sink := &memorySink{}
	svc := Wrap[item](&fakeService{items: map[int64]*item{}}, "Item", NewRecorder(sink, nil), Redact("token"))
	ctx := context.Background()

	_, err := svc.Create(ctx, &item{Token: "s3cret-token"})
	require.Error(t, err)
	created, err := svc.Create(ctx, &item{Name: "first", Token: "s3cret-token"})
	require.NoError(t, err)
	_, err = svc.Patch(ctx, created.ID, json.RawMessage(`{"name":"second","token":"s3cret-token"}`))
	require.NoError(t, err)
	_, err = svc.Patch(ctx, created.ID, json.RawMessage(`"s3cret-token"`))
	require.Error(t, err)

	require.Len(t, sink.entries, 4)
	for i, e := range sink.entries {
		b, err := json.Marshal(e.Parameters)
		require.NoError(t, err)
		assert.NotContains(t, string(b), "s3cret-token", "entry %d", i)
	}
	assert.Equal(t, StatusFailure, sink.entries[0].Status)
	assert.Equal(t, map[string]any{"name": "second"}, sink.entries[2].Parameters)
	assert.Nil(t, sink.entries[3].Parameters)
}

func TestSinkFailureDoesNotMaskOutcome(t *testing.T) {
	svc := newAudited(&memorySink{fail: true})

	out, err := svc.Create(context.Background(), &item{Name: "kept"})
	require.NoError(t, err)
	assert.Equal(t, "kept", out.Name)

	err = svc.Delete(context.Background(), 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestIDOf(t *testing.T) {
	assert.Nil(t, IDOf(nil))
	assert.Nil(t, IDOf((*item)(nil)))
	assert.Nil(t, IDOf(item{}))
	assert.Nil(t, IDOf("x"))
	require.NotNil(t, IDOf(&item{ID: 5}))
	assert.Equal(t, int64(5), *IDOf(&item{ID: 5}))
}
