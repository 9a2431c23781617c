package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facilityhub/facility/pkg/index"
	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

// fakeMirror keeps the last saved copy of every record and can be told to fail
type fakeMirror[T types.Entity[T]] struct {
	mu      sync.Mutex
	records map[int64]T
	deletes []int64
	err     error
}

func newFakeMirror[T types.Entity[T]]() *fakeMirror[T] {
	return &fakeMirror[T]{records: make(map[int64]T)}
}

func (m *fakeMirror[T]) Save(ctx context.Context, record T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records[*record.GetID()] = record
	return nil
}

func (m *fakeMirror[T]) DeleteByID(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	if m.err != nil {
		return m.err
	}
	delete(m.records, id)
	return nil
}

func (m *fakeMirror[T]) Search(ctx context.Context, query string, pageable types.Pageable) (*types.Page[T], error) {
	if m.err != nil {
		return nil, m.err
	}
	return types.NewPage[T](nil, 0, pageable), nil
}

func (m *fakeMirror[T]) get(id int64) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

type testEnv struct {
	stores     repository.Stores
	metrics    *Metrics
	facility   *EntityService[*types.Facility]
	room       *EntityService[*types.Room]
	resident   *EntityService[*types.Resident]
	facMirror  *fakeMirror[*types.Facility]
	roomMirror *fakeMirror[*types.Room]
	resMirror  *fakeMirror[*types.Resident]
}

func newTestEnv() *testEnv {
	env := &testEnv{
		stores:     repository.NewMemoryStoresForTest(),
		metrics:    NewMetrics(prometheus.NewRegistry()),
		facMirror:  newFakeMirror[*types.Facility](),
		roomMirror: newFakeMirror[*types.Room](),
		resMirror:  newFakeMirror[*types.Resident](),
	}
	env.facility = NewEntityService[*types.Facility](types.KindFacility, env.stores.Facilities, env.facMirror, env.metrics)
	env.room = NewEntityService[*types.Room](types.KindRoom, env.stores.Rooms, env.roomMirror, env.metrics)
	env.resident = NewEntityService[*types.Resident](types.KindResident, env.stores.Residents, env.resMirror, env.metrics)
	return env
}

func (env *testEnv) createFacility(t *testing.T, name string) *types.Facility {
	t.Helper()
	f, err := env.facility.Create(context.Background(), &types.Facility{Name: types.String(name)})
	require.NoError(t, err)
	return f
}

func (env *testEnv) createRoom(t *testing.T, facilityID int64, number int) *types.Room {
	t.Helper()
	r, err := env.room.Create(context.Background(), &types.Room{
		RoomNumber: types.Int(number),
		Facility:   &types.Facility{ID: types.Int64(facilityID)},
	})
	require.NoError(t, err)
	return r
}

func requireErrKey(t *testing.T, err error, key string) {
	t.Helper()
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, key, verr.Key)
}

func TestCreate_AssignsIDAndMirrors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	created := env.createFacility(t, "AAAAAAAAAA")
	require.NotNil(t, created.ID)

	got, err := env.facility.Get(ctx, *created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	mirrored, ok := env.facMirror.get(*created.ID)
	require.True(t, ok)
	assert.Equal(t, created, mirrored)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.StoreOperations.WithLabelValues("facility", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.MirrorOperations.WithLabelValues("facility", "save", "ok")))
}

func TestCreate_WithIDIsRejected(t *testing.T) {
	env := newTestEnv()
	rng := rand.New(rand.NewSource(7))

	_, err := env.facility.Create(context.Background(), &types.Facility{ID: types.Int64(rng.Int63()), Name: types.String("x")})
	requireErrKey(t, err, types.ErrKeyIDExists)

	page, err := env.facility.List(context.Background(), types.DefaultPageable(), true)
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}

func TestCreate_InvalidFields(t *testing.T) {
	env := newTestEnv()

	_, err := env.facility.Create(context.Background(), &types.Facility{})
	requireErrKey(t, err, types.ErrKeyFieldInvalid)

	f := env.createFacility(t, "AAAAAAAAAA")
	_, err = env.room.Create(context.Background(), &types.Room{RoomNumber: types.Int(10001), Facility: f.Ref()})
	requireErrKey(t, err, types.ErrKeyFieldInvalid)

	_, err = env.room.Create(context.Background(), &types.Room{RoomNumber: types.Int(1)})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, types.FieldError{Field: "facility", Tag: "required"})
}

func TestCreate_UnknownParent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))

	_, err := env.room.Create(ctx, &types.Room{RoomNumber: types.Int(1), Facility: &types.Facility{ID: types.Int64(rng.Int63())}})
	var cerr *types.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ErrKeyParentNotFound, cerr.Key())

	_, err = env.resident.Create(ctx, &types.Resident{
		Name:        types.String("AAAAAAAAAA"),
		PhoneNumber: types.Int64(1),
		Room:        &types.Room{ID: types.Int64(rng.Int63())},
	})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ConstraintParent, cerr.Reason)

	_, ok := env.resMirror.get(1)
	assert.False(t, ok)
}

func TestCreate_DuplicateUniqueField(t *testing.T) {
	env := newTestEnv()
	env.createFacility(t, "AAAAAAAAAA")

	_, err := env.facility.Create(context.Background(), &types.Facility{Name: types.String("AAAAAAAAAA")})
	var cerr *types.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ErrKeyUnique, cerr.Key())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.StoreOperations.WithLabelValues("facility", "create", "error")))
}

func TestReplace_IDChecks(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.createFacility(t, "AAAAAAAAAA")

	_, err := env.facility.Replace(ctx, *f.ID, &types.Facility{Name: types.String("BBBBBBBBBB")})
	requireErrKey(t, err, types.ErrKeyIDNull)

	_, err = env.facility.Replace(ctx, *f.ID, &types.Facility{ID: types.Int64(*f.ID + 1), Name: types.String("BBBBBBBBBB")})
	requireErrKey(t, err, types.ErrKeyIDInvalid)

	rng := rand.New(rand.NewSource(3))
	missing := rng.Int63n(1000) + 100
	_, err = env.facility.Replace(ctx, missing, &types.Facility{ID: types.Int64(missing), Name: types.String("BBBBBBBBBB")})
	assert.True(t, types.IsNotFound(err))
}

func TestReplace_UpdatesStoreAndMirror(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.createFacility(t, "AAAAAAAAAA")

	updated, err := env.facility.Replace(ctx, *f.ID, &types.Facility{ID: f.ID, Name: types.String("BBBBBBBBBB")})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBB", *updated.Name)

	got, err := env.facility.Get(ctx, *f.ID)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBB", *got.Name)

	mirrored, _ := env.facMirror.get(*f.ID)
	assert.Equal(t, "BBBBBBBBBB", *mirrored.Name)
}

func TestMergePatch_OnlyIDLeavesRecordUnchanged(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.createFacility(t, "AAAAAAAAAA")
	room := env.createRoom(t, *f.ID, 10000)

	patched, err := env.room.MergePatch(ctx, *room.ID, &types.Room{ID: room.ID})
	require.NoError(t, err)
	assert.Equal(t, room, patched)
}

func TestMergePatch_ChangesOnlyGivenFields(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.createFacility(t, "AAAAAAAAAA")
	room := env.createRoom(t, *f.ID, 10000)

	resident, err := env.resident.Create(ctx, &types.Resident{
		Name:        types.String("AAAAAAAAAA"),
		PhoneNumber: types.Int64(types.MaxPhoneNumber),
		Email:       types.String("a@example.com"),
		Room:        room.Ref(),
	})
	require.NoError(t, err)

	patched, err := env.resident.MergePatch(ctx, *resident.ID, &types.Resident{ID: resident.ID, Name: types.String("BBBBBBBBBB")})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBB", *patched.Name)
	assert.Equal(t, types.MaxPhoneNumber, *patched.PhoneNumber)
	assert.Equal(t, "a@example.com", *patched.Email)
	assert.Equal(t, *room.ID, *patched.Room.ID)

	mirrored, _ := env.resMirror.get(*resident.ID)
	assert.Equal(t, patched, mirrored)
}

func TestMergePatch_MovesParent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a := env.createFacility(t, "AAAAAAAAAA")
	b := env.createFacility(t, "BBBBBBBBBB")
	room := env.createRoom(t, *a.ID, 1)

	patched, err := env.room.MergePatch(ctx, *room.ID, &types.Room{ID: room.ID, Facility: &types.Facility{ID: b.ID}})
	require.NoError(t, err)
	assert.Equal(t, b, patched.Facility)
	assert.Equal(t, 1, *patched.RoomNumber)
}

func TestMergePatch_Missing(t *testing.T) {
	env := newTestEnv()

	_, err := env.facility.MergePatch(context.Background(), 5, &types.Facility{ID: types.Int64(5)})
	assert.True(t, types.IsNotFound(err))

	_, err = env.facility.MergePatch(context.Background(), 5, &types.Facility{})
	requireErrKey(t, err, types.ErrKeyIDNull)
}

func TestDelete_ThenGetIsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.createFacility(t, "AAAAAAAAAA")

	require.NoError(t, env.facility.Delete(ctx, *f.ID))
	_, err := env.facility.Get(ctx, *f.ID)
	assert.True(t, types.IsNotFound(err))

	// Deleting again still clears the mirror and does not fail
	require.NoError(t, env.facility.Delete(ctx, *f.ID))
	assert.Equal(t, []int64{*f.ID, *f.ID}, env.facMirror.deletes)
}

func TestDelete_WithDependents(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	f := env.createFacility(t, "AAAAAAAAAA")
	env.createRoom(t, *f.ID, 1)

	err := env.facility.Delete(ctx, *f.ID)
	var cerr *types.ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ConstraintDependents, cerr.Reason)
	assert.Empty(t, env.facMirror.deletes)
}

func TestMirrorFailure_DoesNotRollBackStore(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	mirrorErr := errors.New("index unavailable")
	env.facMirror.err = mirrorErr

	created, err := env.facility.Create(ctx, &types.Facility{Name: types.String("AAAAAAAAAA")})
	require.ErrorIs(t, err, mirrorErr)
	require.NotNil(t, created)

	got, err := env.facility.Get(ctx, *created.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAA", *got.Name)

	err = env.facility.Delete(ctx, *created.ID)
	require.ErrorIs(t, err, mirrorErr)

	exists, err := env.stores.Facilities.ExistsByID(ctx, *created.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.MirrorOperations.WithLabelValues("facility", "save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.MirrorOperations.WithLabelValues("facility", "delete", "error")))
}

func TestSynchronizer_WithSQLiteMirror(t *testing.T) {
	store, err := index.NewSQLiteIndexStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	svc := NewServices(repository.NewMemoryStoresForTest(), index.NewMirrors(store), NewMetrics(nil))

	f, err := svc.Facilities.Create(ctx, &types.Facility{Name: types.String("Sunrise Gardens")})
	require.NoError(t, err)

	page, err := svc.Facilities.Search(ctx, "sunrise", types.DefaultPageable())
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, f, page.Content[0])

	require.NoError(t, svc.Facilities.Delete(ctx, *f.ID))
	page, err = svc.Facilities.Search(ctx, "sunrise", types.DefaultPageable())
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}
