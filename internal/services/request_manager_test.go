package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"renamewiki-system/internal/entities"
	"renamewiki-system/internal/platform"
	"renamewiki-system/internal/repositories"
	"renamewiki-system/pkg/config"
	"renamewiki-system/pkg/constants"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/eventbus"
	"renamewiki-system/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ===== ФАЛЬШИВАЯ ИНФРАСТРУКТУРА =====

// fakeTx подменяет pgx.Tx: встраивание интерфейса избавляет от реализации
// всех методов, а нужные переопределяются.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeDB struct {
	lastTx *fakeTx
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.lastTx = &fakeTx{}
	return d.lastTx, nil
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (d *fakeDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

type fakeRequestRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*entities.RenameRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{nextID: 1, items: make(map[int]*entities.RenameRequest)}
}

func (r *fakeRequestRepo) CreateRequest(ctx context.Context, q repositories.Querier, req *entities.RenameRequest) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	now := time.Now()
	stored := *req
	stored.ID = id
	stored.CreatedAt = &now
	stored.UpdatedAt = &now
	r.items[id] = &stored
	return id, nil
}

func (r *fakeRequestRepo) FindRequest(ctx context.Context, q repositories.Querier, id int) (*entities.RenameRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeRequestRepo) FindRequestForUpdate(ctx context.Context, tx pgx.Tx, id int) (*entities.RenameRequest, error) {
	return r.FindRequest(ctx, tx, id)
}

func (r *fakeRequestRepo) ExistsActiveForWiki(ctx context.Context, oldWiki string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.items {
		if req.OldWiki != oldWiki {
			continue
		}
		switch req.Status {
		case constants.StatusComplete, constants.StatusDeclined, constants.StatusFailed:
		default:
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRequestRepo) setField(id int, mutate func(*entities.RenameRequest)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	mutate(stored)
	return nil
}

func (r *fakeRequestRepo) SetStatus(ctx context.Context, q repositories.Querier, id int, status constants.RequestStatus) error {
	return r.setField(id, func(req *entities.RenameRequest) { req.Status = status })
}

func (r *fakeRequestRepo) SetPrivate(ctx context.Context, q repositories.Querier, id int, private bool) error {
	return r.setField(id, func(req *entities.RenameRequest) { req.Private = private })
}

func (r *fakeRequestRepo) SetLocked(ctx context.Context, q repositories.Querier, id int, locked bool) error {
	return r.setField(id, func(req *entities.RenameRequest) { req.Locked = locked })
}

func (r *fakeRequestRepo) SetOldWiki(ctx context.Context, q repositories.Querier, id int, oldWiki string) error {
	return r.setField(id, func(req *entities.RenameRequest) { req.OldWiki = oldWiki })
}

func (r *fakeRequestRepo) SetNewWiki(ctx context.Context, q repositories.Querier, id int, newWiki string) error {
	return r.setField(id, func(req *entities.RenameRequest) { req.NewWiki = newWiki })
}

func (r *fakeRequestRepo) SetReason(ctx context.Context, q repositories.Querier, id int, reason string) error {
	return r.setField(id, func(req *entities.RenameRequest) { req.Reason = reason })
}

func (r *fakeRequestRepo) ListRequests(ctx context.Context, params utils.QueryParams, viewerID int, canViewPrivate bool) ([]entities.RenameRequest, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]entities.RenameRequest, 0, len(r.items))
	for _, req := range r.items {
		if !canViewPrivate && req.Private && req.RequesterID != viewerID {
			continue
		}
		list = append(list, *req)
	}
	return list, uint64(len(list)), nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   int
	comments []entities.RequestComment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{nextID: 1}
}

func (r *fakeCommentRepo) CreateComment(ctx context.Context, q repositories.Querier, comment *entities.RequestComment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *comment
	stored.ID = r.nextID
	stored.CreatedAt = time.Now()
	r.nextID++
	r.comments = append(r.comments, stored)
	return stored.ID, nil
}

func (r *fakeCommentRepo) FindByRequestID(ctx context.Context, requestID int) ([]entities.RequestComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]entities.RequestComment, 0)
	for _, c := range r.comments {
		if c.RequestID == requestID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) FindInvolvedUserIDs(ctx context.Context, q repositories.Querier, requestID int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]struct{})
	ids := make([]int, 0)
	for _, c := range r.comments {
		if c.RequestID != requestID || c.UserID == nil {
			continue
		}
		if _, ok := seen[*c.UserID]; ok {
			continue
		}
		seen[*c.UserID] = struct{}{}
		ids = append(ids, *c.UserID)
	}
	return ids, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []entities.AuditLogEntry
}

func (r *fakeLogRepo) CreateLogEntry(ctx context.Context, q repositories.Querier, entry *entities.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) FindByRequestID(ctx context.Context, requestID int, includePrivate bool) ([]entities.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]entities.AuditLogEntry, 0)
	for _, e := range r.entries {
		if e.RequestID != requestID {
			continue
		}
		if !includePrivate && e.LogType == constants.LogTypePrivate {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

type fakeUserRepo struct {
	users        map[int]entities.User
	capabilities map[int][]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:        make(map[int]entities.User),
		capabilities: make(map[int][]string),
	}
}

func (r *fakeUserRepo) FindUserByID(ctx context.Context, id int) (*entities.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) FindUserByLogin(ctx context.Context, login string) (*entities.User, error) {
	for _, u := range r.users {
		if u.Username == login || u.Email == login {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) FindUsersByIDs(ctx context.Context, q repositories.Querier, ids []int) ([]entities.User, error) {
	result := make([]entities.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (r *fakeUserRepo) FindUsersByNames(ctx context.Context, names []string) ([]entities.User, error) {
	result := make([]entities.User, 0, len(names))
	for _, name := range names {
		for _, u := range r.users {
			if u.Username == name {
				result = append(result, u)
			}
		}
	}
	return result, nil
}

func (r *fakeUserRepo) GetUserCapabilities(ctx context.Context, userID int) ([]string, error) {
	return r.capabilities[userID], nil
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string]string
	queue map[string][]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		store: make(map[string]string),
		queue: make(map[string][]string),
	}
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := value.(string); ok {
		c.store[key] = s
	}
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.store[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return value, nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.store, key)
	}
	return nil
}

func (c *fakeCache) PushJob(ctx context.Context, queue string, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue[queue] = append(c.queue[queue], payload)
	return nil
}

func (c *fakeCache) PopJob(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.queue[queue]
	if len(items) == 0 {
		return "", apperrors.ErrNotFound
	}
	payload := items[0]
	c.queue[queue] = items[1:]
	return payload, nil
}

type fakeJobQueue struct {
	mu       sync.Mutex
	enqueued []int
	actors   []string
	failWith error
}

func (q *fakeJobQueue) Enqueue(ctx context.Context, requestID int, username string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failWith != nil {
		return q.failWith
	}
	q.enqueued = append(q.enqueued, requestID)
	q.actors = append(q.actors, username)
	return nil
}

// ===== ОБЩАЯ СБОРКА =====

type managerFixture struct {
	db          *fakeDB
	requestRepo *fakeRequestRepo
	commentRepo *fakeCommentRepo
	logRepo     *fakeLogRepo
	userRepo    *fakeUserRepo
	bus         *eventbus.Bus
	factory     *RequestManagerFactory
}

func testRenameWikiConfig() config.RenameWikiConfig {
	return config.RenameWikiConfig{
		EnableAutomatedJob: true,
		ScriptCommand:      "{IP}/maintenance/renamewiki.sh {oldwiki} {newwiki}",
		InstallPath:        "/srv/mediawiki",
		LocalWikis:         []string{"alphawiki", "betawiki", "secretwiki"},
		PrivateWikis:       []string{"secretwiki"},
	}
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	f := &managerFixture{
		db:          &fakeDB{},
		requestRepo: newFakeRequestRepo(),
		commentRepo: newFakeCommentRepo(),
		logRepo:     &fakeLogRepo{},
		userRepo:    newFakeUserRepo(),
		bus:         eventbus.New(zap.NewNop()),
	}

	cfg := testRenameWikiConfig()
	directory := platform.NewConfigDirectory(cfg)
	f.factory = NewRequestManagerFactory(
		f.db, f.requestRepo, f.commentRepo, f.logRepo, f.userRepo,
		directory, f.bus, cfg, zap.NewNop(),
	)
	return f
}

func (f *managerFixture) seedRequest(t *testing.T, status constants.RequestStatus, private bool) int {
	t.Helper()

	id, err := f.requestRepo.CreateRequest(context.Background(), nil, &entities.RenameRequest{
		OldWiki:       "alphawiki",
		NewWiki:       "gammawiki",
		Reason:        "Проект сменил название",
		Private:       private,
		Status:        status,
		RequesterID:   1,
		RequesterName: "alice",
	})
	require.NoError(t, err)
	return id
}

func (f *managerFixture) loadedManager(t *testing.T, id int) *RequestManager {
	t.Helper()

	m := f.factory.NewManager()
	require.NoError(t, m.LoadFromID(context.Background(), id))
	require.True(t, m.Exists())
	return m
}

// ===== ТЕСТЫ МЕНЕДЖЕРА =====

func TestRequestManager_LoadMissingRequest(t *testing.T) {
	f := newManagerFixture(t)

	m := f.factory.NewManager()
	require.NoError(t, m.LoadFromID(context.Background(), 404))
	assert.False(t, m.Exists())

	err := m.SetStatus(context.Background(), constants.StatusDeclined)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRequestManager_SetStatus_RejectsUndefinedTransition(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)

	err := m.SetStatus(context.Background(), constants.StatusFailed)
	assert.ErrorIs(t, err, apperrors.ErrStateConflict)

	// Статус не должен измениться ни в памяти, ни в хранилище.
	assert.Equal(t, constants.StatusPending, m.Status())
	stored, _ := f.requestRepo.FindRequest(context.Background(), nil, id)
	assert.Equal(t, constants.StatusPending, stored.Status)
}

func TestRequestManager_SetStatus_AllowsDefinedTransition(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)

	require.NoError(t, m.SetStatus(context.Background(), constants.StatusStarting))
	assert.Equal(t, constants.StatusStarting, m.Status())

	stored, _ := f.requestRepo.FindRequest(context.Background(), nil, id)
	assert.Equal(t, constants.StatusStarting, stored.Status)
}

func TestRequestManager_IsPrivate(t *testing.T) {
	f := newManagerFixture(t)

	// Публичная заявка по публичной вики.
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)
	assert.False(t, m.IsPrivate(false))
	assert.False(t, m.IsPrivate(true))

	// Явно приватная заявка по публичной вики: флаг заявки учитывается,
	// но принудительная приватность отсутствует.
	id2 := f.seedRequest(t, constants.StatusPending, true)
	m2 := f.loadedManager(t, id2)
	assert.True(t, m2.IsPrivate(false))
	assert.False(t, m2.IsPrivate(true))

	// Вики закрыта на уровне платформы: приватность принудительная,
	// даже если флаг заявки снят.
	id3, err := f.requestRepo.CreateRequest(context.Background(), nil, &entities.RenameRequest{
		OldWiki: "secretwiki", NewWiki: "newsecretwiki", Reason: "...",
		Private: false, Status: constants.StatusPending, RequesterID: 1,
	})
	require.NoError(t, err)
	m3 := f.loadedManager(t, id3)
	assert.True(t, m3.IsPrivate(false))
	assert.True(t, m3.IsPrivate(true))
}

func TestRequestManager_SetPrivate_ForcedPrivacyCannotBeUnset(t *testing.T) {
	f := newManagerFixture(t)
	id, err := f.requestRepo.CreateRequest(context.Background(), nil, &entities.RenameRequest{
		OldWiki: "secretwiki", NewWiki: "newsecretwiki", Reason: "...",
		Private: true, Status: constants.StatusPending, RequesterID: 1,
	})
	require.NoError(t, err)
	m := f.loadedManager(t, id)

	err = m.SetPrivate(context.Background(), false)
	assert.ErrorIs(t, err, apperrors.ErrPrivacyForced)
	assert.True(t, m.IsPrivate(false))
}

func TestRequestManager_SetOldWiki_RejectsUnknownWiki(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)

	err := m.SetOldWiki(context.Background(), "nosuchwiki")
	assert.ErrorIs(t, err, apperrors.ErrUnknownTargetWiki)
	assert.Equal(t, "alphawiki", m.OldWiki())
}

func TestRequestManager_GetInvolvedUserIDs_Dedupes(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)

	userTwo, userThree := 2, 3
	require.NoError(t, m.AddComment(context.Background(), &userTwo, "bob", "первый"))
	require.NoError(t, m.AddComment(context.Background(), &userThree, "carol", "второй"))
	require.NoError(t, m.AddComment(context.Background(), &userTwo, "bob", "третий"))
	// Машинный комментарий участника не добавляет.
	require.NoError(t, m.AddComment(context.Background(), nil, string(constants.ActorStatusUpdate), "статус изменен"))

	involved, err := m.GetInvolvedUserIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, involved)
}

func TestRequestManager_AddComment_SystemActorSendsNoNotification(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)

	received := make(chan eventbus.Event, 4)
	f.bus.Subscribe("renamewiki.request.commented", func(ctx context.Context, e eventbus.Event) error {
		received <- e
		return nil
	})

	m := f.loadedManager(t, id)
	require.NoError(t, m.AddComment(context.Background(), nil, string(constants.ActorExtension), "машинный комментарий"))

	select {
	case <-received:
		t.Fatal("машинный комментарий не должен порождать уведомление")
	case <-time.After(100 * time.Millisecond):
	}

	userTwo := 2
	require.NoError(t, m.AddComment(context.Background(), &userTwo, "bob", "живой комментарий"))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("комментарий пользователя должен порождать уведомление")
	}
}

func TestRequestManager_AtomicSection_EventsFlushedAfterCommit(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)

	received := make(chan eventbus.Event, 4)
	f.bus.Subscribe("renamewiki.request.commented", func(ctx context.Context, e eventbus.Event) error {
		received <- e
		return nil
	})

	m := f.loadedManager(t, id)
	require.NoError(t, m.StartAtomic(context.Background()))

	userTwo := 2
	require.NoError(t, m.AddComment(context.Background(), &userTwo, "bob", "в транзакции"))

	// До фиксации событий нет.
	select {
	case <-received:
		t.Fatal("событие опубликовано до коммита")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, m.EndAtomic(context.Background()))
	require.True(t, f.db.lastTx.committed)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("событие не опубликовано после коммита")
	}
}

func TestRequestManager_Abort_DropsPendingEvents(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)

	received := make(chan eventbus.Event, 4)
	f.bus.Subscribe("renamewiki.request.commented", func(ctx context.Context, e eventbus.Event) error {
		received <- e
		return nil
	})

	m := f.loadedManager(t, id)
	require.NoError(t, m.StartAtomic(context.Background()))

	userTwo := 2
	require.NoError(t, m.AddComment(context.Background(), &userTwo, "bob", "не будет отправлено"))
	m.Abort(context.Background())
	require.True(t, f.db.lastTx.rolledBack)

	select {
	case <-received:
		t.Fatal("события отмененной транзакции не должны публиковаться")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequestManager_Command_Substitution(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)

	assert.Equal(t, "/srv/mediawiki/maintenance/renamewiki.sh alphawiki gammawiki", m.Command())
}

func TestRequestManager_LogType(t *testing.T) {
	f := newManagerFixture(t)

	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)
	assert.Equal(t, constants.LogTypePublic, m.LogType())

	id2 := f.seedRequest(t, constants.StatusPending, true)
	m2 := f.loadedManager(t, id2)
	assert.Equal(t, constants.LogTypePrivate, m2.LogType())
}

func TestRequestManager_LogStatusUpdate_WritesEntry(t *testing.T) {
	f := newManagerFixture(t)
	id := f.seedRequest(t, constants.StatusPending, false)
	m := f.loadedManager(t, id)

	userOne := 1
	require.NoError(t, m.LogStatusUpdate(context.Background(), "alice", &userOne, constants.StatusDeclined))

	entries, err := f.logRepo.FindByRequestID(context.Background(), id, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, constants.LogActionStatusUpdate, entries[0].Action)
	assert.Equal(t, constants.LogTypePublic, entries[0].LogType)
	assert.Equal(t, "declined", entries[0].Params["status"])
}
