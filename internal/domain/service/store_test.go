package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/aficionados/clubs/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDB is an in-memory stand-in for the postgres storages. Composite
// operations (club+owner, ban, transfer, approve) validate everything before
// mutating, which gives them the same all-or-nothing behavior as the
// transactions they replace.
type memDB struct {
	mu       sync.Mutex
	clubs    map[string]*entity.Club
	members  map[memberKey]*entity.Membership
	bans     map[memberKey]*entity.Ban
	requests map[string]*entity.JoinRequest
	users    map[int64]*entity.User
	seq      int
	now      time.Time

	// fail, when set, is returned by every membership storage call.
	fail error
}

type memberKey struct {
	clubID string
	userID int64
}

func newMemDB() *memDB {
	return &memDB{
		clubs:    make(map[string]*entity.Club),
		members:  make(map[memberKey]*entity.Membership),
		bans:     make(map[memberKey]*entity.Ban),
		requests: make(map[string]*entity.JoinRequest),
		users:    make(map[int64]*entity.User),
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) tick() time.Time {
	db.now = db.now.Add(time.Second)
	return db.now
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *memDB) addUsers(ids ...int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, id := range ids {
		db.users[id] = &entity.User{ID: id, Username: fmt.Sprintf("user%d", id), PlatformRole: entity.PlatformUser}
	}
}

func (db *memDB) countMembers(clubID string) int64 {
	var n int64
	for key := range db.members {
		if key.clubID == clubID {
			n++
		}
	}
	return n
}

// join mirrors postgres.joinClub; the caller holds the lock.
func (db *memDB) join(m *entity.Membership) error {
	club, ok := db.clubs[m.ClubID]
	if !ok {
		return errorz.ErrClubNotFound
	}
	key := memberKey{m.ClubID, m.UserID}
	if _, banned := db.bans[key]; banned {
		return errorz.ErrUserBanned
	}
	if !club.HasRoomFor(db.countMembers(m.ClubID)) {
		return errorz.ErrCapacityExceeded
	}
	if _, exists := db.members[key]; exists {
		return errorz.ErrMemberAlreadyExists
	}
	m.JoinedAt = db.tick()
	stored := *m
	db.members[key] = &stored
	return nil
}

func (db *memDB) dropPending(key memberKey) {
	for id, r := range db.requests {
		if r.ClubID == key.clubID && r.UserID == key.userID && r.Status == entity.JoinRequestPending {
			delete(db.requests, id)
		}
	}
}

func (db *memDB) inviteCodeTaken(club *entity.Club) bool {
	if club.InviteCode == nil {
		return false
	}
	for id, existing := range db.clubs {
		if id != club.ID && existing.InviteCode != nil && *existing.InviteCode == *club.InviteCode {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page dto.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ===== clubs =====

type memClubs struct{ *memDB }

func (s memClubs) CreateWithOwner(_ context.Context, club *entity.Club) (*entity.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entity.ClubNameKey(club.Name)
	for _, existing := range s.clubs {
		if existing.NameKey == key {
			return nil, errorz.ErrClubAlreadyExists
		}
	}
	if s.inviteCodeTaken(club) {
		return nil, errorz.ErrInviteCodeTaken
	}

	club.ID = s.nextID("club")
	club.NameKey = key
	club.CreatedAt = s.tick()
	club.UpdatedAt = club.CreatedAt
	stored := *club
	s.clubs[club.ID] = &stored
	s.members[memberKey{club.ID, club.CreatedBy}] = &entity.Membership{
		ClubID:   club.ID,
		UserID:   club.CreatedBy,
		Role:     entity.RoleOwner,
		JoinedAt: s.tick(),
	}
	return club, nil
}

func (s memClubs) Get(_ context.Context, id string) (*entity.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	club, ok := s.clubs[id]
	if !ok {
		return nil, errorz.ErrClubNotFound
	}
	c := *club
	return &c, nil
}

func (s memClubs) GetByInviteCode(_ context.Context, code string) (*entity.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, club := range s.clubs {
		if club.IsPrivate() && club.InviteCode != nil && *club.InviteCode == code {
			c := *club
			return &c, nil
		}
	}
	return nil, errorz.ErrInvalidCode
}

func (s memClubs) NameTaken(_ context.Context, name string, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entity.ClubNameKey(name)
	for id, club := range s.clubs {
		if id != excludeID && club.NameKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (s memClubs) Update(_ context.Context, club *entity.Club) (*entity.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entity.ClubNameKey(club.Name)
	for id, existing := range s.clubs {
		if id != club.ID && existing.NameKey == key {
			return nil, errorz.ErrClubAlreadyExists
		}
	}
	if s.inviteCodeTaken(club) {
		return nil, errorz.ErrInviteCodeTaken
	}
	club.NameKey = key
	club.UpdatedAt = s.tick()
	stored := *club
	s.clubs[club.ID] = &stored
	return club, nil
}

func (s memClubs) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clubs[id]; !ok {
		return errorz.ErrClubNotFound
	}
	for key := range s.members {
		if key.clubID == id {
			delete(s.members, key)
		}
	}
	for key := range s.bans {
		if key.clubID == id {
			delete(s.bans, key)
		}
	}
	for rid, r := range s.requests {
		if r.ClubID == id {
			delete(s.requests, rid)
		}
	}
	delete(s.clubs, id)
	return nil
}

func (s memClubs) List(_ context.Context, filter dto.ClubFilter, page dto.Page) ([]entity.Club, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var clubs []entity.Club
	for _, club := range s.clubs {
		if club.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Visibility != nil && club.Visibility != *filter.Visibility {
			continue
		}
		if filter.Search != "" && !strings.Contains(club.NameKey, entity.ClubNameKey(filter.Search)) {
			continue
		}
		clubs = append(clubs, *club)
	}
	sort.Slice(clubs, func(i, j int) bool { return clubs[i].CreatedAt.After(clubs[j].CreatedAt) })
	return paginate(clubs, page), int64(len(clubs)), nil
}

// ===== memberships =====

type memMembers struct{ *memDB }

func (s memMembers) Create(_ context.Context, m *entity.Membership) (*entity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if err := s.join(m); err != nil {
		return nil, err
	}
	s.dropPending(memberKey{m.ClubID, m.UserID})
	return m, nil
}

func (s memMembers) Get(_ context.Context, clubID string, userID int64) (*entity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	m, ok := s.members[memberKey{clubID, userID}]
	if !ok {
		return nil, errorz.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (s memMembers) Delete(_ context.Context, clubID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	key := memberKey{clubID, userID}
	if m, ok := s.members[key]; ok && m.Role != entity.RoleOwner {
		delete(s.members, key)
	}
	return nil
}

func (s memMembers) UpdateRole(_ context.Context, clubID string, userID int64, role entity.Role) (*entity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	m, ok := s.members[memberKey{clubID, userID}]
	if !ok {
		return nil, errorz.ErrMemberNotFound
	}
	if m.Role == entity.RoleOwner {
		return nil, errorz.ErrOwnerRoleChange
	}
	m.Role = role
	c := *m
	return &c, nil
}

func (s memMembers) TransferOwnership(_ context.Context, clubID string, currentOwnerID, newOwnerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.clubs[clubID]; !ok {
		return errorz.ErrClubNotFound
	}
	current, ok := s.members[memberKey{clubID, currentOwnerID}]
	if !ok || current.Role != entity.RoleOwner {
		return errorz.ErrNotOwner
	}
	next, ok := s.members[memberKey{clubID, newOwnerID}]
	if !ok {
		return errorz.ErrMemberNotFound
	}
	current.Role = entity.RoleAdmin
	next.Role = entity.RoleOwner
	return nil
}

func (s memMembers) Count(_ context.Context, clubID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	return s.countMembers(clubID), nil
}

func (s memMembers) CountByClubIDs(_ context.Context, clubIDs []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, id := range clubIDs {
		if n := s.countMembers(id); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (s memMembers) List(_ context.Context, clubID string, filter dto.MemberFilter, page dto.Page) ([]entity.Membership, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []entity.Membership
	for key, m := range s.members {
		if key.clubID != clubID || (filter.Role != nil && m.Role != *filter.Role) {
			continue
		}
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Role.Rank() != members[j].Role.Rank() {
			return members[i].Role.Rank() < members[j].Role.Rank()
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return paginate(members, page), int64(len(members)), nil
}

func (s memMembers) OwnershipViolations(_ context.Context) ([]dto.OwnershipViolation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var violations []dto.OwnershipViolation
	for id := range s.clubs {
		var owners int64
		for key, m := range s.members {
			if key.clubID == id && m.Role == entity.RoleOwner {
				owners++
			}
		}
		if owners != 1 {
			violations = append(violations, dto.OwnershipViolation{ClubID: id, Owners: owners})
		}
	}
	return violations, nil
}

// ===== bans =====

type memBans struct{ *memDB }

func (s memBans) Ban(_ context.Context, ban *entity.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clubs[ban.ClubID]; !ok {
		return errorz.ErrClubNotFound
	}
	key := memberKey{ban.ClubID, ban.UserID}
	m, ok := s.members[key]
	if !ok {
		return errorz.ErrMemberNotFound
	}
	if m.Role != entity.RoleMember {
		return errorz.ErrCannotBanPrivileged
	}
	if _, banned := s.bans[key]; banned {
		return errorz.ErrAlreadyBanned
	}
	delete(s.members, key)
	s.dropPending(key)
	ban.CreatedAt = s.tick()
	stored := *ban
	s.bans[key] = &stored
	return nil
}

func (s memBans) IsBanned(_ context.Context, clubID string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bans[memberKey{clubID, userID}]
	return ok, nil
}

func (s memBans) Delete(_ context.Context, clubID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{clubID, userID}
	if _, ok := s.bans[key]; !ok {
		return errorz.ErrNotBanned
	}
	delete(s.bans, key)
	return nil
}

func (s memBans) List(_ context.Context, clubID string, page dto.Page) ([]entity.Ban, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bans []entity.Ban
	for key, b := range s.bans {
		if key.clubID == clubID {
			bans = append(bans, *b)
		}
	}
	sort.Slice(bans, func(i, j int) bool { return bans[i].CreatedAt.After(bans[j].CreatedAt) })
	return paginate(bans, page), int64(len(bans)), nil
}

// ===== join requests =====

type memRequests struct{ *memDB }

func (s memRequests) Create(_ context.Context, r *entity.JoinRequest) (*entity.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.ClubID == r.ClubID && existing.UserID == r.UserID && existing.IsPending() && r.IsPending() {
			return nil, errorz.ErrAlreadyApplied
		}
	}
	r.ID = s.nextID("request")
	r.CreatedAt = s.tick()
	r.UpdatedAt = r.CreatedAt
	stored := *r
	s.requests[r.ID] = &stored
	return r, nil
}

func (s memRequests) Get(_ context.Context, id string) (*entity.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, errorz.ErrJoinRequestNotFound
	}
	c := *r
	return &c, nil
}

func (s memRequests) GetLatest(_ context.Context, clubID string, userID int64) (*entity.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *entity.JoinRequest
	for _, r := range s.requests {
		if r.ClubID == clubID && r.UserID == userID && (latest == nil || r.CreatedAt.After(latest.CreatedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, errorz.ErrJoinRequestNotFound
	}
	c := *latest
	return &c, nil
}

func (s memRequests) DeleteProcessed(_ context.Context, clubID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.requests {
		if r.ClubID == clubID && r.UserID == userID && !r.IsPending() {
			delete(s.requests, id)
		}
	}
	return nil
}

func (s memRequests) DeletePending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || !r.IsPending() {
		return errorz.ErrRequestProcessed
	}
	delete(s.requests, id)
	return nil
}

func (s memRequests) Approve(_ context.Context, id string, reviewerID int64) (*entity.JoinRequest, *entity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil, errorz.ErrJoinRequestNotFound
	}
	if !r.IsPending() {
		return nil, nil, errorz.ErrRequestProcessed
	}
	m := &entity.Membership{ClubID: r.ClubID, UserID: r.UserID, Role: entity.RoleMember}
	if err := s.join(m); err != nil {
		return nil, nil, err
	}
	now := s.tick()
	r.Status = entity.JoinRequestApproved
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &now
	c := *r
	return &c, m, nil
}

func (s memRequests) Reject(_ context.Context, id string, reviewerID int64) (*entity.JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, errorz.ErrJoinRequestNotFound
	}
	if !r.IsPending() {
		return nil, errorz.ErrRequestProcessed
	}
	now := s.tick()
	r.Status = entity.JoinRequestRejected
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &now
	c := *r
	return &c, nil
}

func (s memRequests) List(_ context.Context, filter dto.JoinRequestFilter, page dto.Page) ([]entity.JoinRequest, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var requests []entity.JoinRequest
	for _, r := range s.requests {
		if filter.ClubID != "" && r.ClubID != filter.ClubID {
			continue
		}
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		requests = append(requests, *r)
	}
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].IsPending() != requests[j].IsPending() {
			return requests[i].IsPending()
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return paginate(requests, page), int64(len(requests)), nil
}

// ===== users =====

type memUsers struct{ *memDB }

func (s memUsers) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s memUsers) Upsert(_ context.Context, user *entity.User) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *user
	s.users[user.ID] = &stored
	return user, nil
}

func (s memUsers) Get(_ context.Context, id int64) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, errorz.ErrUserNotFound
	}
	c := *user
	return &c, nil
}

// ===== invite attempts =====

type memAttempts struct {
	mu     sync.Mutex
	counts map[int64]int64
}

func newMemAttempts() *memAttempts {
	return &memAttempts{counts: make(map[int64]int64)}
}

func (a *memAttempts) Get(_ context.Context, userID int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[userID], nil
}

func (a *memAttempts) Increment(_ context.Context, userID int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[userID]++
	return a.counts[userID], nil
}

func (a *memAttempts) Reset(_ context.Context, userID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.counts, userID)
	return nil
}

// ===== wiring =====

const testMaxAttempts = 3

type testEnv struct {
	db       *memDB
	attempts *memAttempts
	clubs    *ClubService
	members  *MembershipService
	bans     *BanService
	requests *JoinRequestService
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	db.addUsers(1, 2, 3, 4, 5)
	attempts := newMemAttempts()
	log := logger.Nop()

	members := NewMembershipService(log, memMembers{db}, memClubs{db}, memUsers{db}, memBans{db})
	gate := NewAuthorizationGate(log, members, entity.PlatformAdmin)
	env := &testEnv{
		db:       db,
		attempts: attempts,
		clubs:    NewClubService(log, memClubs{db}, memMembers{db}, memBans{db}, memRequests{db}, gate, "https://clubs.example/join/%s"),
		members:  members,
		bans:     NewBanService(log, memBans{db}, memMembers{db}),
		requests: NewJoinRequestService(log, memRequests{db}, memClubs{db}, members, memBans{db}, attempts, testMaxAttempts),
		users:    NewUserService(log, memUsers{db}),
	}
	t.Cleanup(func() { env.assertInvariants(t) })
	return env
}

func (e *testEnv) createClub(t *testing.T, ownerID int64, params dto.CreateClub) *dto.Club {
	t.Helper()
	club, err := e.clubs.Create(context.Background(), ownerID, params)
	require.NoError(t, err)
	return club
}

func (e *testEnv) role(t *testing.T, clubID string, userID int64) entity.Role {
	t.Helper()
	role, err := e.members.GetRole(context.Background(), clubID, userID)
	require.NoError(t, err)
	return role
}

// assertInvariants checks the properties that must hold after every committed
// operation.
func (e *testEnv) assertInvariants(t *testing.T) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	for id, club := range e.db.clubs {
		var owners int64
		for key, m := range e.db.members {
			if key.clubID == id && m.Role == entity.RoleOwner {
				owners++
			}
		}
		assert.EqualValues(t, 1, owners, "club %s owners", id)

		if club.MaxMembers != nil {
			assert.LessOrEqual(t, e.db.countMembers(id), int64(*club.MaxMembers), "club %s capacity", id)
		}
		assert.Equal(t, club.IsPrivate(), club.InviteCode != nil, "club %s invite code", id)
		assert.False(t, e.db.inviteCodeTaken(club), "club %s shares its invite code", id)
	}

	for key := range e.db.bans {
		_, member := e.db.members[key]
		assert.False(t, member, "user %d is both banned and a member of %s", key.userID, key.clubID)
	}

	pending := make(map[memberKey]int)
	for _, r := range e.db.requests {
		if r.IsPending() {
			pending[memberKey{r.ClubID, r.UserID}]++
		}
	}
	for key, n := range pending {
		assert.LessOrEqual(t, n, 1, "pending requests of user %d in %s", key.userID, key.clubID)
		_, banned := e.db.bans[key]
		assert.False(t, banned, "user %d is banned from %s but still has a pending request", key.userID, key.clubID)
		_, member := e.db.members[key]
		assert.False(t, member, "user %d is a member of %s but still has a pending request", key.userID, key.clubID)
	}
}

func intPtr(v int) *int { return &v }
