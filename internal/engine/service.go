package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"levelup/internal/storage"
)

type PlayerStore interface {
	Get(ctx context.Context, userID string) (*storage.Player, error)
	GetOrCreate(ctx context.Context, userID string) (*storage.Player, error)
	Update(ctx context.Context, p *storage.Player) error
	SetLevel(ctx context.Context, userID string, level, totalXP int) error
	Delete(ctx context.Context, userID string) error
}

type SkillStore interface {
	InsertDefaults(ctx context.Context, userID string, skills []storage.Skill) error
	GetByName(ctx context.Context, userID, name string) (*storage.Skill, error)
	List(ctx context.Context, userID string) ([]storage.Skill, error)
	Update(ctx context.Context, s *storage.Skill) error
	DeleteAll(ctx context.Context, userID string) error
}

type PerkStore interface {
	InsertDefaults(ctx context.Context, userID string, perks []storage.Perk) error
	ListLockedUpTo(ctx context.Context, userID, skill string, level int) ([]storage.Perk, error)
	Unlock(ctx context.Context, userID string, id int64, at time.Time) error
	List(ctx context.Context, userID string) ([]storage.Perk, error)
	ListBySkill(ctx context.Context, userID, skill string) ([]storage.Perk, error)
	ListUnlocked(ctx context.Context, userID string) ([]storage.Perk, error)
	DeleteAll(ctx context.Context, userID string) error
}

type QuestStore interface {
	Insert(ctx context.Context, q *storage.Quest) error
	Get(ctx context.Context, userID string, id int64) (*storage.Quest, error)
	List(ctx context.Context, userID string, f storage.QuestFilter) ([]storage.Quest, error)
	UpdateDetails(ctx context.Context, q *storage.Quest) error
	UpdateTimer(ctx context.Context, q *storage.Quest, from string) error
	MarkCompleted(ctx context.Context, q *storage.Quest) error
	MarkOverdue(ctx context.Context, userID string, now time.Time) (int64, error)
	CountCompleted(ctx context.Context, userID, statType string, since time.Time) (int, error)
	Delete(ctx context.Context, userID string, id int64) (bool, error)
	DeleteAll(ctx context.Context, userID string) error
}

type TemplateStore interface {
	Insert(ctx context.Context, t *storage.QuestTemplate) error
	Get(ctx context.Context, userID string, id int64) (*storage.QuestTemplate, error)
	List(ctx context.Context, userID string, activeOnly bool) ([]storage.QuestTemplate, error)
	Update(ctx context.Context, t *storage.QuestTemplate) error
	ClaimGeneration(ctx context.Context, userID string, id int64, dayStart, now time.Time) error
	RecordHabitCompletion(ctx context.Context, t *storage.QuestTemplate, at time.Time) error
	Delete(ctx context.Context, userID string, id int64) (bool, error)
	DeleteAll(ctx context.Context, userID string) error
}

type GoalStore interface {
	Insert(ctx context.Context, g *storage.Goal) error
	Get(ctx context.Context, userID string, id int64) (*storage.Goal, error)
	List(ctx context.Context, userID string) ([]storage.Goal, error)
	ListActive(ctx context.Context, userID string, now time.Time) ([]storage.Goal, error)
	Update(ctx context.Context, g *storage.Goal) error
	AppendAchievements(ctx context.Context, goalID int64, achievements []storage.GoalAchievement) error
	Delete(ctx context.Context, userID string, id int64) (bool, error)
	DeleteAll(ctx context.Context, userID string) error
}

type RaidStore interface {
	Active(ctx context.Context, userID string) (*storage.Raid, error)
	Get(ctx context.Context, userID string, id int64) (*storage.Raid, error)
	Insert(ctx context.Context, raid *storage.Raid) error
	Finish(ctx context.Context, raid *storage.Raid, status string, xp int, at time.Time) error
	History(ctx context.Context, userID string, limit int) ([]storage.Raid, error)
	DeleteAll(ctx context.Context, userID string) error
}

// Stores groups the collaborators bound to one handle (the DB or a transaction).
type Stores struct {
	Players   PlayerStore
	Skills    SkillStore
	Perks     PerkStore
	Quests    QuestStore
	Templates TemplateStore
	Goals     GoalStore
	Raids     RaidStore
}

type Service struct {
	db       *sql.DB
	stores   Stores
	wrapGoal func(GoalStore) GoalStore

	log *zap.SugaredLogger
	now func() time.Time
	loc *time.Location

	locks     *xsync.MapOf[string, *sync.Mutex]
	generated *lru.Cache
}

type Option func(*Service)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock replaces time.Now. Tests use it to drive timers and calendar days.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithGoalStore wraps the goal store on every handle the service opens.
func WithGoalStore(wrap func(GoalStore) GoalStore) Option {
	return func(s *Service) {
		s.wrapGoal = wrap
	}
}

const generatedCacheSize = 256

func NewService(db *sql.DB, opts ...Option) *Service {
	cache, err := lru.New(generatedCacheSize)
	if err != nil {
		panic(err)
	}
	s := &Service{
		db:        db,
		log:       zap.NewNop().Sugar(),
		now:       time.Now,
		loc:       time.Local,
		locks:     xsync.NewMapOf[string, *sync.Mutex](),
		generated: cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stores = s.storesFor(db)
	return s
}

func (s *Service) storesFor(db storage.DBTX) Stores {
	r := storage.NewRepos(db)
	st := Stores{
		Players:   r.Players,
		Skills:    r.Skills,
		Perks:     r.Perks,
		Quests:    r.Quests,
		Templates: r.Templates,
		Goals:     r.Goals,
		Raids:     r.Raids,
	}
	if s.wrapGoal != nil {
		st.Goals = s.wrapGoal(st.Goals)
	}
	return st
}

// inTx runs fn against stores bound to a single transaction.
func (s *Service) inTx(ctx context.Context, fn func(st Stores) error) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(s.storesFor(tx))
	})
}

// lockUser serializes progression writes for one user.
func (s *Service) lockUser(userID string) func() {
	mu, _ := s.locks.LoadOrCompute(userID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Now is the service clock in its configured location.
func (s *Service) Now() time.Time { return s.clock() }

// Location is the zone calendar days are computed in.
func (s *Service) Location() *time.Location { return s.loc }

func normalizeUser(userID string) (string, error) {
	u := strings.TrimSpace(userID)
	if u == "" {
		return "", invalid("userID", "is required")
	}
	return u, nil
}

func normalizeTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", invalid("title", "is required")
	}
	return t, nil
}

// conflictAsTransition turns a lost guarded update into an InvalidTransitionError.
func conflictAsTransition(err error, entity string, id int64, from, action string) error {
	if errors.Is(err, storage.ErrConflict) {
		return &InvalidTransitionError{Entity: entity, ID: id, From: from, Action: action}
	}
	return err
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b in loc; negative when b is earlier.
func daysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// isoWeekday returns Monday=1 ... Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
