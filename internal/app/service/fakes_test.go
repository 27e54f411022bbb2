package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

// The repository fakes below hold everything in memory and ignore the *sql.Tx
// argument, so the services only need a database handle whose transactions
// begin and commit. stubConnector provides exactly that.

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConnector struct{}

func (stubConnector) Connect(context.Context) (driver.Conn, error) { return stubConn{}, nil }
func (stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func newStubDB(t *testing.T) *sql.DB {
	t.Helper()
	db := sql.OpenDB(stubConnector{})
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	solved map[string]map[string]bool // userID -> problemID

	failUpdateProgression bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		solved: make(map[string]map[string]bool),
	}
}

func (r *fakeUserRepo) put(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.users[u.ID] = &copied
}

func (r *fakeUserRepo) get(id string) model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[id]
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return common.ErrConflict
		}
	}
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) GetForUpdate(ctx context.Context, _ *sql.Tx, id string) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeUserRepo) UpdateProgression(_ context.Context, _ *sql.Tx, userID string, stats model.UserStats, profile model.UserProfile) error {
	if r.failUpdateProgression {
		return errors.New("injected progression failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Stats = stats
	u.Profile = profile
	return nil
}

func (r *fakeUserRepo) TryMarkSolved(_ context.Context, _ *sql.Tx, userID, problemID, _ string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.solved[userID]
	if !ok {
		set = make(map[string]bool)
		r.solved[userID] = set
	}
	if set[problemID] {
		return false, nil
	}
	set[problemID] = true
	return true, nil
}

func (r *fakeUserRepo) GetSolvedProblemIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id := range r.solved[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeUserRepo) IncrementContestsParticipated(_ context.Context, _ *sql.Tx, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Stats.ContestsParticipated++
	return nil
}

func (r *fakeUserRepo) SetContestRating(_ context.Context, userID string, rating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.Stats.ContestRating = rating
	return nil
}

func (r *fakeUserRepo) GetLeaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []model.LeaderboardEntry
	for _, u := range r.users {
		entries = append(entries, model.LeaderboardEntry{
			UserID:       u.ID,
			Username:     u.Username,
			Rating:       u.Profile.Rating,
			MaxRating:    u.Profile.MaxRating,
			TotalSolved:  u.Stats.TotalSolved,
			EasySolved:   u.Stats.EasySolved,
			MediumSolved: u.Stats.MediumSolved,
			HardSolved:   u.Stats.HardSolved,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rating > entries[j].Rating })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

type fakeProblemRepo struct {
	mu       sync.Mutex
	problems map[string]*model.Problem
	cases    map[string][]model.TestCase
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{
		problems: make(map[string]*model.Problem),
		cases:    make(map[string][]model.TestCase),
	}
}

func (r *fakeProblemRepo) CreateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.problems {
		if existing.Slug == p.Slug {
			return common.ErrConflict
		}
	}
	copied := *p
	r.problems[p.ID] = &copied
	return nil
}

func (r *fakeProblemRepo) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProblemRepo) FindProblemBySlug(_ context.Context, slug string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) ListProblems(_ context.Context, limit, offset int, difficulty model.ProblemDifficulty, onlyPublished bool) ([]model.Problem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Problem
	for _, p := range r.problems {
		if onlyPublished && !p.IsPublished {
			continue
		}
		if difficulty != "" && p.Difficulty != difficulty {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *fakeProblemRepo) SetPublished(_ context.Context, _ *sql.Tx, problemID string, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[problemID]
	if !ok {
		return common.ErrNotFound
	}
	p.IsPublished = published
	return nil
}

func (r *fakeProblemRepo) AddTestCases(_ context.Context, _ *sql.Tx, cases []model.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cases {
		if c.ProblemID != nil {
			r.cases[*c.ProblemID] = append(r.cases[*c.ProblemID], c)
		}
	}
	return nil
}

func (r *fakeProblemRepo) GetTestCases(_ context.Context, problemID string, visibleOnly bool) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TestCase
	for _, c := range r.cases[problemID] {
		if visibleOnly && c.IsHidden {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[string]*model.Submission
	results     map[string][]model.TestCaseResult
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		submissions: make(map[string]*model.Submission),
		results:     make(map[string][]model.TestCaseResult),
	}
}

func (r *fakeSubmissionRepo) CreateSubmission(_ context.Context, _ *sql.Tx, s *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	copied.SubmittedAt = time.Now()
	r.submissions[s.ID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) GetSubmissionByID(_ context.Context, id string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSubmissionRepo) FinalizeSubmission(_ context.Context, _ *sql.Tx, submissionID string, status model.SubmissionStatus, score, runtimeMs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[submissionID]
	if !ok {
		return common.ErrNotFound
	}
	if s.Status != model.StatusPending {
		return common.ErrConflict
	}
	s.Status = status
	s.Score = score
	s.RuntimeMs = runtimeMs
	return nil
}

func (r *fakeSubmissionRepo) CreateTestCaseResults(_ context.Context, _ *sql.Tx, results []model.TestCaseResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		r.results[res.SubmissionID] = append(r.results[res.SubmissionID], res)
	}
	return nil
}

func (r *fakeSubmissionRepo) GetTestCaseResults(_ context.Context, submissionID string) ([]model.TestCaseResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TestCaseResult(nil), r.results[submissionID]...), nil
}

func (r *fakeSubmissionRepo) HasPriorAccepted(_ context.Context, userID, problemID, excludeSubmissionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.UserID == userID && s.ProblemID == problemID &&
			s.Status == model.StatusAccepted && s.ID != excludeSubmissionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubmissionRepo) CountForUserProblem(_ context.Context, userID, problemID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.submissions {
		if s.UserID == userID && s.ProblemID == problemID {
			count++
		}
	}
	return count, nil
}

func (r *fakeSubmissionRepo) ListForUser(_ context.Context, userID string, limit, offset int) ([]model.Submission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, s := range r.submissions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	total := len(out)
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

type fakeBadgeRepo struct {
	mu      sync.Mutex
	catalog []model.Badge
	earned  map[string][]model.UserBadge
}

func newFakeBadgeRepo(catalog ...model.Badge) *fakeBadgeRepo {
	return &fakeBadgeRepo{catalog: catalog, earned: make(map[string][]model.UserBadge)}
}

func (r *fakeBadgeRepo) ListBadges(_ context.Context) ([]model.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Badge(nil), r.catalog...), nil
}

func (r *fakeBadgeRepo) GetUserBadges(_ context.Context, userID string) ([]model.UserBadge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.UserBadge(nil), r.earned[userID]...), nil
}

func (r *fakeBadgeRepo) AddUserBadges(_ context.Context, _ *sql.Tx, userID string, badges []model.UserBadge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range badges {
		duplicate := false
		for _, owned := range r.earned[userID] {
			if owned.BadgeID == b.BadgeID {
				duplicate = true
				break
			}
		}
		if !duplicate {
			r.earned[userID] = append(r.earned[userID], b)
		}
	}
	return nil
}

type participationKey struct{ userID, contestID string }

type fakeContestRepo struct {
	mu             sync.Mutex
	contests       map[string]*model.Contest
	participations map[participationKey]*model.ContestParticipation
}

func newFakeContestRepo() *fakeContestRepo {
	return &fakeContestRepo{
		contests:       make(map[string]*model.Contest),
		participations: make(map[participationKey]*model.ContestParticipation),
	}
}

func (r *fakeContestRepo) FindContestByID(_ context.Context, id string) (*model.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeContestRepo) CreateContest(_ context.Context, _ *sql.Tx, c *model.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.contests[c.ID] = &copied
	return nil
}

func (r *fakeContestRepo) EnsureParticipation(_ context.Context, _ *sql.Tx, userID, contestID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := participationKey{userID, contestID}
	if _, ok := r.participations[key]; ok {
		return false, nil
	}
	r.participations[key] = &model.ContestParticipation{
		UserID:    userID,
		ContestID: contestID,
		JoinedAt:  time.Now(),
		UpdatedAt: time.Now(),
	}
	return true, nil
}

func (r *fakeContestRepo) GetParticipation(_ context.Context, userID, contestID string) (*model.ContestParticipation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participations[participationKey{userID, contestID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *p
	copied.ProblemScores = append([]model.ProblemScore(nil), p.ProblemScores...)
	return &copied, nil
}

func (r *fakeContestRepo) ListParticipationsByUser(_ context.Context, userID string) ([]model.ContestParticipation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ContestParticipation
	for key, p := range r.participations {
		if key.userID == userID {
			copied := *p
			copied.ProblemScores = append([]model.ProblemScore(nil), p.ProblemScores...)
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContestID < out[j].ContestID })
	return out, nil
}

func (r *fakeContestRepo) CreditSolve(_ context.Context, _ *sql.Tx, userID, contestID, problemID string, points int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participations[participationKey{userID, contestID}]
	if !ok {
		return false, common.ErrNotFound
	}
	for i := range p.ProblemScores {
		if p.ProblemScores[i].ProblemID == problemID {
			p.ProblemScores[i].SubmissionCount++
			p.UpdatedAt = time.Now()
			return false, nil
		}
	}
	p.ProblemScores = append(p.ProblemScores, model.ProblemScore{
		ProblemID:       problemID,
		Score:           points,
		SubmissionCount: 1,
	})
	p.TotalScore += points
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeContestRepo) GetLeaderboard(_ context.Context, contestID string, limit, offset int) ([]model.ContestLeaderboardEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []model.ContestLeaderboardEntry
	for key, p := range r.participations {
		if key.contestID != contestID {
			continue
		}
		entries = append(entries, model.ContestLeaderboardEntry{
			UserID:         p.UserID,
			Username:       p.UserID,
			TotalScore:     p.TotalScore,
			ProblemsSolved: len(p.ProblemScores),
			UpdatedAt:      p.UpdatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, len(entries), nil
}
