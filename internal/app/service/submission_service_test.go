package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codearena/internal/app/grader"
	"codearena/internal/app/judge"
	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/platform/cache"
)

// scriptedJudge answers by stdin lookup; unknown inputs come back as a
// non-crashing wrong answer.
type scriptedJudge struct {
	outputs map[string]string
}

func (c scriptedJudge) Execute(_ context.Context, _, _, stdin string) judge.ExecutionResult {
	out, ok := c.outputs[stdin]
	if !ok {
		return judge.ExecutionResult{Success: true, Stdout: "0", RuntimeMs: 5}
	}
	return judge.ExecutionResult{Success: true, Stdout: out, RuntimeMs: 5}
}

type submissionFixture struct {
	svc      *SubmissionService
	users    *fakeUserRepo
	problems *fakeProblemRepo
	subs     *fakeSubmissionRepo
	badges   *fakeBadgeRepo
	contests *fakeContestRepo
	redis    *miniredis.Miniredis
	rdb      *redis.Client

	userID    string
	problemID string
}

func newSubmissionFixture(t *testing.T, client judge.Client, catalog ...model.Badge) *submissionFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := newFakeUserRepo()
	problems := newFakeProblemRepo()
	subs := newFakeSubmissionRepo()
	badges := newFakeBadgeRepo(catalog...)
	contests := newFakeContestRepo()

	userID := uuid.NewString()
	users.put(&model.User{
		ID:       userID,
		Username: "ada",
		Email:    "ada@example.com",
		Role:     model.RoleUser,
		Profile:  model.UserProfile{Rating: 1200, MaxRating: 1200, Rank: "Beginner"},
		Stats:    model.UserStats{ContestRating: 1200},
	})

	problemID := uuid.NewString()
	ctx := context.Background()
	require.NoError(t, problems.CreateProblem(ctx, nil, &model.Problem{
		ID:          problemID,
		Title:       "Two Sum",
		Slug:        "two-sum",
		Difficulty:  model.DifficultyMedium,
		Topics:      []string{"arrays"},
		Points:      10,
		IsPublished: true,
	}))
	require.NoError(t, problems.AddTestCases(ctx, nil, []model.TestCase{
		{ID: uuid.NewString(), ProblemID: &problemID, Input: "1 2", ExpectedOutput: "3", SortOrder: 0},
		{ID: uuid.NewString(), ProblemID: &problemID, Input: "2 3", ExpectedOutput: "5", IsHidden: true, SortOrder: 1},
	}))

	g := grader.New(client, time.Second, 2, zap.NewNop())
	svc := NewSubmissionService(subs, problems, users, badges, contests, g, newStubDB(t), rdb, 30*time.Second, zap.NewNop())

	return &submissionFixture{
		svc: svc, users: users, problems: problems, subs: subs,
		badges: badges, contests: contests, redis: mr, rdb: rdb,
		userID: userID, problemID: problemID,
	}
}

func passingJudge() judge.Client {
	return scriptedJudge{outputs: map[string]string{"1 2": "3", "2 3": "5"}}
}

func failingJudge() judge.Client {
	return scriptedJudge{outputs: map[string]string{}}
}

func TestSubmitAcceptedFirstSolve(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge(), model.Badge{
		ID:       "first-blood",
		Name:     "First Blood",
		Criteria: model.BadgeCriteria{Type: model.CriteriaProblemsSolved, Value: 1},
	})

	resp, err := fx.svc.Submit(context.Background(), fx.userID, SubmitRequest{
		ProblemID: fx.problemID,
		Language:  "python",
		Code:      "print(sum(map(int, input().split())))",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusAccepted, resp.Status)
	assert.Equal(t, 100, resp.Score)
	assert.Equal(t, 2, resp.PassedTests)
	assert.Equal(t, 2, resp.TotalTests)
	assert.False(t, resp.ProgressionDelayed)

	assert.Equal(t, 20, resp.RatingChange)
	require.NotNil(t, resp.NewStats)
	assert.Equal(t, 1, resp.NewStats.TotalSolved)
	assert.Equal(t, 1, resp.NewStats.MediumSolved)
	assert.Equal(t, 1, resp.NewStats.CurrentStreak)
	assert.Contains(t, resp.Achievements, "Solved Two Sum")
	assert.Contains(t, resp.Achievements, "First try success!")

	require.Len(t, resp.NewBadges, 1)
	assert.Equal(t, "first-blood", resp.NewBadges[0].BadgeID)
	require.NotNil(t, resp.NewBadges[0].Badge)
	assert.Equal(t, "First Blood", resp.NewBadges[0].Badge.Name)

	stored := fx.users.get(fx.userID)
	assert.Equal(t, 1220, stored.Profile.Rating)
	assert.Equal(t, 1220, stored.Profile.MaxRating)
	assert.Equal(t, 1, stored.Stats.TotalSolved)

	solved, err := fx.users.GetSolvedProblemIDs(context.Background(), fx.userID)
	require.NoError(t, err)
	assert.Equal(t, []string{fx.problemID}, solved)

	persisted, err := fx.subs.GetSubmissionByID(context.Background(), resp.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, persisted.Status)
	results, err := fx.subs.GetTestCaseResults(context.Background(), resp.Submission.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSubmitResolveAwardsNothing(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()
	req := SubmitRequest{ProblemID: fx.problemID, Language: "python", Code: "solution"}

	first, err := fx.svc.Submit(ctx, fx.userID, req)
	require.NoError(t, err)
	require.Equal(t, model.StatusAccepted, first.Status)
	ratingAfterFirst := fx.users.get(fx.userID).Profile.Rating

	second, err := fx.svc.Submit(ctx, fx.userID, req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, second.Status)
	assert.Equal(t, 0, second.RatingChange)
	assert.Empty(t, second.Achievements)
	assert.Nil(t, second.NewStats)
	assert.Empty(t, second.NewBadges)
	assert.Equal(t, ratingAfterFirst, fx.users.get(fx.userID).Profile.Rating)
	assert.Equal(t, 1, fx.users.get(fx.userID).Stats.TotalSolved)
}

func TestSubmitWrongAnswerLeavesProfileAlone(t *testing.T) {
	fx := newSubmissionFixture(t, failingJudge())

	resp, err := fx.svc.Submit(context.Background(), fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "print(0)",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusWrongAnswer, resp.Status)
	assert.Equal(t, 0, resp.Score)
	assert.Equal(t, 0, resp.RatingChange)
	assert.Empty(t, resp.Achievements)
	assert.Nil(t, resp.NewStats)

	stored := fx.users.get(fx.userID)
	assert.Equal(t, 1200, stored.Profile.Rating)
	assert.Equal(t, 0, stored.Stats.TotalSolved)
	solved, _ := fx.users.GetSolvedProblemIDs(context.Background(), fx.userID)
	assert.Empty(t, solved)

	// The rejected verdict is still durable.
	persisted, err := fx.subs.GetSubmissionByID(context.Background(), resp.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWrongAnswer, persisted.Status)
}

func TestSubmitSecondAttemptSkipsFirstTryAchievement(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()

	// Pre-record a failed attempt so the accepted one is attempt two.
	require.NoError(t, fx.subs.CreateSubmission(ctx, nil, &model.Submission{
		ID: uuid.NewString(), UserID: fx.userID, ProblemID: fx.problemID,
		Language: "python", Status: model.StatusWrongAnswer,
	}))

	resp, err := fx.svc.Submit(ctx, fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "solution",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusAccepted, resp.Status)
	assert.NotContains(t, resp.Achievements, "First try success!")
	assert.Contains(t, resp.Achievements, "Solved Two Sum")
}

func TestSubmitContestCreditsLedgerOnce(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()

	contestID := uuid.NewString()
	require.NoError(t, fx.contests.CreateContest(ctx, nil, &model.Contest{
		ID:       contestID,
		Title:    "Weekly Round",
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
	}))

	req := SubmitRequest{ProblemID: fx.problemID, ContestID: &contestID, Language: "python", Code: "solution"}

	first, err := fx.svc.Submit(ctx, fx.userID, req)
	require.NoError(t, err)
	require.Equal(t, model.StatusAccepted, first.Status)
	require.NotNil(t, first.ContestScore)
	assert.Equal(t, 10, first.ContestScore.TotalScore)
	require.Len(t, first.ContestScore.ProblemScores, 1)
	assert.Equal(t, 1, first.ContestScore.ProblemScores[0].SubmissionCount)
	assert.Equal(t, 1, fx.users.get(fx.userID).Stats.ContestsParticipated)

	second, err := fx.svc.Submit(ctx, fx.userID, req)
	require.NoError(t, err)
	require.NotNil(t, second.ContestScore)
	assert.Equal(t, 10, second.ContestScore.TotalScore, "score credited once")
	assert.Equal(t, 2, second.ContestScore.ProblemScores[0].SubmissionCount)
	assert.Equal(t, 1, fx.users.get(fx.userID).Stats.ContestsParticipated, "participation counted once")
}

func TestSubmitContestNotRunning(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()

	contestID := uuid.NewString()
	require.NoError(t, fx.contests.CreateContest(ctx, nil, &model.Contest{
		ID:       contestID,
		Title:    "Finished Round",
		StartsAt: time.Now().Add(-2 * time.Hour),
		EndsAt:   time.Now().Add(-time.Hour),
	}))

	_, err := fx.svc.Submit(ctx, fx.userID, SubmitRequest{
		ProblemID: fx.problemID, ContestID: &contestID, Language: "python", Code: "solution",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestSubmitRejectsWhileGradingInFlight(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()

	lock := cache.NewMutex(fx.rdb, "submit:"+fx.userID+":"+fx.problemID, time.Minute)
	acquired, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = fx.svc.Submit(ctx, fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "solution",
	})
	assert.ErrorIs(t, err, common.ErrSubmitInFlight)

	_, err = lock.Unlock(ctx)
	require.NoError(t, err)

	resp, err := fx.svc.Submit(ctx, fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "solution",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, resp.Status)
}

func TestSubmitConcurrentFirstSolveAwardsOnce(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	req := SubmitRequest{ProblemID: fx.problemID, Language: "python", Code: "solution"}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	resps := make([]*SubmitResponse, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resps[i], errs[i] = fx.svc.Submit(context.Background(), fx.userID, req)
		}(i)
	}
	wg.Wait()

	awards := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], common.ErrSubmitInFlight)
			continue
		}
		if resps[i].RatingChange > 0 {
			awards++
		}
	}
	assert.Equal(t, 1, awards, "exactly one submission wins the first solve")
	assert.Equal(t, 1, fx.users.get(fx.userID).Stats.TotalSolved)
	assert.Equal(t, 1220, fx.users.get(fx.userID).Profile.Rating)
}

func TestSubmitProgressionFailureDegrades(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	fx.users.failUpdateProgression = true

	resp, err := fx.svc.Submit(context.Background(), fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "solution",
	})
	require.NoError(t, err, "verdict survives a gamification failure")

	assert.Equal(t, model.StatusAccepted, resp.Status)
	assert.True(t, resp.ProgressionDelayed)
	assert.Equal(t, 0, resp.RatingChange)
	assert.Empty(t, resp.Achievements)
	assert.Nil(t, resp.NewStats)

	persisted, err := fx.subs.GetSubmissionByID(context.Background(), resp.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, persisted.Status)
}

func TestSubmitValidation(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()

	_, err := fx.svc.Submit(ctx, fx.userID, SubmitRequest{ProblemID: fx.problemID, Language: "python"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = fx.svc.Submit(ctx, fx.userID, SubmitRequest{ProblemID: fx.problemID, Language: "cobol", Code: "x"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = fx.svc.Submit(ctx, fx.userID, SubmitRequest{ProblemID: uuid.NewString(), Language: "python", Code: "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	draftID := uuid.NewString()
	require.NoError(t, fx.problems.CreateProblem(ctx, nil, &model.Problem{
		ID: draftID, Title: "Draft", Slug: "draft", Difficulty: model.DifficultyEasy,
	}))
	_, err = fx.svc.Submit(ctx, fx.userID, SubmitRequest{ProblemID: draftID, Language: "python", Code: "x"})
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestRunTrialUsesVisibleCasesAndPersistsNothing(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())

	resp, err := fx.svc.RunTrial(context.Background(), fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "solution",
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1, "hidden cases stay hidden")
	assert.True(t, resp.Results[0].Passed)
	assert.Equal(t, "1 2", resp.Results[0].Input)
	assert.Equal(t, "3", resp.Results[0].Output)

	subs, total, err := fx.subs.ListForUser(context.Background(), fx.userID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Zero(t, total)

	solved, _ := fx.users.GetSolvedProblemIDs(context.Background(), fx.userID)
	assert.Empty(t, solved)
}

func TestGetSubmissionOwnership(t *testing.T) {
	fx := newSubmissionFixture(t, passingJudge())
	ctx := context.Background()

	resp, err := fx.svc.Submit(ctx, fx.userID, SubmitRequest{
		ProblemID: fx.problemID, Language: "python", Code: "solution",
	})
	require.NoError(t, err)

	got, results, err := fx.svc.GetSubmission(ctx, fx.userID, model.RoleUser, resp.Submission.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Submission.ID, got.ID)
	assert.Len(t, results, 2)

	_, _, err = fx.svc.GetSubmission(ctx, uuid.NewString(), model.RoleUser, resp.Submission.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, _, err = fx.svc.GetSubmission(ctx, uuid.NewString(), model.RoleAdmin, resp.Submission.ID)
	assert.NoError(t, err)
}
