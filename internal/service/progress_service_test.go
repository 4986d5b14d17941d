package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quiz_portal_backend/internal/model"
	"quiz_portal_backend/internal/util"
)

type fakeProgressStore struct {
	rows    map[string]*model.AttemptProgress
	getErr  error
	saveErr error
	deletes int
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{rows: make(map[string]*model.AttemptProgress)}
}

func progressKey(quizID uint, studentID string) string {
	return fmt.Sprintf("%d/%s", quizID, studentID)
}

func (f *fakeProgressStore) Get(ctx context.Context, quizID uint, studentID string) (*model.AttemptProgress, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[progressKey(quizID, studentID)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeProgressStore) Upsert(ctx context.Context, progress *model.AttemptProgress) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *progress
	f.rows[progressKey(progress.QuizID, progress.StudentID)] = &copied
	return nil
}

func (f *fakeProgressStore) Delete(ctx context.Context, quizID uint, studentID string) error {
	f.deletes++
	delete(f.rows, progressKey(quizID, studentID))
	return nil
}

func TestSaveCreatesFirstSnapshot(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)

	start := time.Now().Add(-time.Minute)
	got, err := svc.Save(context.Background(), &ProgressSnapshot{
		QuizID:    7,
		StudentID: "s1",
		Answers:   model.AnswerMap{"q1": "A"},
		StartTime: &start,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got.Answers["q1"] != "A" {
		t.Errorf("answers = %v, want q1=A", got.Answers)
	}
	if got.StartTime == nil || !got.StartTime.Equal(start) {
		t.Errorf("startTime = %v, want %v", got.StartTime, start)
	}
	if _, ok := store.rows[progressKey(7, "s1")]; !ok {
		t.Error("snapshot was not persisted")
	}
}

func TestSaveMergesAnswersMonotonically(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	saves := []model.AnswerMap{
		{"q1": "A", "q2": "B"},
		{"q2": "C"},                           // 同题覆盖
		{"q3": []interface{}{"opt1", "opt2"}}, // 新题并入
	}
	for i, answers := range saves {
		if _, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Answers: answers}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	final, err := svc.Read(ctx, 1, "s1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(final.Answers) != 3 {
		t.Fatalf("answer keys = %d, want 3 (%v)", len(final.Answers), final.Answers)
	}
	if final.Answers["q1"] != "A" {
		t.Errorf("q1 = %v, want A (earlier answer must survive)", final.Answers["q1"])
	}
	if final.Answers["q2"] != "C" {
		t.Errorf("q2 = %v, want C (incoming wins per key)", final.Answers["q2"])
	}
}

func TestSaveOmittedAnswersKeepExisting(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	if _, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}}); err != nil {
		t.Fatal(err)
	}
	// answers 字段缺席的快照不得清空已有作答
	got, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Flagged: model.MarkMap{"q1": true}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Answers["q1"] != "A" {
		t.Errorf("answers lost on partial snapshot: %v", got.Answers)
	}
	if !got.Flagged["q1"] {
		t.Errorf("flagged not applied: %v", got.Flagged)
	}
}

func TestSaveReplacesMarkGroupsWholesale(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	if _, err := svc.Save(ctx, &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		Flagged:         model.MarkMap{"q1": true, "q2": true},
		MarkedForReview: model.MarkMap{"q9": true},
	}); err != nil {
		t.Fatal(err)
	}

	// 上报了就整体替换，旧键不保留
	got, err := svc.Save(ctx, &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		Flagged: model.MarkMap{"q3": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Flagged) != 1 || !got.Flagged["q3"] {
		t.Errorf("flagged = %v, want exactly {q3:true}", got.Flagged)
	}
	if len(got.MarkedForReview) != 1 || !got.MarkedForReview["q9"] {
		t.Errorf("markedForReview = %v, want untouched {q9:true}", got.MarkedForReview)
	}
}

func TestSaveMergesTimeSpentPerQuestion(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	if _, err := svc.Save(ctx, &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		QuestionTimeSpent: model.SecondsMap{"q1": 30, "q2": 12},
	}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Save(ctx, &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		QuestionTimeSpent: model.SecondsMap{"q2": 45, "q3": 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := model.SecondsMap{"q1": 30, "q2": 45, "q3": 5}
	if len(got.QuestionTimeSpent) != len(want) {
		t.Fatalf("timeSpent = %v, want %v", got.QuestionTimeSpent, want)
	}
	for k, v := range want {
		if got.QuestionTimeSpent[k] != v {
			t.Errorf("timeSpent[%s] = %v, want %v", k, got.QuestionTimeSpent[k], v)
		}
	}
}

func TestSaveTabSwitchFieldsReplace(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	first := time.Now().Add(-10 * time.Minute)
	count1 := 1
	if _, err := svc.Save(ctx, &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		TabSwitchCount:    &count1,
		LastTabSwitchTime: &first,
		TabSwitchHistory:  model.TabSwitchLog{{Timestamp: first, Count: 1}},
	}); err != nil {
		t.Fatal(err)
	}

	second := time.Now()
	count3 := 3
	got, err := svc.Save(ctx, &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		TabSwitchCount:    &count3,
		LastTabSwitchTime: &second,
		TabSwitchHistory: model.TabSwitchLog{
			{Timestamp: first, Count: 1},
			{Timestamp: second, Count: 3},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.TabSwitchCount != 3 {
		t.Errorf("tabSwitchCount = %d, want 3", got.TabSwitchCount)
	}
	if len(got.TabSwitchHistory) != 2 {
		t.Errorf("history len = %d, want 2", len(got.TabSwitchHistory))
	}

	// 不带切屏字段的快照保留现值
	got, err = svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatal(err)
	}
	if got.TabSwitchCount != 3 || len(got.TabSwitchHistory) != 2 {
		t.Errorf("tab switch state lost on unrelated save: count=%d history=%d", got.TabSwitchCount, len(got.TabSwitchHistory))
	}
}

func TestSaveKeepsStartTimeWhenAbsent(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	if _, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", StartTime: &start}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if err != nil {
		t.Fatal(err)
	}
	if got.StartTime == nil || !got.StartTime.Equal(start) {
		t.Errorf("startTime = %v, want preserved %v", got.StartTime, start)
	}
}

func TestSaveViolationSubmissionFields(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)

	submitted := true
	ts := time.Now()
	got, err := svc.Save(context.Background(), &ProgressSnapshot{
		QuizID: 1, StudentID: "s1",
		SubmittedDueToViolation: &submitted,
		ViolationTimestamp:      &ts,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !got.SubmittedDueToViolation {
		t.Error("submittedDueToViolation not applied")
	}
	if got.ViolationTimestamp == nil || !got.ViolationTimestamp.Equal(ts) {
		t.Errorf("violationTimestamp = %v, want %v", got.ViolationTimestamp, ts)
	}
}

func TestReadMissingRowReturnsNil(t *testing.T) {
	svc := NewProgressService(newFakeProgressStore())
	got, err := svc.Read(context.Background(), 99, "nobody")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing row", got)
	}
}

func TestPatchMissingRowIsNotFound(t *testing.T) {
	svc := NewProgressService(newFakeProgressStore())
	_, err := svc.Patch(context.Background(), &ProgressSnapshot{QuizID: 5, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	if _, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Answers: model.AnswerMap{"q1": "A"}}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, 1, "s1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.Delete(ctx, 1, "s1"); err != nil {
		t.Fatalf("second delete must succeed: %v", err)
	}
	if store.deletes != 2 {
		t.Errorf("deletes = %d, want 2", store.deletes)
	}
}

func TestProgressValidation(t *testing.T) {
	svc := NewProgressService(newFakeProgressStore())
	ctx := context.Background()

	cases := []struct {
		name string
		run  func() error
	}{
		{"save missing quizId", func() error {
			_, err := svc.Save(ctx, &ProgressSnapshot{StudentID: "s1"})
			return err
		}},
		{"save missing studentId", func() error {
			_, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1})
			return err
		}},
		{"read missing studentId", func() error {
			_, err := svc.Read(ctx, 1, "")
			return err
		}},
		{"delete missing quizId", func() error {
			return svc.Delete(ctx, 0, "s1")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, util.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestConcurrentSavesLoseNoAnswers(t *testing.T) {
	store := newFakeProgressStore()
	svc := NewProgressService(store)
	ctx := context.Background()

	// 顺序交错模拟两端各自上报不同题目的自动保存
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("q%d", i)
		if _, err := svc.Save(ctx, &ProgressSnapshot{QuizID: 1, StudentID: "s1", Answers: model.AnswerMap{key: i}}); err != nil {
			t.Fatal(err)
		}
	}
	final, err := svc.Read(ctx, 1, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Answers) != 10 {
		t.Errorf("answers = %d keys, want 10", len(final.Answers))
	}
}
