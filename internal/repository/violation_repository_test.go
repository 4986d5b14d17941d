package repository

import (
	"context"
	"testing"
	"time"

	"quiz_portal_backend/internal/model"
)

func TestNotificationReopenClearsOldVerdict(t *testing.T) {
	db := newTestDB(t, &model.ViolationNotification{})
	repo := NewViolationRepository(db)
	ctx := context.Background()

	if err := repo.UpsertNotification(ctx, &model.ViolationNotification{
		QuizID: 42, StudentID: "s1",
		StudentName: "张三", TeacherID: "t1", TeacherEmail: "wang@school.edu",
		ViolationType: "tab_switch", ViolationCount: 3,
		ViolationTimestamp: time.Now(), QuizTitle: "期中测验",
		Status: model.ViolationPending,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	first, err := repo.FindNotificationByEpisode(ctx, 42, "s1")
	if err != nil || first == nil {
		t.Fatalf("find: %v %v", first, err)
	}

	if err := repo.ResolveNotification(ctx, first.ID, model.ViolationDebarred, "证据确凿", model.ActionDebar); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// 裁决后再次违规，事件重新打开：
	// 状态回到 pending，上一轮的 teacher_response/teacher_action 必须清掉
	if err := repo.UpsertNotification(ctx, &model.ViolationNotification{
		QuizID: 42, StudentID: "s1",
		StudentName: "张三", TeacherID: "t1", TeacherEmail: "wang@school.edu",
		ViolationType: "tab_switch", ViolationCount: 5,
		ViolationTimestamp: time.Now(), QuizTitle: "期中测验",
		Status: model.ViolationPending,
	}); err != nil {
		t.Fatalf("reopen upsert: %v", err)
	}

	reopened, err := repo.FindNotificationByEpisode(ctx, 42, "s1")
	if err != nil || reopened == nil {
		t.Fatalf("find after reopen: %v %v", reopened, err)
	}
	if reopened.ID != first.ID {
		t.Errorf("record id changed %s -> %s, want same episode row", first.ID, reopened.ID)
	}
	if reopened.Status != model.ViolationPending {
		t.Errorf("status = %s, want pending", reopened.Status)
	}
	if reopened.TeacherResponse != "" {
		t.Errorf("teacher_response = %q, want cleared", reopened.TeacherResponse)
	}
	if reopened.TeacherAction != "" {
		t.Errorf("teacher_action = %q, want cleared", reopened.TeacherAction)
	}
	if reopened.ViolationCount != 5 {
		t.Errorf("violation_count = %d, want 5", reopened.ViolationCount)
	}
}

func TestNotificationUpsertKeepsStudentQuery(t *testing.T) {
	db := newTestDB(t, &model.ViolationNotification{})
	repo := NewViolationRepository(db)
	ctx := context.Background()

	if err := repo.UpsertNotification(ctx, &model.ViolationNotification{
		QuizID: 42, StudentID: "s1",
		TeacherID: "t1", ViolationTimestamp: time.Now(),
		Status: model.ViolationPending,
	}); err != nil {
		t.Fatal(err)
	}

	// 申诉走的也是 upsert 覆盖路径，文本不能在冲突更新里丢掉
	if err := repo.UpsertNotification(ctx, &model.ViolationNotification{
		QuizID: 42, StudentID: "s1",
		TeacherID: "t1", ViolationTimestamp: time.Now(),
		StudentQuery: "网络掉线导致切屏",
		Status:       model.ViolationQuerySubmitted,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindNotificationByEpisode(ctx, 42, "s1")
	if err != nil || got == nil {
		t.Fatalf("find: %v %v", got, err)
	}
	if got.StudentQuery != "网络掉线导致切屏" {
		t.Errorf("student_query = %q, want appeal text persisted", got.StudentQuery)
	}
	if got.Status != model.ViolationQuerySubmitted {
		t.Errorf("status = %s, want query_submitted", got.Status)
	}
}
