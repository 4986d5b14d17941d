package service

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz_portal_backend/internal/util"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*EmailMessage
	err  error
}

func (f *fakeMailer) Send(msg *EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) delivered() []*EmailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*EmailMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func testAlert() ViolationAlert {
	return ViolationAlert{
		TeacherName:    "王老师",
		TeacherEmail:   "wang@school.edu",
		StudentName:    "张三",
		QuizTitle:      "期中测验",
		ViolationType:  "tab_switch",
		ViolationCount: 5,
		Timestamp:      time.Date(2026, 3, 15, 10, 30, 0, 0, time.Local),
		ReviewURL:      "https://portal.example.com/teacher/violations/vn-1",
	}
}

func TestDispatcherDeliversQueuedAlerts(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewNotificationDispatcher(mailer, 8)
	go d.Run()

	d.Enqueue(testAlert())
	d.Enqueue(testAlert())
	d.Stop()

	if got := len(mailer.delivered()); got != 2 {
		t.Errorf("delivered = %d, want 2 (Stop must drain the queue)", got)
	}
}

func TestDispatcherSkipsPlaceholderAddress(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewNotificationDispatcher(mailer, 8)
	go d.Run()

	alert := testAlert()
	alert.TeacherEmail = util.PlaceholderTeacherEmail
	d.Enqueue(alert)

	empty := testAlert()
	empty.TeacherEmail = ""
	d.Enqueue(empty)

	d.Stop()
	if got := len(mailer.delivered()); got != 0 {
		t.Errorf("delivered = %d, want 0 for undeliverable addresses", got)
	}
}

func TestDispatcherToleratesSendFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("sendgrid 502")}
	d := NewNotificationDispatcher(mailer, 8)
	go d.Run()

	d.Enqueue(testAlert())
	d.Stop() // 发送失败只记日志，worker 正常退出
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewNotificationDispatcher(mailer, 1)
	// 不启动 worker：第一条占满队列，第二条必须直接丢弃而非阻塞
	d.Enqueue(testAlert())

	done := make(chan struct{})
	go func() {
		d.Enqueue(testAlert())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestRenderViolationAlert(t *testing.T) {
	msg := renderViolationAlert(testAlert())

	if !strings.Contains(msg.Subject, "期中测验") || !strings.Contains(msg.Subject, "张三") {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"王老师", "张三", "期中测验", "tab_switch", "5"} {
		if !strings.Contains(msg.TextContent, want) {
			t.Errorf("text body missing %q", want)
		}
	}
	if !strings.Contains(msg.HTMLContent, "https://portal.example.com/teacher/violations/vn-1") {
		t.Error("html body missing review link")
	}
	if strings.Contains(msg.TextContent, "学生申诉") {
		t.Error("query section rendered without a query")
	}
}

func TestRenderViolationAlertWithQuery(t *testing.T) {
	alert := testAlert()
	alert.StudentQuery = `网络掉线导致切屏 <script>alert(1)</script>`
	msg := renderViolationAlert(alert)

	if !strings.Contains(msg.TextContent, "网络掉线导致切屏") {
		t.Error("text body missing the student query")
	}
	if strings.Contains(msg.HTMLContent, "<script>") {
		t.Error("html body must escape user-supplied query text")
	}
	if !strings.Contains(msg.HTMLContent, "&lt;script&gt;") {
		t.Error("escaped query text missing from html body")
	}
}
