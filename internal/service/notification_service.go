package service

import (
	"fmt"
	"html"
	"time"

	"quiz_portal_backend/internal/util"
	"quiz_portal_backend/pkg/logger"
	"quiz_portal_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ViolationAlert 发给归属教师的一次违规提醒
type ViolationAlert struct {
	TeacherName    string
	TeacherEmail   string
	StudentName    string
	QuizTitle      string
	ViolationType  string
	ViolationCount int
	Timestamp      time.Time
	StudentQuery   string
	ReviewURL      string
}

// NotificationDispatcher 教师提醒队列。投递是尽力而为：
// 入队失败、渲染失败、发送失败都只记日志，绝不影响违规流程本身。
type NotificationDispatcher struct {
	mailer Mailer
	queue  chan ViolationAlert
	stop   chan struct{}
	done   chan struct{}
}

func NewNotificationDispatcher(mailer Mailer, queueSize int) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &NotificationDispatcher{
		mailer: mailer,
		queue:  make(chan ViolationAlert, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Enqueue 非阻塞入队。队列打满说明下游堆积，丢弃并记日志。
func (d *NotificationDispatcher) Enqueue(alert ViolationAlert) {
	if alert.TeacherEmail == "" || alert.TeacherEmail == util.PlaceholderTeacherEmail {
		logger.Log.Warn("skipping teacher alert, no deliverable address",
			zap.String("quizTitle", alert.QuizTitle),
			zap.String("student", alert.StudentName))
		monitoring.EmailCounter.WithLabelValues("skipped").Inc()
		return
	}

	select {
	case d.queue <- alert:
	default:
		logger.Log.Error("notification queue full, dropping teacher alert",
			zap.String("teacherEmail", alert.TeacherEmail),
			zap.String("quizTitle", alert.QuizTitle))
		monitoring.EmailCounter.WithLabelValues("dropped").Inc()
	}
}

// Run 单worker顺序消费，由 App 启动
func (d *NotificationDispatcher) Run() {
	defer close(d.done)
	for {
		select {
		case alert := <-d.queue:
			d.deliver(alert)
		case <-d.stop:
			// 停机前把积压的提醒发完
			for {
				select {
				case alert := <-d.queue:
					d.deliver(alert)
				default:
					return
				}
			}
		}
	}
}

// Stop 通知worker退出并等待队列排空
func (d *NotificationDispatcher) Stop() {
	close(d.stop)
	<-d.done
}

func (d *NotificationDispatcher) deliver(alert ViolationAlert) {
	msg := renderViolationAlert(alert)
	if err := d.mailer.Send(msg); err != nil {
		logger.Log.Error("sending teacher alert failed",
			zap.String("teacherEmail", alert.TeacherEmail),
			zap.String("quizTitle", alert.QuizTitle),
			zap.Error(err))
		monitoring.EmailCounter.WithLabelValues("failed").Inc()
		return
	}
	monitoring.EmailCounter.WithLabelValues("sent").Inc()
}

func renderViolationAlert(alert ViolationAlert) *EmailMessage {
	subject := fmt.Sprintf("考试违规提醒：%s - %s", alert.QuizTitle, alert.StudentName)

	queryLine := ""
	queryHTML := ""
	if alert.StudentQuery != "" {
		queryLine = fmt.Sprintf("\n学生申诉：%s\n", alert.StudentQuery)
		queryHTML = fmt.Sprintf("<p><b>学生申诉：</b>%s</p>", html.EscapeString(alert.StudentQuery))
	}

	text := fmt.Sprintf(
		"%s 老师：\n\n学生 %s 在测验《%s》中触发了违规告警（%s，累计 %d 次，时间 %s），系统已自动交卷。%s\n请前往审核页处理：%s\n",
		alert.TeacherName,
		alert.StudentName,
		alert.QuizTitle,
		alert.ViolationType,
		alert.ViolationCount,
		alert.Timestamp.Format(util.TimeFormat),
		queryLine,
		alert.ReviewURL,
	)

	htmlBody := fmt.Sprintf(
		`<div style="font-family:sans-serif">
<p>%s 老师：</p>
<p>学生 <b>%s</b> 在测验《<b>%s</b>》中触发了违规告警
（%s，累计 <b>%d</b> 次，时间 %s），系统已自动交卷。</p>
%s
<p><a href="%s">点击前往审核页处理</a></p>
</div>`,
		html.EscapeString(alert.TeacherName),
		html.EscapeString(alert.StudentName),
		html.EscapeString(alert.QuizTitle),
		html.EscapeString(alert.ViolationType),
		alert.ViolationCount,
		alert.Timestamp.Format(util.TimeFormat),
		queryHTML,
		alert.ReviewURL,
	)

	return &EmailMessage{
		ToName:      alert.TeacherName,
		ToAddress:   alert.TeacherEmail,
		Subject:     subject,
		TextContent: text,
		HTMLContent: htmlBody,
	}
}
