package controller

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"quiz_portal_backend/internal/service"
	"quiz_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ViolationController struct {
	Service *service.ViolationService
	Storage *service.StorageService
}

func NewViolationController(svc *service.ViolationService, storage *service.StorageService) *ViolationController {
	return &ViolationController{Service: svc, Storage: storage}
}

// NotifyTeacher godoc
// @Summary 上报考试违规
// @Description 监考脚本越线时调用；创建/覆盖违规通知并异步提醒归属教师
// @Tags 违规审核
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.RaiseViolationRequest true "违规信息"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response "测验不存在"
// @Failure 500 {object} util.Response
// @Router /api/violations/notify-teacher [post]
func (c *ViolationController) NotifyTeacher(ctx *gin.Context) {
	var req service.RaiseViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	n, err := c.Service.Raise(ctx.Request.Context(), &req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"notificationId": n.ID})
}

// SubmitQuery godoc
// @Summary 学生提交违规申诉
// @Description 申诉写入教师端待审列表，通知记录状态同步为 query_submitted
// @Tags 违规审核
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.SubmitQueryRequest true "申诉内容"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Failure 504 {object} util.Response "写入超时"
// @Router /api/violations/submit-query [post]
func (c *ViolationController) SubmitQuery(ctx *gin.Context) {
	var req service.SubmitQueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	queryID, err := c.Service.SubmitQuery(ctx.Request.Context(), &req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"queryId": queryID})
}

// TeacherAction godoc
// @Summary 教师裁决违规
// @Description approve/retake/debar 三选一，其余动作直接拒绝
// @Tags 违规审核
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.TeacherActionRequest true "裁决内容"
// @Success 200 {object} util.Response{data=model.ViolationNotification}
// @Failure 400 {object} util.Response "动作非法或已裁决"
// @Failure 404 {object} util.Response "违规记录不存在"
// @Failure 500 {object} util.Response
// @Router /api/violations/teacher-action [post]
func (c *ViolationController) TeacherAction(ctx *gin.Context) {
	var req service.TeacherActionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	n, err := c.Service.TeacherAct(ctx.Request.Context(), &req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"violation": n})
}

// ListByTeacher godoc
// @Summary 查询教师名下的违规通知
// @Tags 违规审核
// @Produce  json
// @Security BearerAuth
// @Param   teacherId query string true "教师ID"
// @Success 200 {object} util.Response{data=[]model.ViolationNotification}
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /api/violations/by-teacher [get]
func (c *ViolationController) ListByTeacher(ctx *gin.Context) {
	teacherID := ctx.Query("teacherId")
	if teacherID == "" {
		util.BadRequest(ctx, "teacherId is required")
		return
	}

	list, err := c.Service.ListByTeacher(ctx.Request.Context(), teacherID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"violations": list})
}

// UploadEvidence godoc
// @Summary 上传违规证据截图
// @Description 监考脚本抓到的截图，仅接受图片
// @Tags 违规审核
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   quizId formData int true "测验ID"
// @Param   studentId formData string true "学生ID"
// @Param   file formData file true "截图文件"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /api/violations/evidence [post]
func (c *ViolationController) UploadEvidence(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.PostForm("quizId"))
	if err != nil || quizID <= 0 {
		util.BadRequest(ctx, "invalid quizId")
		return
	}
	studentID := ctx.PostForm("studentId")
	if studentID == "" {
		util.BadRequest(ctx, "studentId is required")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	mimeType, err := util.ValidateMimeType(file, []string{util.MimeImage})
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	filename := fmt.Sprintf("evidence/%d_%s_%d%s",
		quizID, studentID, time.Now().UnixNano(), filepath.Ext(fileHeader.Filename))

	url, err := c.Storage.Upload(ctx.Request.Context(), filename, file, fileHeader.Size, mimeType)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if err := c.Service.AttachEvidence(ctx.Request.Context(), uint(quizID), studentID, url); err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"url": url})
}
