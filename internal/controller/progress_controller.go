package controller

import (
	"strconv"

	"quiz_portal_backend/internal/service"
	"quiz_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Service *service.ProgressService
}

func NewProgressController(svc *service.ProgressService) *ProgressController {
	return &ProgressController{Service: svc}
}

// Save godoc
// @Summary 自动保存答题进度
// @Description 合并客户端上报的部分快照，已有答案只增不减
// @Tags 答题进度
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.ProgressSnapshot true "进度快照"
// @Success 200 {object} util.Response{data=model.AttemptProgress}
// @Failure 400 {object} util.Response "缺少必填字段"
// @Failure 500 {object} util.Response "存储失败"
// @Router /api/progress [post]
func (c *ProgressController) Save(ctx *gin.Context) {
	var snap service.ProgressSnapshot
	if err := ctx.ShouldBindJSON(&snap); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.Service.Save(ctx.Request.Context(), &snap)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// Read godoc
// @Summary 查询答题进度
// @Description 还没有进度时返回 200 且 data 为空，不算错误
// @Tags 答题进度
// @Produce  json
// @Security BearerAuth
// @Param   quizId query int true "测验ID"
// @Param   studentId query string true "学生ID"
// @Success 200 {object} util.Response{data=model.AttemptProgress}
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /api/progress [get]
func (c *ProgressController) Read(ctx *gin.Context) {
	quizID, err := strconv.Atoi(ctx.Query("quizId"))
	if err != nil || quizID <= 0 {
		util.BadRequest(ctx, "invalid quizId")
		return
	}
	studentID := ctx.Query("studentId")
	if studentID == "" {
		util.BadRequest(ctx, "studentId is required")
		return
	}

	progress, err := c.Service.Read(ctx.Request.Context(), uint(quizID), studentID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	if progress == nil {
		// 尚无记录和 404 是两回事
		util.Success(ctx, nil)
		return
	}
	util.Success(ctx, progress)
}

// Patch godoc
// @Summary 局部更新答题进度
// @Description 只改已存在的记录，合并规则与保存一致
// @Tags 答题进度
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body service.ProgressSnapshot true "要更新的字段"
// @Success 200 {object} util.Response{data=model.AttemptProgress}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response "记录不存在"
// @Failure 500 {object} util.Response
// @Router /api/progress [patch]
func (c *ProgressController) Patch(ctx *gin.Context) {
	var snap service.ProgressSnapshot
	if err := ctx.ShouldBindJSON(&snap); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.Service.Patch(ctx.Request.Context(), &snap)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// DeleteRequest 删除进度请求
type DeleteProgressRequest struct {
	QuizID    uint   `json:"quizId" binding:"required"`
	StudentID string `json:"studentId" binding:"required"`
}

// Delete godoc
// @Summary 重置答题进度
// @Description 幂等删除，记录不存在也返回成功
// @Tags 答题进度
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body DeleteProgressRequest true "进度标识"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /api/progress [delete]
func (c *ProgressController) Delete(ctx *gin.Context) {
	var req DeleteProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.Delete(ctx.Request.Context(), req.QuizID, req.StudentID); err != nil {
		handleServiceError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}
