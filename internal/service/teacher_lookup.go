package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"quiz_portal_backend/internal/model"
	"quiz_portal_backend/internal/util"
	"quiz_portal_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TeacherInfo 解析出的归属教师身份，创建通知时冻结
type TeacherInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TeacherResolver 单层查找策略。链上逐个尝试，第一个成功的生效；
// 增删一层只改装配，不改控制流。
type TeacherResolver interface {
	Resolve(ctx context.Context, ownerID string) (*TeacherInfo, error)
}

// UserFinder 教师解析用到的用户目录子集
type UserFinder interface {
	FindByID(id uint) (*model.User, error)
	FindByExternalID(externalID string) (*model.User, error)
}

// directoryResolver 第一层：身份目录（带Redis缓存的外部认证id查找）
type directoryResolver struct {
	users UserFinder
	rdb   *redis.Client
	ttl   time.Duration
}

func NewDirectoryResolver(users UserFinder, rdb *redis.Client) TeacherResolver {
	return &directoryResolver{users: users, rdb: rdb, ttl: 10 * time.Minute}
}

const teacherCacheKeyPrefix = "teacher_lookup:"

func (r *directoryResolver) Resolve(ctx context.Context, ownerID string) (*TeacherInfo, error) {
	cacheKey := teacherCacheKeyPrefix + ownerID

	if r.rdb != nil {
		if val, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var info TeacherInfo
			if err := json.Unmarshal([]byte(val), &info); err == nil {
				return &info, nil
			}
		}
	}

	user, err := r.users.FindByExternalID(ownerID)
	if err != nil {
		return nil, err
	}

	info := &TeacherInfo{
		ID:    user.ExternalID,
		Name:  user.Name,
		Email: user.Email,
	}

	if r.rdb != nil {
		if data, err := json.Marshal(info); err == nil {
			if err := r.rdb.Set(ctx, cacheKey, data, r.ttl).Err(); err != nil {
				logger.Log.Warn("teacher lookup cache write failed", zap.Error(err))
			}
		}
	}

	return info, nil
}

// primaryKeyResolver 第二层：把 ownerID 当作用户表主键
type primaryKeyResolver struct {
	users UserFinder
}

func NewPrimaryKeyResolver(users UserFinder) TeacherResolver {
	return &primaryKeyResolver{users: users}
}

func (r *primaryKeyResolver) Resolve(ctx context.Context, ownerID string) (*TeacherInfo, error) {
	id, err := strconv.ParseUint(ownerID, 10, 64)
	if err != nil {
		return nil, err
	}
	user, err := r.users.FindByID(uint(id))
	if err != nil {
		return nil, err
	}
	return &TeacherInfo{ID: ownerID, Name: user.Name, Email: user.Email}, nil
}

// externalIDResolver 第三层：直接查 external_id 列，不走缓存
type externalIDResolver struct {
	users UserFinder
}

func NewExternalIDResolver(users UserFinder) TeacherResolver {
	return &externalIDResolver{users: users}
}

func (r *externalIDResolver) Resolve(ctx context.Context, ownerID string) (*TeacherInfo, error) {
	user, err := r.users.FindByExternalID(ownerID)
	if err != nil {
		return nil, err
	}
	return &TeacherInfo{ID: user.ExternalID, Name: user.Name, Email: user.Email}, nil
}

// resolveTeacher 依次尝试整条链。全部失败时退回占位身份——
// 通知必须落库，事件不能因为查不到教师而丢失。
func resolveTeacher(ctx context.Context, chain []TeacherResolver, ownerID string) *TeacherInfo {
	for _, resolver := range chain {
		info, err := resolver.Resolve(ctx, ownerID)
		if err == nil && info != nil && info.Email != "" {
			return info
		}
	}

	logger.Log.Warn("teacher lookup failed on all tiers, using placeholder",
		zap.String("ownerId", ownerID))
	return &TeacherInfo{
		ID:    ownerID,
		Name:  "Teacher",
		Email: util.PlaceholderTeacherEmail,
	}
}
