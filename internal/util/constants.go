package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 文件上传相关常量
const (
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeOctetStream = "application/octet-stream"
)

// 违规申诉写库的兜底时限
const ViolationQueryTimeoutSeconds = 10

// 教师解析全部失败时的占位邮箱，保证事件仍有归属人
const PlaceholderTeacherEmail = "unknown-teacher@portal.invalid"
