package errors

import "google.golang.org/grpc/codes"

// NPHIES 助手服务代码: 21 (业务服务范围 20-79)
var (
	// 请求参数错误 (类别 01)
	ErrNphiesInvalidRequest      = Register(New(MakeCode(ServiceNphies, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "معاملات الطلب غير صالحة"))
	ErrNphiesUnsupportedLanguage = Register(New(MakeCode(ServiceNphies, CategoryRequest, 2), 400, codes.InvalidArgument, "Unsupported language", "اللغة غير مدعومة"))

	// 索引与查询错误 (类别 07)
	ErrNphiesIndexBuild  = Register(New(MakeCode(ServiceNphies, CategoryInternal, 1), 500, codes.Internal, "Knowledge base index build failed", "فشل بناء فهرس قاعدة المعرفة"))
	ErrNphiesEmbedding   = Register(New(MakeCode(ServiceNphies, CategoryInternal, 2), 500, codes.Internal, "Query embedding failed", "فشل تضمين السؤال"))
	ErrNphiesStats       = Register(New(MakeCode(ServiceNphies, CategoryInternal, 3), 500, codes.Internal, "Statistics unavailable", "الإحصاءات غير متاحة"))
	ErrNphiesUnavailable = Register(New(MakeCode(ServiceNphies, CategoryInternal, 4), 503, codes.Unavailable, "Service unavailable", "الخدمة غير متاحة"))
	ErrNphiesCacheClear  = Register(New(MakeCode(ServiceNphies, CategoryInternal, 5), 500, codes.Internal, "Answer cache clear failed", "فشل مسح ذاكرة الإجابات المؤقتة"))

	// 生成错误 (类别 10)
	ErrNphiesGeneration = Register(New(MakeCode(ServiceNphies, CategoryNetwork, 1), 502, codes.Unavailable, "Answer generation failed", "فشل توليد الإجابة"))

	// 超时 (类别 11)
	ErrNphiesQueryTimeout = Register(New(MakeCode(ServiceNphies, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Query timeout", "انتهت مهلة الاستعلام"))
)
