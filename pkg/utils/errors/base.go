package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 通用错误码 (服务代码 00)
var (
	OK = Register(New(0, http.StatusOK, codes.OK, "success", "تم بنجاح"))

	ErrBadRequest   = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "طلب غير صالح"))
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "معامل غير صالح"))

	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Route not found", "المسار غير موجود"))

	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "خطأ داخلي في الخادم"))
	ErrPanic    = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Unexpected panic", "خطأ غير متوقع"))

	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "انتهت مهلة الطلب"))

	ErrCacheUnavailable = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 1), http.StatusInternalServerError, codes.Unavailable, "Cache unavailable", "ذاكرة التخزين المؤقت غير متاحة"))

	ErrLLMUnavailable = Register(New(MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Language model provider unavailable", "مزود النموذج اللغوي غير متاح"))
)
