package api

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hunter/backend/domain"
	"hunter/backend/repository"
	"hunter/backend/service"
	"hunter/backend/service/connectivity"
	"hunter/backend/service/sysproxy"
)

type Router struct {
	service *service.Facade
	log     *zap.Logger
}

func NewRouter(svc *service.Facade) *gin.Engine {
	r := &Router{service: svc, log: zap.L().Named("api")}
	engine := gin.New()
	engine.Use(r.recovery(), requestID(), r.accessLog())
	r.register(engine)
	return engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func (r *Router) register(engine *gin.Engine) {
	engine.Use(corsMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	catalog := engine.Group("/catalog")
	{
		catalog.GET("", r.getCatalog)
		catalog.PUT("", r.replaceCatalog)
		catalog.POST("/save", r.saveCatalog)
		catalog.PUT("/local", r.updateLocal)
		catalog.PUT("/pac", r.updatePAC)
		catalog.PUT("/log-level", r.updateLogLevel)
	}

	nodes := engine.Group("/nodes")
	{
		nodes.POST("", r.addNode)
		nodes.GET("/active", r.getActiveNode)
		nodes.PUT(":index", r.updateNode)
		nodes.DELETE(":name", r.deleteNode)
		nodes.POST(":name/switch", r.switchNode)
	}

	process := engine.Group("/process")
	{
		process.GET("/state", r.inspectProcess)
		process.GET("/status", r.getProcessStatus)
		process.POST("/launch", r.launchProcess)
		process.POST("/terminate", r.terminateProcess)
		process.GET("/daemon", r.getDaemon)
		process.POST("/daemon", r.toggleDaemon)
		process.GET("/executable", r.getExecutable)
		process.GET("/logs", r.getChildLogs)
		process.POST("/config", r.writeNodeConfig)
	}

	sys := engine.Group("/system-proxy")
	{
		sys.GET("", r.getSystemProxy)
		sys.POST("/enable", r.enableSystemProxy)
		sys.POST("/disable", r.disableSystemProxy)
	}

	engine.GET("/autostart", r.getAutostart)
	engine.PUT("/autostart", r.setAutostart)

	engine.POST("/connectivity", r.checkConnectivity)

	engine.GET("/app/logs", r.getAppLogs)
}

// 错误码，前端据此区分失败类型
const (
	codeNotFound           = "NOT_FOUND"
	codeInvalid            = "INVALID"
	codeExecutableNotFound = "EXECUTABLE_NOT_FOUND"
	codeCommandFailed      = "COMMAND_FAILED"
	codeOSAPI              = "OS_API"
	codeDecode             = "DECODE"
	codeIO                 = "IO"
	codeUnsupported        = "UNSUPPORTED"
	codeUnreachable        = "UNREACHABLE"
	codeInternal           = "INTERNAL"
)

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": codeInvalid})
}

// classifyError 把错误映射为 HTTP 状态码与错误码
func classifyError(err error) (int, string) {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, repository.ErrNodeNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, repository.ErrInvalidData), errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusBadRequest, codeInvalid
	case errors.Is(err, domain.ErrExecutableNotFound):
		return http.StatusConflict, codeExecutableNotFound
	case errors.Is(err, sysproxy.ErrUnsupportedPlatform):
		return http.StatusNotImplemented, codeUnsupported
	case errors.Is(err, sysproxy.ErrNoActiveService):
		return http.StatusServiceUnavailable, codeUnsupported
	case errors.Is(err, connectivity.ErrUnreachable):
		return http.StatusBadGateway, codeUnreachable
	case errors.Is(err, domain.ErrCommandFailed):
		return http.StatusBadGateway, codeCommandFailed
	case errors.Is(err, domain.ErrOSAPI):
		return http.StatusInternalServerError, codeOSAPI
	case errors.Is(err, domain.ErrDecode):
		return http.StatusInternalServerError, codeDecode
	case errors.As(err, &pathErr):
		return http.StatusInternalServerError, codeIO
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (r *Router) handleError(c *gin.Context, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		r.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
