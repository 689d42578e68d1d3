package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"alertmtl.app/config"
	"alertmtl.app/dispatch"
	apperrors "alertmtl.app/errors"
	"alertmtl.app/models"
	"alertmtl.app/service"
)

// Server represents the HTTP server and API handler
type Server struct {
	router              *gin.Engine
	db                  *gorm.DB
	config              *config.Config
	snowService         service.SnowServiceInterface
	wasteService        service.WasteServiceInterface
	subscriptionService service.SubscriptionServiceInterface
	geobaseService      service.GeobaseServiceInterface
	dispatcher          service.AlertDispatcherInterface
}

// ServerOptions represents the dependencies for creating the HTTP server
type ServerOptions struct {
	DB                  *gorm.DB
	Config              *config.Config
	SnowService         service.SnowServiceInterface
	WasteService        service.WasteServiceInterface
	SubscriptionService service.SubscriptionServiceInterface
	GeobaseService      service.GeobaseServiceInterface
	Dispatcher          service.AlertDispatcherInterface
}

// Validate checks if all required dependencies are provided
func (opts *ServerOptions) Validate() error {
	if opts.Config == nil {
		return apperrors.NewValidationError("config is required")
	}
	if opts.SnowService == nil {
		return apperrors.NewValidationError("snow service is required")
	}
	if opts.WasteService == nil {
		return apperrors.NewValidationError("waste service is required")
	}
	if opts.SubscriptionService == nil {
		return apperrors.NewValidationError("subscription service is required")
	}
	if opts.GeobaseService == nil {
		return apperrors.NewValidationError("geobase service is required")
	}
	if opts.Dispatcher == nil {
		return apperrors.NewValidationError("alert dispatcher is required")
	}
	return nil
}

// NewServer creates and configures a new HTTP server
func NewServer(opts ServerOptions) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server options: %w", err)
	}

	registerPostalValidation()
	router := gin.Default()

	server := &Server{
		router:              router,
		db:                  opts.DB,
		config:              opts.Config,
		snowService:         opts.SnowService,
		wasteService:        opts.WasteService,
		subscriptionService: opts.SubscriptionService,
		geobaseService:      opts.GeobaseService,
		dispatcher:          opts.Dispatcher,
	}

	server.setupRoutes()
	return server, nil
}

// registerPostalValidation adds the "postalcode" binding rule so requests
// with an unusable postal code are rejected before they reach a service.
// The rule accepts anything with a valid forward sortation area prefix.
func registerPostalValidation() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
			_, err := dispatch.ExtractFSA(fl.Field().String())
			return err == nil
		})
	}
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/check", s.check)
		api.GET("/snow-status", s.snowStatus)
		api.GET("/waste-schedule", s.wasteSchedule)
		api.GET("/address-search", s.addressSearch)
		api.POST("/subscribe", s.subscribe)
		api.GET("/unsubscribe/:token", s.unsubscribe)
		api.GET("/health", s.health)

		admin := api.Group("/admin")
		admin.Use(s.requireAdminToken)
		{
			admin.POST("/cache/expire", s.expireCache)
			admin.GET("/transitions", s.transitions)
			admin.POST("/trigger-snow-check", s.triggerSnowCheck)
			admin.POST("/trigger-waste-check", s.triggerWasteCheck)
			admin.GET("/stats", s.deliveryStats)
			admin.POST("/zones/reload", s.reloadZoneRules)
			admin.POST("/geobase/refresh", s.refreshGeobase)
		}
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.ServeStaticFiles()
}

// Start begins the HTTP server
func (s *Server) Start() error {
	return s.router.Run(fmt.Sprintf(":%d", s.config.Server.Port))
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// check answers the combined quick check for one postal code. The snow
// status is mandatory; a failing waste lookup degrades to a response
// without the waste block instead of failing the whole check.
func (s *Server) check(c *gin.Context) {
	postal := c.Query("postal")
	if postal == "" {
		s.handleError(c, apperrors.NewValidationError("postal parameter is required"))
		return
	}

	slog.Debug("Quick check requested", "postal", postal)
	snow, err := s.snowService.StatusForPostal(c.Request.Context(), postal)
	if err != nil {
		slog.Error("Snow status error", "error", err, "postal", postal)
		s.handleError(c, err)
		return
	}

	response := models.CheckResponse{City: snow.City, Snow: *snow}

	waste, err := s.wasteService.ScheduleForPostal(postal)
	if err != nil {
		slog.Warn("Waste schedule unavailable for quick check", "error", err, "postal", postal)
	} else {
		response.Waste = waste
	}

	c.JSON(http.StatusOK, response)
}

// snowStatus answers the snow-only view, either by postal code or by an
// explicit city/entity pair.
func (s *Server) snowStatus(c *gin.Context) {
	postal := c.Query("postal")
	entity := c.Query("entity")

	var status *models.SnowStatusResponse
	var err error

	switch {
	case postal != "":
		status, err = s.snowService.StatusForPostal(c.Request.Context(), postal)
	case entity != "":
		status, err = s.snowService.StatusForEntity(c.Request.Context(), c.Query("city"), entity)
	default:
		s.handleError(c, apperrors.NewValidationError("postal or entity parameter is required"))
		return
	}

	if err != nil {
		slog.Error("Snow status error", "error", err, "postal", postal, "entity", entity)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// wasteSchedule answers the collection-schedule view, either by postal
// code or by an explicit zone.
func (s *Server) wasteSchedule(c *gin.Context) {
	postal := c.Query("postal")
	zone := c.Query("zone")

	var schedule *models.WasteScheduleResponse
	var err error

	switch {
	case postal != "":
		schedule, err = s.wasteService.ScheduleForPostal(postal)
	case zone != "":
		schedule, err = s.wasteService.ScheduleForZone(zone)
	default:
		s.handleError(c, apperrors.NewValidationError("postal or zone parameter is required"))
		return
	}

	if err != nil {
		slog.Error("Waste schedule error", "error", err, "postal", postal, "zone", zone)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, schedule)
}

func (s *Server) addressSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		s.handleError(c, apperrors.NewValidationError("q parameter is required"))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 10
	}

	results, err := s.geobaseService.Search(query, limit)
	if err != nil {
		slog.Error("Address search error", "error", err, "query", query)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (s *Server) subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	slog.Debug("Handling subscription request")

	if err := c.ShouldBind(&req); err != nil {
		slog.Error("Request binding error", "error", err)
		s.handleError(c, apperrors.NewValidationError("invalid request format"))
		return
	}

	slog.Debug("Subscription request received", "email", req.Email, "postal", req.PostalCode)

	if err := s.subscriptionService.Subscribe(&req); err != nil {
		slog.Error("Subscription error", "error", err, "email", req.Email, "postal", req.PostalCode)
		s.handleError(c, err)
		return
	}

	slog.Debug("Subscription created successfully", "email", req.Email, "postal", req.PostalCode)
	c.JSON(http.StatusOK, gin.H{"message": "Subscription successful. Welcome email sent."})
}

func (s *Server) unsubscribe(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		s.handleError(c, apperrors.NewValidationError("token parameter is required"))
		return
	}

	slog.Debug("Unsubscribing", "token", token)

	if err := s.subscriptionService.Unsubscribe(token); err != nil {
		slog.Error("Unsubscribe error", "error", err, "token", token)
		s.handleError(c, err)
		return
	}

	slog.Debug("Unsubscribed successfully", "token", token)
	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed successfully"})
}

func (s *Server) health(c *gin.Context) {
	dbConnected := false
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil && sqlDB.Ping() == nil {
			dbConnected = true
		}
	}

	status := "ok"
	code := http.StatusOK
	if !dbConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": dbConnected,
		"cache":    s.config.Cache.Type,
	})
}

func (s *Server) requireAdminToken(c *gin.Context) {
	if c.GetHeader("X-Admin-Token") != s.config.AdminToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid admin token"})
		return
	}
	c.Next()
}

func (s *Server) expireCache(c *gin.Context) {
	city := c.Query("city")
	entity := c.Query("entity")
	if city == "" {
		s.handleError(c, apperrors.NewValidationError("city parameter is required"))
		return
	}
	if entity == "" {
		s.handleError(c, apperrors.NewValidationError("entity parameter is required"))
		return
	}

	if err := s.snowService.Expire(c.Request.Context(), city, entity); err != nil {
		slog.Error("Cache expire error", "error", err, "city", city, "entity", entity)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cache entry expired"})
}

func (s *Server) transitions(c *gin.Context) {
	events := s.snowService.Transitions()
	c.JSON(http.StatusOK, gin.H{"transitions": events, "count": len(events)})
}

func (s *Server) triggerSnowCheck(c *gin.Context) {
	slog.Debug("Manual snow check triggered")
	stats := s.snowService.RunAllChecks(c.Request.Context())
	c.JSON(http.StatusOK, stats)
}

func (s *Server) triggerWasteCheck(c *gin.Context) {
	slog.Debug("Manual waste check triggered")
	stats := s.wasteService.RunReminderCycle(time.Now())
	c.JSON(http.StatusOK, stats)
}

func (s *Server) deliveryStats(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		s.handleError(c, apperrors.NewValidationError("days must be a positive integer"))
		return
	}

	stats, err := s.dispatcher.DeliveryStats(days)
	if err != nil {
		slog.Error("Delivery stats error", "error", err)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) reloadZoneRules(c *gin.Context) {
	count, err := s.wasteService.ReloadRules()
	if err != nil {
		slog.Error("Zone rule reload error", "error", err)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Zone rules reloaded", "active_rules": count})
}

func (s *Server) refreshGeobase(c *gin.Context) {
	slog.Debug("Manual geobase refresh triggered")

	count, err := s.geobaseService.Refresh()
	if err != nil {
		slog.Error("Geobase refresh error", "error", err)
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Geobase refreshed", "entries": count})
}

// handleError handles different types of application errors
func (s *Server) handleError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	var statusCode int
	var message string

	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ValidationError:
			statusCode = http.StatusBadRequest
			message = appErr.Message
		case apperrors.TokenError:
			statusCode = http.StatusBadRequest
			message = appErr.Message
		case apperrors.NotFoundError:
			statusCode = http.StatusNotFound
			message = appErr.Message
		case apperrors.AlreadyExistsError:
			statusCode = http.StatusConflict
			message = appErr.Message
		case apperrors.UnknownCityError:
			statusCode = http.StatusUnprocessableEntity
			message = appErr.Message
		case apperrors.UnknownZoneError:
			statusCode = http.StatusUnprocessableEntity
			message = appErr.Message
		case apperrors.ProviderUnavailableError:
			statusCode = http.StatusServiceUnavailable
			message = "Status provider temporarily unavailable"
		case apperrors.ExternalAPIError:
			statusCode = http.StatusServiceUnavailable
			message = "External service unavailable"
		case apperrors.EmailError:
			statusCode = http.StatusServiceUnavailable
			message = "Unable to send email"
		case apperrors.DatabaseError:
			statusCode = http.StatusInternalServerError
			message = "Internal server error"
		default:
			statusCode = http.StatusInternalServerError
			message = "Internal server error"
		}
	} else {
		statusCode = http.StatusInternalServerError
		message = "Internal server error"
	}

	c.JSON(statusCode, models.ErrorResponse{Error: message})
}
