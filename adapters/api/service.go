// Package api exposes the diagnostic engine over HTTP for the edge
// deployment's local ingestion surface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screwdiag/domain/core"
	"screwdiag/internal"
	"screwdiag/internal/config"
	"screwdiag/internal/engine"
	appErrors "screwdiag/internal/errors"
)

// Service wires the gin router to the diagnostic engine
type Service struct {
	router *gin.Engine
	engine *engine.Engine
	log    *internal.Logger
}

// NewService creates the HTTP service over a running engine
func NewService(eng *engine.Engine, cfg config.ServerConfig, logger *internal.Logger) *Service {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &Service{
		router: gin.New(),
		engine: eng,
		log:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(gin.Recovery())

	v1 := s.router.Group("/api/v1")
	v1.POST("/diagnose", s.handleDiagnose)
	v1.GET("/carriers", s.handleCarriers)
	v1.GET("/carriers/:carrierID/model", s.handleModel)
	v1.POST("/carriers/:carrierID/reset", s.handleReset)
	v1.DELETE("/carriers/:carrierID", s.handleDelete)
}

// Handler exposes the router for tests and embedding
func (s *Service) Handler() http.Handler {
	return s.router
}

// Run blocks serving the API on addr
func (s *Service) Run(addr string) error {
	s.log.Info("api server listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Service) handleDiagnose(c *gin.Context) {
	var req DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:  appErrors.CodeInvalidInput,
			Error: err.Error(),
		})
		return
	}
	if len(req) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:  appErrors.CodeInvalidInput,
			Error: "payload contains no carriers",
		})
		return
	}

	results, err := s.engine.DiagnoseBatch(c.Request.Context(), req.ToDomain())
	if err != nil {
		// Diagnoses that completed are still returned; the spec keeps
		// persistence failures from undoing finished work.
		s.log.Error("diagnose batch: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    appErrors.CodePersistenceError,
			"error":   err.Error(),
			"results": results,
		})
		return
	}

	c.JSON(http.StatusOK, DiagnoseResponse{
		BatchID: core.BatchID(core.NewID()),
		Results: results,
	})
}

func (s *Service) handleCarriers(c *gin.Context) {
	ids, err := s.engine.Carriers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: appErrors.CodeStoreError, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"carriers": ids})
}

func (s *Service) handleModel(c *gin.Context) {
	carrierID := core.CarrierID(c.Param("carrierID"))
	model, err := s.engine.ModelSnapshot(c.Request.Context(), carrierID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: appErrors.CodeStoreError, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model)
}

func (s *Service) handleReset(c *gin.Context) {
	carrierID := core.CarrierID(c.Param("carrierID"))
	if holeID := c.Query("hole"); holeID != "" {
		if err := s.engine.ResetHole(c.Request.Context(), carrierID, core.HoleID(holeID)); err != nil {
			status := http.StatusInternalServerError
			if core.IsNotFoundError(err) {
				status = http.StatusNotFound
			}
			c.JSON(status, ErrorResponse{Code: appErrors.CodeStoreError, Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": carrierID, "hole": holeID})
		return
	}
	if err := s.engine.ResetCarrier(c.Request.Context(), carrierID); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: appErrors.CodeStoreError, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": carrierID})
}

func (s *Service) handleDelete(c *gin.Context) {
	carrierID := core.CarrierID(c.Param("carrierID"))
	if err := s.engine.DeleteCarrier(c.Request.Context(), carrierID); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: appErrors.CodeStoreError, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": carrierID})
}
