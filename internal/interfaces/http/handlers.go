package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adiwicaksono/pd-tracker/internal/auth"
	"github.com/adiwicaksono/pd-tracker/internal/export"
	"github.com/adiwicaksono/pd-tracker/internal/models"
	"github.com/adiwicaksono/pd-tracker/internal/repository"
	"github.com/adiwicaksono/pd-tracker/internal/storage"
	"github.com/adiwicaksono/pd-tracker/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflow *workflow.Service
	catalog  *workflow.CatalogService
	auth     *auth.Service
	settings *repository.SettingRepository
	uploads  *storage.Store
	exporter *export.Exporter
	logger   *zap.Logger

	uploadsDir        string
	uploadsPublicPath string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService *workflow.Service,
	catalogService *workflow.CatalogService,
	authService *auth.Service,
	settings *repository.SettingRepository,
	uploads *storage.Store,
	exporter *export.Exporter,
	uploadsPublicPath string,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		workflow:          workflowService,
		catalog:           catalogService,
		auth:              authService,
		settings:          settings,
		uploads:           uploads,
		exporter:          exporter,
		logger:            logger,
		uploadsDir:        uploads.BaseDir(),
		uploadsPublicPath: uploadsPublicPath,
	}
}

// respondError maps service errors onto HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrAlreadyCompleted), errors.Is(err, workflow.ErrAlreadyProcessed):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrValidation), errors.Is(err, auth.ErrUserExists):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id", workflow.ErrValidation)
	}
	return id, nil
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, user, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me handles GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": auth.ActorFrom(c)})
}

// ListTickets handles GET /api/tickets
func (h *Handlers) ListTickets(c *gin.Context) {
	filter := repository.ListFilter{
		Status: models.TicketStatus(c.Query("status")),
	}
	if c.Query("mine") == "true" {
		filter.CreatedByID = auth.ActorFrom(c).ID
	}

	tickets, err := h.workflow.ListTickets(filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// CreateTicketRequest is the body of POST /api/tickets
type CreateTicketRequest struct {
	ActivityName           string `json:"activity_name"`
	AssignmentLetterNumber string `json:"assignment_letter_number"`
	Uraian                 string `json:"uraian"`
	StartDate              string `json:"start_date"`
	IsLs                   bool   `json:"is_ls"`
	AssignedExecutorID1    *int64 `json:"assigned_executor_id_1"`
	AssignedExecutorID2    *int64 `json:"assigned_executor_id_2"`
}

// CreateTicket handles POST /api/tickets
func (h *Handlers) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input := workflow.CreateTicketInput{
		ActivityName:           req.ActivityName,
		AssignmentLetterNumber: req.AssignmentLetterNumber,
		Uraian:                 req.Uraian,
		IsLs:                   req.IsLs,
		AssignedExecutorID1:    req.AssignedExecutorID1,
		AssignedExecutorID2:    req.AssignedExecutorID2,
	}
	if req.StartDate != "" {
		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		input.StartDate = startDate
	}

	ticket, err := h.workflow.CreateTicket(input, auth.ActorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// GetTicket handles GET /api/tickets/:id
func (h *Handlers) GetTicket(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ticket, err := h.workflow.GetTicket(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// TicketFiles handles GET /api/tickets/:id/files
func (h *Handlers) TicketFiles(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	files, err := h.workflow.TicketFiles(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// DeleteTicket handles DELETE /api/tickets/:id
func (h *Handlers) DeleteTicket(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.workflow.DeleteTicket(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ticket deleted"})
}

// ProcessStep handles POST /api/tickets/:id/process. The body is
// multipart: an optional file plus notes, step_number and variance
// form fields.
func (h *Handlers) ProcessStep(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	req := workflow.ProcessRequest{
		Actor:    auth.ActorFrom(c),
		Notes:    c.PostForm("notes"),
		Variance: c.PostForm("variance"),
	}
	if raw := c.PostForm("step_number"); raw != "" {
		step, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "step_number must be an integer"})
			return
		}
		req.TargetStep = step
	}

	fileRef, err := h.saveUpload(c, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	req.File = fileRef

	ticket, err := h.workflow.ProcessStep(id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// saveUpload stores the request's file part, if any, in the ticket's
// attachment folder.
func (h *Handlers) saveUpload(c *gin.Context, ticketID int64) (*models.FileRef, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		// Parallel steps are routinely processed without a file.
		return nil, nil
	}

	ticket, err := h.workflow.GetTicket(ticketID)
	if err != nil {
		return nil, err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read uploaded file", workflow.ErrValidation)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read uploaded file", workflow.ErrValidation)
	}

	ref, err := h.uploads.Save(ticket.TicketNumber, fileHeader.Filename, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrValidation, err)
	}
	return ref, nil
}

// AdminSkipStep handles POST /api/tickets/:id/admin-skip
func (h *Handlers) AdminSkipStep(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req struct {
		StepNumber int `json:"step_number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ticket, err := h.workflow.AdminSkipStep(id, auth.ActorFrom(c), req.StepNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ReturnToPreviousStep handles POST /api/tickets/:id/return-to-previous
func (h *Handlers) ReturnToPreviousStep(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req struct {
		ReturnNotes string `json:"return_notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ticket, err := h.workflow.ReturnToPreviousStep(id, auth.ActorFrom(c), req.ReturnNotes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// MyTasks handles GET /api/tickets/my-tasks
func (h *Handlers) MyTasks(c *gin.Context) {
	tickets, err := h.workflow.MyTasks(auth.ActorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// MyHistory handles GET /api/tickets/my-history
func (h *Handlers) MyHistory(c *gin.Context) {
	tickets, err := h.workflow.MyHistory(auth.ActorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// ListSteps handles GET /api/steps
func (h *Handlers) ListSteps(c *gin.Context) {
	steps, err := h.catalog.ListSteps()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, steps)
}

// StepRequest is the body of step create/update calls
type StepRequest struct {
	StepNumber           int     `json:"step_number"`
	StepName             string  `json:"step_name"`
	Description          string  `json:"description"`
	RequiredEmployeeRole string  `json:"required_employee_role"`
	IsLsOnly             bool    `json:"is_ls_only"`
	IsNonLsOnly          bool    `json:"is_non_ls_only"`
	IsParallel           bool    `json:"is_parallel"`
	ParallelGroup        *string `json:"parallel_group"`
}

func (r *StepRequest) toModel() *models.StepConfiguration {
	return &models.StepConfiguration{
		StepNumber:           r.StepNumber,
		StepName:             r.StepName,
		Description:          r.Description,
		RequiredEmployeeRole: models.EmployeeRole(r.RequiredEmployeeRole),
		IsLsOnly:             r.IsLsOnly,
		IsNonLsOnly:          r.IsNonLsOnly,
		IsParallel:           r.IsParallel,
		ParallelGroup:        r.ParallelGroup,
	}
}

// CreateStep handles POST /api/steps
func (h *Handlers) CreateStep(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	step := req.toModel()
	if err := h.catalog.CreateStep(step); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, step)
}

// UpdateStep handles PUT /api/steps/:id
func (h *Handlers) UpdateStep(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	step := req.toModel()
	step.ID = id
	if err := h.catalog.UpdateStep(step); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// DeleteStep handles DELETE /api/steps/:id
func (h *Handlers) DeleteStep(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.catalog.DeleteStep(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "step deleted"})
}

// ReorderSteps handles POST /api/steps/reorder
func (h *Handlers) ReorderSteps(c *gin.Context) {
	var req struct {
		Orders []workflow.StepOrder `json:"orders"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.catalog.Reorder(req.Orders); err != nil {
		h.respondError(c, err)
		return
	}

	steps, err := h.catalog.ListSteps()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, steps)
}

// RenumberSteps handles POST /api/steps/renumber
func (h *Handlers) RenumberSteps(c *gin.Context) {
	if err := h.catalog.Renumber(); err != nil {
		h.respondError(c, err)
		return
	}

	steps, err := h.catalog.ListSteps()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, steps)
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req auth.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.auth.CreateUser(req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser handles PUT /api/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req auth.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.auth.UpdateUser(id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.auth.DeleteUser(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// ListSettings handles GET /api/settings
func (h *Handlers) ListSettings(c *gin.Context) {
	settings, err := h.settings.List()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetSetting handles GET /api/settings/:key
func (h *Handlers) GetSetting(c *gin.Context) {
	setting, err := h.settings.Get(c.Param("key"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if setting == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
		return
	}
	c.JSON(http.StatusOK, setting)
}

// UpsertSetting handles PUT /api/settings/:key
func (h *Handlers) UpsertSetting(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key := c.Param("key")
	if err := h.settings.Upsert(key, req.Value); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// BulkUpsertSettings handles POST /api/settings/bulk
func (h *Handlers) BulkUpsertSettings(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	for key, value := range req {
		if err := h.settings.Upsert(key, value); err != nil {
			h.respondError(c, err)
			return
		}
	}

	settings, err := h.settings.List()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// DashboardStats handles GET /api/dashboard/stats
func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.workflow.DashboardStats()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportTickets handles GET /api/export/tickets
func (h *Handlers) ExportTickets(c *gin.Context) {
	tickets, err := h.workflow.ListTickets(repository.ListFilter{
		Status: models.TicketStatus(c.Query("status")),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	catalog, err := h.catalog.ListSteps()
	if err != nil {
		h.respondError(c, err)
		return
	}

	fileName := fmt.Sprintf("register-pd-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.WriteRegister(c.Writer, tickets, catalog); err != nil {
		h.logger.Error("Failed to export tickets", zap.Error(err))
	}
}
