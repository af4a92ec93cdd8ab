package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/quorumhq/quorum/internal/errors"
	"github.com/quorumhq/quorum/internal/llm"
	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/orchestrator"
	"github.com/quorumhq/quorum/internal/planner"
)

// Handler exposes the orchestration routes.
type Handler struct {
	orch     *orchestrator.Orchestrator
	planner  *planner.Planner
	registry *llm.Registry
	logger   *logger.Logger
}

// NewHandler creates an API handler.
func NewHandler(orch *orchestrator.Orchestrator, plan *planner.Planner, registry *llm.Registry, log *logger.Logger) *Handler {
	return &Handler{
		orch:     orch,
		planner:  plan,
		registry: registry,
		logger:   log.WithComponent("api"),
	}
}

// RegisterRoutes mounts the orchestration routes.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.POST("/query", h.Query)
		api.POST("/query-tasks", h.QueryTasks)
		api.POST("/questions", h.Questions)
		api.POST("/research-plan", h.ResearchPlan)
		api.GET("/models", h.Models)
	}
	router.GET("/ws/query", h.QueryWS)
}

// QueryRequest is the flat fan-out request: one prompt, N model
// identifiers. An empty model list is valid and yields an empty aggregate.
type QueryRequest struct {
	Prompt string   `json:"prompt" binding:"required"`
	Models []string `json:"models"`
}

// QueryTasksRequest is the task-decomposition run request. Assignments
// map task ID to model identifiers; the caller may send any mapping, the
// round-robin default is only a suggestion computed at planning time.
type QueryTasksRequest struct {
	Tasks           []orchestrator.ResearchTask `json:"tasks" binding:"required"`
	TaskAssignments map[string][]string         `json:"taskAssignments" binding:"required"`
	OriginalQuery   string                      `json:"originalQuery" binding:"required"`
}

// QuestionsRequest asks for clarifying questions for a query.
type QuestionsRequest struct {
	Query string `json:"query" binding:"required"`
}

// ResearchPlanRequest asks for a research plan. When Models is supplied
// the response includes the default round-robin task assignments.
type ResearchPlanRequest struct {
	Query   string   `json:"query" binding:"required"`
	Answers []string `json:"answers"`
	Models  []string `json:"models"`
}

// Query streams a flat fan-out/fan-in run over SSE.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	ctx := logger.WithRunID(c.Request.Context(), uuid.New().String())
	stream := orchestrator.NewStream()
	go h.orch.RunQuery(ctx, req.Prompt, req.Models, stream)

	writeSSE(c.Writer, stream, h.logger.WithContext(ctx))
}

// QueryTasks streams a task-decomposition run over SSE.
func (h *Handler) QueryTasks(c *gin.Context) {
	var req QueryTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	ctx := logger.WithRunID(c.Request.Context(), uuid.New().String())
	stream := orchestrator.NewStream()
	go h.orch.RunTaskQuery(ctx, req.Tasks, req.TaskAssignments, req.OriginalQuery, stream)

	writeSSE(c.Writer, stream, h.logger.WithContext(ctx))
}

// Questions generates clarifying questions. Failures degrade to an empty
// list; this endpoint never errors on model trouble.
func (h *Handler) Questions(c *gin.Context) {
	var req QuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	questions := h.planner.ClarifyingQuestions(c.Request.Context(), req.Query)
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// ResearchPlan generates 3-4 complementary research tasks. Unparseable
// model output is the one hard error here: the caller retries planning
// with the same query and answers.
func (h *Handler) ResearchPlan(c *gin.Context) {
	var req ResearchPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.AbortWithBadRequest(c, "invalid request body", map[string]interface{}{"reason": err.Error()})
		return
	}

	tasks, err := h.planner.ResearchPlan(c.Request.Context(), req.Query, req.Answers)
	if err != nil {
		if errors.Is(err, planner.ErrUnparseablePlan) {
			apierrors.AbortWithInternal(c, "Failed to parse research plan", nil)
			return
		}
		h.logger.LogError(c.Request.Context(), err, "plan generation failed")
		apierrors.AbortWithInternal(c, "Failed to generate research plan", nil)
		return
	}

	resp := gin.H{"tasks": tasks}
	if len(req.Models) > 0 {
		resp["taskAssignments"] = planner.AssignModels(tasks, req.Models)
	}
	c.JSON(http.StatusOK, resp)
}

// Models returns the model catalog.
func (h *Handler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.registry.Models()})
}
