package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/booklog/internal/tasks"
)

// TaskQueue enqueues tasks and reports on them. Implemented by tasks.Client.
type TaskQueue interface {
	TaskEnqueuer
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TasksController lets the covers tasks be triggered and followed by hand.
type TasksController struct {
	client TaskQueue
}

func NewTasksController(client TaskQueue) *TasksController {
	return &TasksController{client: client}
}

type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type RunTaskRequest struct {
	BookID uint `json:"book_id,omitempty" form:"book_id"`
}

func (tc *TasksController) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/tasks/types", tc.ListTaskTypes)
	router.GET("/api/tasks/:id", tc.GetTaskStatus)
	router.POST("/api/tasks/:type/run", tc.RunTask)
}

// ListTaskTypes handles GET /api/tasks/types.
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"task_types": []TaskTypeInfo{
			{Type: tasks.CacheCoverTask{}.Config().Name, Description: "Cache the cover of one saved book"},
			{Type: tasks.CacheAllCoversTask{}.Config().Name, Description: "Cache the covers of every saved book"},
		},
	})
}

// GetTaskStatus handles GET /api/tasks/:id.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

// RunTask handles POST /api/tasks/:type/run.
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBind(&req)
	}

	var task backlite.Task
	switch taskType {
	case tasks.CacheCoverTask{}.Config().Name:
		if req.BookID == 0 {
			respondBadRequest(c, "book_id is required for "+taskType)
			return
		}
		task = tasks.CacheCoverTask{BookID: req.BookID}
	case tasks.CacheAllCoversTask{}.Config().Name:
		task = tasks.CacheAllCoversTask{}
	default:
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
		return
	}

	ids, err := tc.client.Enqueue(c.Request.Context(), task)
	if err != nil {
		respondInternalError(c, err, "enqueue "+taskType)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"task_id": ids[0],
		"type":    taskType,
		"message": "task enqueued",
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
