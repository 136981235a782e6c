package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, board Board, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/projects/:projectId", getProject(board, auth))
	e.POST("/api/projects", createProject(board, auth, deduper))
	e.POST("/api/move-task", moveTask(board, auth, deduper, logger))
	e.POST("/api/projects/:projectId/tasks", addTask(board, auth, deduper))
	e.PATCH("/api/projects/:projectId/tasks/:taskId", updateTask(board, auth))
	e.DELETE("/api/projects/:projectId/tasks/:taskId", deleteTask(board, auth))
	e.POST("/api/projects/:projectId/tasks/:taskId/comments", addComment(board, auth, deduper))
	e.PUT("/api/projects/:projectId/tasks/:taskId/comments/:commentId", editComment(board, auth))
	e.DELETE("/api/projects/:projectId/tasks/:taskId/comments/:commentId", deleteComment(board, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// writeDomainError maps domain errors onto HTTP statuses. Unknown errors are
// logged and surface as 500 without leaking internals.
func writeDomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrCommentNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyName):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case domain.IsPermissionDenied(err):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "project was modified concurrently, retry"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, mutationMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// claimIdempotencyKey consumes the Idempotency-Key header: the first request
// with a given key proceeds, repeats short-circuit with 200. The release
// function re-opens the key when the downstream mutation fails so the client
// may retry.
func claimIdempotencyKey(c echo.Context, deduper Deduper, userID string) (release func(), duplicate bool, err error) {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" || deduper == nil {
		return func() {}, false, nil
	}
	ctx := c.Request().Context()
	added, err := deduper.Add(ctx, userID, key)
	if err != nil {
		return nil, false, err
	}
	if !added {
		return nil, true, nil
	}
	return func() { _ = deduper.Remove(ctx, userID, key) }, false, nil
}

func getProject(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		p, err := board.Project(c.Request().Context(), c.Param("projectId"), userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, p)
	}
}

func createProject(board Board, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createProjectRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		release, duplicate, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		if duplicate {
			return c.NoContent(http.StatusOK)
		}
		p, err := board.CreateProject(c.Request().Context(), domain.NewProjectData{
			Name:        req.Name,
			Description: req.Description,
			TeamID:      req.TeamID,
		}, userID)
		if err != nil {
			release()
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func moveTask(board Board, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMoveRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var req moveTaskRequest
		if decodeErr := decodeBody(c, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}
		if req.ProjectID == "" || req.TaskID == "" || req.NewColumnID == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "projectId, taskId and newColumnId are required"})
			return err
		}

		release, duplicate, dedupeErr := claimIdempotencyKey(c, deduper, userID)
		if dedupeErr != nil {
			metrics.SetErrorStage("dedupe")
			err = writeDomainError(c, dedupeErr)
			return err
		}
		if duplicate {
			metrics.SetDuplicate(true)
			err = c.NoContent(http.StatusOK)
			return err
		}

		moveStart := time.Now()
		task, moveErr := board.MoveTask(ctx, domain.MoveRequest{
			ProjectID:   req.ProjectID,
			TaskID:      req.TaskID,
			ColumnID:    req.NewColumnID,
			NewOrder:    req.NewOrder,
			AfterTaskID: req.AfterTaskID,
		}, userID)
		metrics.ObserveMove(time.Since(moveStart))
		if moveErr != nil {
			release()
			metrics.SetErrorStage("move")
			err = writeDomainError(c, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, task)
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func addTask(board Board, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req addTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		release, duplicate, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		if duplicate {
			return c.NoContent(http.StatusOK)
		}
		task, err := board.AddTask(c.Request().Context(), c.Param("projectId"), req.ColumnID, req.Task, userID)
		if err != nil {
			release()
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task, err := board.UpdateTask(c.Request().Context(), c.Param("projectId"), c.Param("taskId"), req.Task, userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := board.DeleteTask(c.Request().Context(), c.Param("projectId"), c.Param("taskId"), userID); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func addComment(board Board, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req commentRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		release, duplicate, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		if duplicate {
			return c.NoContent(http.StatusOK)
		}
		comment, err := board.AddComment(c.Request().Context(), c.Param("projectId"), c.Param("taskId"), req.Content, req.UserName, req.AvatarURL, userID)
		if err != nil {
			release()
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, comment)
	}
}

func editComment(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req commentRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := board.EditComment(c.Request().Context(), c.Param("projectId"), c.Param("taskId"), c.Param("commentId"), req.Content, userID); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteComment(board Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := board.DeleteComment(c.Request().Context(), c.Param("projectId"), c.Param("taskId"), c.Param("commentId"), userID); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
