package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/session"
)

// actorHeader names the authenticated caller. Authentication itself happens
// upstream; the engine only consumes the resolved identity.
const actorHeader = "X-Actor-ID"

type sessionApi struct {
	deriver  *session.Deriver
	log      event.Log
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, deriver *session.Deriver, log event.Log, validate *validator.Validate) {
	api := sessionApi{
		deriver:  deriver,
		log:      log,
		validate: validate,
	}

	cg := g.Group("/classes/:classID")
	cg.POST("/students", api.joinClassAsStudent)
	cg.DELETE("/students", api.leaveClassAsStudent)
	cg.POST("/curators", api.joinClassAsCurator)
	cg.DELETE("/curators", api.leaveClassAsCurator)
	cg.GET("/events", api.classEvents)

	tg := g.Group("/teams/:teamID")
	tg.POST("/curators", api.joinTeamAsCurator)
	tg.DELETE("/curators", api.leaveTeamAsCurator)
	tg.GET("/curators", api.teamCurators)
	tg.GET("/curators/:curatorID", api.curatorJoined)
	tg.POST("/hand", api.toggleHand)
	tg.PUT("/blocked", api.setBlocked)
	tg.PUT("/task", api.selectTask)
	tg.POST("/submissions", api.submitSolution)
	tg.GET("/submissions", api.teamSubmissions)
	tg.GET("/status", api.teamStatus)
	tg.GET("/events", api.teamEvents)

	g.GET("/submissions/:id", api.submission)
}

// Request bodies

type setBlockedRequest struct {
	Blocked *bool `json:"blocked" validate:"required"`
}

type selectTaskRequest struct {
	TaskID int `json:"taskId" validate:"required,min=1"`
}

type submitSolutionRequest struct {
	TaskID   int    `json:"taskId" validate:"required,min=1"`
	Code     string `json:"code" validate:"required"`
	Language string `json:"language" validate:"required"`
}

// Handlers

func (api *sessionApi) joinClassAsStudent(ctx echo.Context) error {
	classID, actorID, err := api.classActor(ctx)
	if err != nil {
		return err
	}
	if err := api.deriver.JoinClassAsStudent(ctx.Request().Context(), classID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) leaveClassAsStudent(ctx echo.Context) error {
	classID, actorID, err := api.classActor(ctx)
	if err != nil {
		return err
	}
	if err := api.deriver.LeaveClassAsStudent(ctx.Request().Context(), classID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) joinClassAsCurator(ctx echo.Context) error {
	classID, actorID, err := api.classActor(ctx)
	if err != nil {
		return err
	}
	if err := api.deriver.JoinClassAsCurator(ctx.Request().Context(), classID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) leaveClassAsCurator(ctx echo.Context) error {
	classID, actorID, err := api.classActor(ctx)
	if err != nil {
		return err
	}
	if err := api.deriver.LeaveClassAsCurator(ctx.Request().Context(), classID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// classEvents returns the class feed, optionally bounded with from/to
// RFC 3339 query parameters (from inclusive, to exclusive).
func (api *sessionApi) classEvents(ctx echo.Context) error {
	classID, err := intParam(ctx, "classID")
	if err != nil {
		return err
	}

	fromStr, toStr := ctx.QueryParam("from"), ctx.QueryParam("to")
	var events []event.Event
	if fromStr != "" || toStr != "" {
		from, to, err := parseWindow(fromStr, toStr)
		if err != nil {
			return err
		}
		events, err = api.log.ByClassBetween(ctx.Request().Context(), classID, from, to)
		if err != nil {
			return errors.Wrap(err, "querying class events")
		}
	} else {
		events, err = api.log.ByClass(ctx.Request().Context(), classID)
		if err != nil {
			return errors.Wrap(err, "querying class events")
		}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *sessionApi) joinTeamAsCurator(ctx echo.Context) error {
	teamID, actorID, err := api.teamActor(ctx)
	if err != nil {
		return err
	}
	if err := api.deriver.JoinTeamAsCurator(ctx.Request().Context(), teamID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) leaveTeamAsCurator(ctx echo.Context) error {
	teamID, actorID, err := api.teamActor(ctx)
	if err != nil {
		return err
	}
	if err := api.deriver.LeaveTeamAsCurator(ctx.Request().Context(), teamID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) teamCurators(ctx echo.Context) error {
	teamID, err := intParam(ctx, "teamID")
	if err != nil {
		return err
	}
	curators, err := api.deriver.JoinedCurators(ctx.Request().Context(), teamID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"curators": curators})
}

func (api *sessionApi) curatorJoined(ctx echo.Context) error {
	teamID, err := intParam(ctx, "teamID")
	if err != nil {
		return err
	}
	joined, err := api.deriver.IsCuratorJoined(ctx.Request().Context(), teamID, ctx.Param("curatorID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"joined": joined})
}

func (api *sessionApi) toggleHand(ctx echo.Context) error {
	teamID, actorID, err := api.teamActor(ctx)
	if err != nil {
		return err
	}
	raised, err := api.deriver.ToggleHand(ctx.Request().Context(), teamID, actorID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"handRaised": raised})
}

func (api *sessionApi) setBlocked(ctx echo.Context) error {
	teamID, actorID, err := api.teamActor(ctx)
	if err != nil {
		return err
	}
	var data setBlockedRequest
	if err := api.bind(ctx, &data); err != nil {
		return err
	}
	if err := api.deriver.SetBlocked(ctx.Request().Context(), teamID, actorID, *data.Blocked); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) selectTask(ctx echo.Context) error {
	teamID, actorID, err := api.teamActor(ctx)
	if err != nil {
		return err
	}
	var data selectTaskRequest
	if err := api.bind(ctx, &data); err != nil {
		return err
	}
	if err := api.deriver.SelectTask(ctx.Request().Context(), teamID, data.TaskID, actorID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) submitSolution(ctx echo.Context) error {
	teamID, actorID, err := api.teamActor(ctx)
	if err != nil {
		return err
	}
	var data submitSolutionRequest
	if err := api.bind(ctx, &data); err != nil {
		return err
	}
	sub, err := api.deriver.SubmitSolution(ctx.Request().Context(), teamID, data.TaskID, actorID, data.Code, data.Language)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *sessionApi) teamSubmissions(ctx echo.Context) error {
	teamID, err := intParam(ctx, "teamID")
	if err != nil {
		return err
	}
	subs, err := api.deriver.TeamSubmissions(ctx.Request().Context(), teamID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *sessionApi) teamStatus(ctx echo.Context) error {
	teamID, err := intParam(ctx, "teamID")
	if err != nil {
		return err
	}
	st, err := api.deriver.Status(ctx.Request().Context(), teamID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *sessionApi) teamEvents(ctx echo.Context) error {
	teamID, err := intParam(ctx, "teamID")
	if err != nil {
		return err
	}
	events, err := api.log.ByTeam(ctx.Request().Context(), teamID)
	if err != nil {
		return errors.Wrap(err, "querying team events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *sessionApi) submission(ctx echo.Context) error {
	sub, err := api.deriver.Submission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

// Helpers

func (api *sessionApi) bind(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	return nil
}

func (api *sessionApi) classActor(ctx echo.Context) (classID int, actorID string, err error) {
	if classID, err = intParam(ctx, "classID"); err != nil {
		return 0, "", err
	}
	if actorID, err = actor(ctx); err != nil {
		return 0, "", err
	}
	return classID, actorID, nil
}

func (api *sessionApi) teamActor(ctx echo.Context) (teamID int, actorID string, err error) {
	if teamID, err = intParam(ctx, "teamID"); err != nil {
		return 0, "", err
	}
	if actorID, err = actor(ctx); err != nil {
		return 0, "", err
	}
	return teamID, actorID, nil
}

func actor(ctx echo.Context) (string, error) {
	id := ctx.Request().Header.Get(actorHeader)
	if id == "" {
		return "", errActorRequired
	}
	return id, nil
}

func intParam(ctx echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(ctx.Param(name))
	if err != nil || v <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return v, nil
}

func parseWindow(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "from must be RFC 3339")
		}
	}
	to = time.Now()
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "to must be RFC 3339")
		}
	}
	return from, to, nil
}
