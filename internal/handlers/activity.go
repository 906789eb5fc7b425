package handlers

import (
	"errors"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
	"github.com/Skotchmaster/waterworks/internal/service/search"
	"github.com/Skotchmaster/waterworks/internal/util"
)

type ActivityHandler struct {
	Repo *repo.GormRepo
	// Index is nil when Elasticsearch is not configured.
	Index *search.ActivityIndex
}

type activityQuery struct {
	UserID string
	Action string
	Table  string
}

func (q activityQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.UserID, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "" {
				return nil
			}
			if n, err := strconv.ParseUint(s, 10, 64); err != nil || n == 0 {
				return errors.New("must be a positive integer")
			}
			return nil
		})),
		validation.Field(&q.Action, validation.By(func(v any) error {
			s, _ := v.(string)
			if s != "" && !models.Action(s).Valid() {
				return errors.New("must be a valid value")
			}
			return nil
		})),
		validation.Field(&q.Table, validation.Length(0, 64)),
	)
}

func (q activityQuery) filter() repo.ActivityFilter {
	f := repo.ActivityFilter{Action: models.Action(q.Action), Table: q.Table}
	if q.UserID != "" {
		n, _ := strconv.ParseUint(q.UserID, 10, 64)
		id := uint(n)
		f.UserID = &id
	}
	return f
}

// List pages through the activity log, newest first.
func (h *ActivityHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "activity.list")

	q := activityQuery{
		UserID: c.QueryParam("user_id"),
		Action: c.QueryParam("action"),
		Table:  c.QueryParam("table_name"),
	}
	if err := q.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "Validation failed", "details": err})
	}

	page := util.ParsePage(c.QueryParam("page"), c.QueryParam("size"))

	total, rows, err := h.Repo.ListActivity(ctx, q.filter(), page.Offset(), page.Size)
	if err != nil {
		l.Error("list activity failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total": total,
		"page":  page.Number,
		"size":  page.Size,
		"logs":  rows,
	})
}

func (h *ActivityHandler) Search(c echo.Context) error {
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query error")
	}

	page := util.ParsePage(c.QueryParam("page"), c.QueryParam("size"))

	ctx := c.Request().Context()
	total, rows, err := h.Index.Search(ctx, q, page.Offset(), page.Size)
	if err != nil {
		logging.FromContext(ctx).Error("activity search failed", "status", 502, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "search failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "logs": rows})
}
