package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/waterworks/internal/audit"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
)

// ReportHandler manages monthly reports. Writes go through gorm so the
// change observer records them.
type ReportHandler struct {
	DB    *gorm.DB
	Audit *audit.Observer
}

func (h *ReportHandler) transaction(c echo.Context, fn func(tx *gorm.DB) error) error {
	ctx := c.Request().Context()
	if h.Audit == nil {
		return h.DB.WithContext(ctx).Transaction(fn)
	}
	return h.Audit.Transaction(ctx, h.DB, fn)
}

func (h *ReportHandler) load(c echo.Context) (*models.MonthlyReport, error) {
	id, ok := parseID(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var r models.MonthlyReport
	if err := h.DB.WithContext(c.Request().Context()).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return &r, nil
}

// setStatus locks the report, then moves it to status. A report already in
// that status is returned untouched.
func (h *ReportHandler) setStatus(c echo.Context, status string) error {
	id, ok := parseID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()

	var r models.MonthlyReport
	err := h.transaction(c, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, id).Error; err != nil {
			return err
		}
		if r.Status == status {
			return nil
		}
		changes := map[string]any{"status": status, "published_at": nil}
		if status == models.ReportPublished {
			changes["published_at"] = tx.NowFunc()
		}
		return tx.Model(&r).Updates(changes).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		logging.FromContext(ctx).Error("report status update failed", "status", 500, "report_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReportHandler) Publish(c echo.Context) error {
	return h.setStatus(c, models.ReportPublished)
}

func (h *ReportHandler) Unpublish(c echo.Context) error {
	return h.setStatus(c, models.ReportDraft)
}

func (h *ReportHandler) Delete(c echo.Context) error {
	r, err := h.load(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.DB.WithContext(ctx).Delete(r).Error; err != nil {
		logging.FromContext(ctx).Error("report delete failed", "status", 500, "report_id", r.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.NoContent(http.StatusNoContent)
}
