// Package audit records privileged activity: logins, logouts and every
// create, update or delete of a tracked entity. Writes are best-effort and
// never fail the caller's operation.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/Skotchmaster/waterworks/internal/geo"
	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
)

const (
	defaultGeoTimeout   = time.Second
	defaultSinkTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

type Event struct {
	Action   models.Action
	Actor    *Actor
	Table    string
	RecordID uint64
	Old      any
	New      any
}

// Sink receives every persisted entry. Sinks run in the background.
type Sink interface {
	Publish(ctx context.Context, entry *models.ActivityLog) error
}

type Logger struct {
	Repo       *repo.GormRepo
	Locator    geo.Locator
	GeoTimeout time.Duration
	Sinks      []Sink

	wg sync.WaitGroup
}

func NewLogger(r *repo.GormRepo, loc geo.Locator, geoTimeout time.Duration, sinks ...Sink) *Logger {
	if loc == nil {
		loc = geo.Static(geo.UnknownLocation)
	}
	if geoTimeout <= 0 {
		geoTimeout = defaultGeoTimeout
	}
	return &Logger{Repo: r, Locator: loc, GeoTimeout: geoTimeout, Sinks: sinks}
}

// Record writes ev when its actor is privileged. The actor comes from ev or,
// when unset, from ctx.
func (l *Logger) Record(ctx context.Context, ev Event) {
	l.record(ctx, l.Repo, ev)
}

// record writes the entry through r, which may be bound to a transaction.
func (l *Logger) record(ctx context.Context, r *repo.GormRepo, ev Event) {
	actor := ev.Actor
	if actor == nil {
		actor = ActorFrom(ctx)
	}
	if actor == nil || !models.IsPrivileged(actor.Role) {
		return
	}

	log := logging.FromContext(ctx).With("svc", "audit", "action", string(ev.Action))
	// the audited operation may finish before the write; keep going
	ctx = context.WithoutCancel(ctx)

	ri := RequestFrom(ctx)
	entry := &models.ActivityLog{
		UserID:    &actor.UserID,
		Role:      string(models.ParseRole(string(actor.Role))),
		Action:    ev.Action,
		IPAddress: truncate(ri.IP, 45),
		UserAgent: ri.UserAgent,
	}
	if ev.Table != "" {
		t := ev.Table
		entry.Table = &t
	}
	if ev.RecordID != 0 {
		id := ev.RecordID
		entry.RecordID = &id
	}

	var err error
	if entry.OldData, err = toJSON(ev.Old); err != nil {
		log.Warn("audit_encode_failed", "field", "old_data", "error", err)
		return
	}
	if entry.NewData, err = toJSON(ev.New); err != nil {
		log.Warn("audit_encode_failed", "field", "new_data", "error", err)
		return
	}

	if ri.IP != "" {
		loc := l.locate(ctx, ri.IP)
		entry.Location = &loc
	}

	wctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	if err := r.CreateActivity(wctx, entry); err != nil {
		log.Warn("audit_write_failed", "error", err)
		return
	}

	l.fanOut(ctx, entry)
}

func (l *Logger) locate(ctx context.Context, ip string) string {
	lctx, cancel := context.WithTimeout(ctx, l.GeoTimeout)
	defer cancel()

	done := make(chan string, 1)
	go func() { done <- l.Locator.Locate(lctx, ip) }()

	select {
	case loc := <-done:
		return loc
	case <-lctx.Done():
		return geo.UnknownLocation
	}
}

func (l *Logger) fanOut(ctx context.Context, entry *models.ActivityLog) {
	for _, s := range l.Sinks {
		l.wg.Add(1)
		go func(s Sink) {
			defer l.wg.Done()
			sctx, cancel := context.WithTimeout(ctx, defaultSinkTimeout)
			defer cancel()
			if err := s.Publish(sctx, entry); err != nil {
				logging.FromContext(ctx).Warn("audit_sink_failed", "entry_id", entry.ID, "error", err)
			}
		}(s)
	}
}

// Flush blocks until every background sink delivery has finished.
func (l *Logger) Flush() {
	l.wg.Wait()
}

func toJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
