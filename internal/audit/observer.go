package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/waterworks/internal/logging"
	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/repo"
)

const (
	beforeKey  = "audit:before"
	eventKey   = "audit:event"
	skippedKey = "audit:skipped"

	commitCallback = "gorm:commit_or_rollback_transaction"
)

// ignoredColumns never count as a change on their own.
var ignoredColumns = map[string]bool{"updated_at": true}

// Observer turns gorm create, update and delete statements on tracked tables
// into audit events. An event is written only after the statement's own
// transaction has committed, so failed or rolled back statements leave no
// entry.
type Observer struct {
	Log *Logger

	mu     sync.RWMutex
	tables map[string]bool
}

func NewObserver(l *Logger) *Observer {
	return &Observer{Log: l, tables: map[string]bool{}}
}

// Track adds the tables of the given models to the registration table.
func (o *Observer) Track(db *gorm.DB, ms ...any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range ms {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("audit: parse %T: %w", m, err)
		}
		o.tables[stmt.Schema.Table] = true
	}
	return nil
}

func (o *Observer) Tracked(table string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tables[table]
}

func (o *Observer) Register(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("audit:after_create", o.afterCreate); err != nil {
		return err
	}
	if err := cb.Create().After(commitCallback).Register("audit:record_create", o.recordCommitted); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("audit:before_update", o.beforeUpdate); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("audit:after_update", o.afterUpdate); err != nil {
		return err
	}
	if err := cb.Update().After(commitCallback).Register("audit:record_update", o.recordCommitted); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("audit:before_delete", o.beforeDelete); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("audit:after_delete", o.afterDelete); err != nil {
		return err
	}
	return cb.Delete().After(commitCallback).Register("audit:record_delete", o.recordCommitted)
}

// Transaction runs fn in a database transaction. Audit entries for the
// tracked statements inside fn are written after the commit and dropped on
// rollback. Nested calls hand their events to the enclosing call.
func (o *Observer) Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	outer := pendingFrom(ctx)
	p := &pending{}
	if err := db.WithContext(context.WithValue(ctx, pendingKey{}, p)).Transaction(fn); err != nil {
		return err
	}
	events := p.drain()
	if outer != nil {
		outer.add(events...)
		return nil
	}
	for _, ev := range events {
		o.Log.Record(ctx, ev)
	}
	return nil
}

// Created records a full snapshot of a newly created record.
func (o *Observer) Created(ctx context.Context, table string, id uint64, after any) {
	if !o.Tracked(table) {
		return
	}
	o.emit(ctx, nil, createdEvent(ctx, table, id, after))
}

// Updated records only the keys whose values differ between before and
// after. Nothing is written when nothing changed.
func (o *Observer) Updated(ctx context.Context, table string, id uint64, before, after any) {
	if !o.Tracked(table) {
		return
	}
	if ev, ok := updatedEvent(ctx, table, id, before, after); ok {
		o.emit(ctx, nil, ev)
	}
}

// Deleted records the full state of the record as it was before deletion.
func (o *Observer) Deleted(ctx context.Context, table string, id uint64, before any) {
	if !o.Tracked(table) {
		return
	}
	o.emit(ctx, nil, deletedEvent(ctx, table, id, before))
}

func createdEvent(ctx context.Context, table string, id uint64, after any) Event {
	return Event{Action: models.ActionCreate, Actor: ActorFrom(ctx), Table: table, RecordID: id, New: Snapshot(after)}
}

func updatedEvent(ctx context.Context, table string, id uint64, before, after any) (Event, bool) {
	oldData, newData := Diff(Snapshot(before), Snapshot(after))
	if len(newData) == 0 {
		return Event{}, false
	}
	return Event{Action: models.ActionUpdate, Actor: ActorFrom(ctx), Table: table, RecordID: id, Old: oldData, New: newData}, true
}

func deletedEvent(ctx context.Context, table string, id uint64, before any) Event {
	return Event{Action: models.ActionDelete, Actor: ActorFrom(ctx), Table: table, RecordID: id, Old: Snapshot(before)}
}

// emit writes ev now, or later when ctx belongs to an Observer.Transaction.
// A statement inside a transaction opened elsewhere writes its entry through
// that transaction, so the entry commits or rolls back with the change.
func (o *Observer) emit(ctx context.Context, db *gorm.DB, ev Event) {
	if p := pendingFrom(ctx); p != nil {
		p.add(ev)
		return
	}
	if db != nil {
		if _, open := db.Statement.ConnPool.(gorm.TxCommitter); open {
			o.Log.record(ctx, &repo.GormRepo{DB: db.Session(&gorm.Session{NewDB: true})}, ev)
			return
		}
	}
	o.Log.Record(ctx, ev)
}

func (o *Observer) afterCreate(db *gorm.DB) {
	id, ok := o.target(db)
	if !ok || db.Statement.RowsAffected == 0 {
		return
	}
	stmt := db.Statement
	db.InstanceSet(eventKey, createdEvent(stmt.Context, stmt.Table, id, stmt.ReflectValue.Interface()))
}

func (o *Observer) beforeUpdate(db *gorm.DB) {
	id, ok := o.target(db)
	if !ok {
		return
	}
	if before, err := o.reload(db, id); err == nil {
		db.InstanceSet(beforeKey, before)
	}
}

func (o *Observer) afterUpdate(db *gorm.DB) {
	id, ok := o.target(db)
	if !ok || db.Statement.RowsAffected == 0 {
		return
	}
	before, ok := db.InstanceGet(beforeKey)
	if !ok {
		return
	}
	after, err := o.reload(db, id)
	if err != nil {
		return
	}
	if ev, ok := updatedEvent(db.Statement.Context, db.Statement.Table, id, before, after); ok {
		db.InstanceSet(eventKey, ev)
	}
}

func (o *Observer) beforeDelete(db *gorm.DB) {
	id, ok := o.target(db)
	if !ok {
		return
	}
	if before, err := o.reload(db, id); err == nil {
		db.InstanceSet(beforeKey, before)
	}
}

func (o *Observer) afterDelete(db *gorm.DB) {
	id, ok := o.target(db)
	if !ok || db.Statement.RowsAffected == 0 {
		return
	}
	before, ok := db.InstanceGet(beforeKey)
	if !ok {
		return
	}
	db.InstanceSet(eventKey, deletedEvent(db.Statement.Context, db.Statement.Table, id, before))
}

// recordCommitted runs after gorm has committed or rolled back the
// statement's own transaction.
func (o *Observer) recordCommitted(db *gorm.DB) {
	v, ok := db.InstanceGet(eventKey)
	if !ok || db.Error != nil {
		return
	}
	if ev, ok := v.(Event); ok {
		o.emit(db.Statement.Context, db, ev)
	}
}

// target reports whether the statement should be audited and returns the
// primary key of the affected record.
func (o *Observer) target(db *gorm.DB) (uint64, bool) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil || !o.Tracked(stmt.Table) {
		return 0, false
	}
	a := ActorFrom(stmt.Context)
	if a == nil || !models.IsPrivileged(a.Role) {
		return 0, false
	}
	pk := stmt.Schema.PrioritizedPrimaryField
	rv := reflect.Indirect(stmt.ReflectValue)
	if pk == nil || rv.Kind() != reflect.Struct {
		o.skipped(db, a)
		return 0, false
	}
	v, zero := pk.ValueOf(stmt.Context, rv)
	if zero {
		o.skipped(db, a)
		return 0, false
	}
	id, ok := toUint64(v)
	return id, ok
}

// skipped logs, once per statement, a privileged change to a tracked table
// that names no single record.
func (o *Observer) skipped(db *gorm.DB, a *Actor) {
	if _, done := db.InstanceGet(skippedKey); done {
		return
	}
	db.InstanceSet(skippedKey, true)
	logging.FromContext(db.Statement.Context).Warn("audit_skipped_without_primary_key",
		"table", db.Statement.Table, "user_id", a.UserID, "role", string(a.Role))
}

type pendingKey struct{}

// pending buffers the events of an open Observer.Transaction.
type pending struct {
	mu     sync.Mutex
	events []Event
}

func pendingFrom(ctx context.Context) *pending {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(pendingKey{}).(*pending)
	return p
}

func (p *pending) add(evs ...Event) {
	p.mu.Lock()
	p.events = append(p.events, evs...)
	p.mu.Unlock()
}

func (p *pending) drain() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

func (o *Observer) reload(db *gorm.DB, id uint64) (any, error) {
	stmt := db.Statement
	dest := reflect.New(stmt.Schema.ModelType).Interface()
	err := db.Session(&gorm.Session{NewDB: true}).
		Where(clause.Eq{Column: clause.Column{Name: stmt.Schema.PrioritizedPrimaryField.DBName}, Value: id}).
		Take(dest).Error
	if err != nil {
		return nil, err
	}
	return dest, nil
}

func toUint64(v any) (uint64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() <= 0 {
			return 0, false
		}
		return uint64(rv.Int()), true
	}
	return 0, false
}

// Snapshot renders a record the way it is serialized to clients, so fields
// hidden from JSON never reach the audit log.
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Diff returns the old and new values of every key that changed.
func Diff(before, after map[string]any) (map[string]any, map[string]any) {
	oldData := map[string]any{}
	newData := map[string]any{}
	for k, nv := range after {
		if ignoredColumns[k] {
			continue
		}
		ov, had := before[k]
		if had && reflect.DeepEqual(ov, nv) {
			continue
		}
		oldData[k] = ov
		newData[k] = nv
	}
	return oldData, newData
}
