// Package audit implements the audit-logged mutation gateway: every
// privileged write runs through Gateway.Perform, which captures before/after
// snapshots of the affected entity and appends a write-once AuditRecord.
package audit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated = errors.New("no authenticated session")
	ErrForbidden       = errors.New("elevated privilege required")
	ErrNotFound        = errors.New("entity not found")
)

// ActorContext identifies the administrator performing a guarded mutation.
type ActorContext struct {
	ID        uuid.UUID
	Label     string // denormalized "Name <email>", stored on the record
	Role      string
	Suspended bool
}

// Origin carries best-effort forensic metadata about the caller.
type Origin struct {
	IP        string
	UserAgent string
}

// OriginFromCtx extracts caller metadata from the current request.
func OriginFromCtx(c *fiber.Ctx) Origin {
	return Origin{IP: c.IP(), UserAgent: c.Get("User-Agent")}
}

// Mutation describes one guarded state change.
type Mutation struct {
	Actor  ActorContext
	Action models.ActionKind
	Entity models.EntityKind
	// EntityID points at the affected record's id. For creation actions it
	// may point at a zero uuid that the mutation function fills in, so the
	// after-snapshot can still be captured. Nil for system-wide actions.
	EntityID *uuid.UUID
	Reason   string
	Origin   Origin
}

type Gateway struct {
	db *gorm.DB

	mu   sync.Mutex
	subs map[chan models.AuditRecord]struct{}
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{
		db:   db,
		subs: make(map[chan models.AuditRecord]struct{}),
	}
}

// Perform runs fn inside a transaction and appends an audit record on
// success. The sequence is: load before-snapshot, mutate, load
// after-snapshot, record. A failing fn aborts everything and writes no
// record. A failing record write is logged and swallowed: the mutation
// already succeeded from the caller's point of view, and refusing an
// administrative action because the audit store is down would be worse than
// an audit gap.
func (g *Gateway) Perform(m Mutation, fn func(tx *gorm.DB) error) error {
	var before datatypes.JSON
	if m.EntityID != nil && *m.EntityID != uuid.Nil {
		snap, err := snapshot(g.db, m.Entity, *m.EntityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		before = snap
	}

	if err := g.db.Transaction(fn); err != nil {
		return err
	}

	var after datatypes.JSON
	if m.EntityID != nil && *m.EntityID != uuid.Nil {
		// A load failure here is expected for deletions; the record simply
		// carries no after-snapshot.
		if snap, err := snapshot(g.db, m.Entity, *m.EntityID); err == nil {
			after = snap
		}
	}

	rec := models.AuditRecord{
		ActorID:         m.Actor.ID,
		ActorLabel:      m.Actor.Label,
		ActionKind:      m.Action,
		EntityKind:      m.Entity,
		Reason:          m.Reason,
		BeforeSnapshot:  before,
		AfterSnapshot:   after,
		OriginIP:        m.Origin.IP,
		OriginUserAgent: m.Origin.UserAgent,
	}
	if m.EntityID != nil && *m.EntityID != uuid.Nil {
		id := *m.EntityID
		rec.EntityID = &id
	}

	if err := g.db.Create(&rec).Error; err != nil {
		slog.Error("audit record write failed",
			"action", m.Action,
			"entity", m.Entity,
			"actor", m.Actor.ID,
			"error", err,
		)
		return nil
	}

	g.publish(rec)
	return nil
}

// Subscribe registers a live feed of newly written audit records. The
// returned cancel func must be called when the consumer goes away.
func (g *Gateway) Subscribe() (<-chan models.AuditRecord, func()) {
	ch := make(chan models.AuditRecord, 16)
	g.mu.Lock()
	g.subs[ch] = struct{}{}
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		delete(g.subs, ch)
		g.mu.Unlock()
	}
	return ch, cancel
}

// publish never blocks; a slow subscriber just misses records.
func (g *Gateway) publish(rec models.AuditRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for ch := range g.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// snapshot projects the entity's audit-relevant fields as JSON.
func snapshot(db *gorm.DB, kind models.EntityKind, id uuid.UUID) (datatypes.JSON, error) {
	var fields map[string]interface{}

	switch kind {
	case models.EntityAccount:
		var a models.Account
		if err := db.First(&a, "id = ?", id).Error; err != nil {
			return nil, err
		}
		fields = a.AuditSnapshot()
	case models.EntityCanteen:
		var cn models.Canteen
		if err := db.First(&cn, "id = ?", id).Error; err != nil {
			return nil, err
		}
		fields = cn.AuditSnapshot()
	case models.EntityMenuItem:
		var mi models.MenuItem
		if err := db.First(&mi, "id = ?", id).Error; err != nil {
			return nil, err
		}
		fields = mi.AuditSnapshot()
	case models.EntityOrder:
		var o models.Order
		if err := db.First(&o, "id = ?", id).Error; err != nil {
			return nil, err
		}
		fields = o.AuditSnapshot()
	case models.EntityReview:
		var r models.Review
		if err := db.First(&r, "id = ?", id).Error; err != nil {
			return nil, err
		}
		fields = r.AuditSnapshot()
	case models.EntitySystemConfig:
		var sc models.SystemConfig
		if err := db.First(&sc, "id = ?", id).Error; err != nil {
			return nil, err
		}
		fields = sc.AuditSnapshot()
	default:
		return nil, nil
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
