// Package notify pushes per-participant notification streams: friendship
// requests and comment/like notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-social/internal/hub"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Registry is the part of the connection registry a dispatcher needs.
type Registry interface {
	JoinWithCatchUp(ctx context.Context, c *hub.Conn, group string, load func(ctx context.Context) (any, error)) error
	Broadcast(ctx context.Context, payload any, groups ...string) error
	Send(ctx context.Context, c *hub.Conn, payload any) error
}

type Kind int

const (
	KindFriendRequests Kind = iota
	KindCommentLikes
)

func (k Kind) String() string {
	if k == KindFriendRequests {
		return "friend_requests"
	}
	return "comment_likes"
}

// Group is the personal group of participant id for this kind.
func (k Kind) Group(id int64) string {
	if k == KindFriendRequests {
		return hub.FriendRequestGroup(id)
	}
	return hub.CommentLikeGroup(id)
}

// CatchUpSource builds the snapshot a participant receives on connect.
type CatchUpSource interface {
	CatchUp(ctx context.Context, recipientID int64) (any, error)
}

type Dispatcher struct {
	kind   Kind
	hub    Registry
	source CatchUpSource
	log    *slog.Logger
	tracer trace.Tracer
}

func NewDispatcher(kind Kind, registry Registry, source CatchUpSource, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		kind:   kind,
		hub:    registry,
		source: source,
		log:    log.With(slog.String("component", "notify"), slog.String("kind", kind.String())),
		tracer: otel.Tracer("go-social/notify"),
	}
}

func (d *Dispatcher) Kind() Kind { return d.kind }

// Connect subscribes an authenticated connection to its personal group with
// a catch-up snapshot queued first. Anonymous connections are only told so.
func (d *Dispatcher) Connect(ctx context.Context, c *hub.Conn) error {
	if c.Identity.Anonymous() {
		return d.hub.Send(ctx, c, anonymousUser)
	}

	ctx, span := d.tracer.Start(ctx, "notify.connect", trace.WithAttributes(
		attribute.String("notify.kind", d.kind.String()),
		attribute.Int64("user.id", c.Identity.UserID),
	))
	defer span.End()

	id := c.Identity.UserID
	group := d.kind.Group(id)
	err := d.hub.JoinWithCatchUp(ctx, c, group, func(ctx context.Context) (any, error) {
		return d.source.CatchUp(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	d.log.Info("notify - connect - joined", slog.String("conn_id", c.ID), slog.String("group", group))
	return nil
}

// Broadcast relays payload to the recipient's personal group.
func (d *Dispatcher) Broadcast(ctx context.Context, recipientID int64, payload any) error {
	if err := d.hub.Broadcast(ctx, payload, d.kind.Group(recipientID)); err != nil {
		return fmt.Errorf("notify %s: %w", d.kind, err)
	}
	return nil
}

// BroadcastAll emits every notice, continuing past failures.
func (d *Dispatcher) BroadcastAll(ctx context.Context, notices []Notice) error {
	var errs []error
	for _, n := range notices {
		if err := d.Broadcast(ctx, n.RecipientID, n.Payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
