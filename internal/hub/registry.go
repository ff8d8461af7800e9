package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go-social/internal/domain"
	"go-social/internal/user"

	"github.com/google/uuid"
)

// Registry is the connection registry. A single Run goroutine owns the
// connection and group tables; every other method is a request to it, so
// joins, leaves and broadcast snapshots are serialized.
type Registry struct {
	log        *slog.Logger
	relay      Relay
	origin     string
	sendBuffer int

	conns  map[string]*Conn
	groups map[string]map[*Conn]struct{}

	register   chan attachReq
	unregister chan detachReq
	membership chan memberReq
	deliver    chan deliverReq
	stats      chan chan Stats

	relayReady  chan struct{}
	relayFailed chan struct{}
	stopped     chan struct{}
}

type attachReq struct {
	conn *Conn
	done chan struct{}
}

type detachReq struct {
	conn *Conn
	done chan struct{}
}

type memberReq struct {
	conn  *Conn
	group string
	leave bool
	done  chan error
}

type deliverReq struct {
	groups []string
	data   []byte
	done   chan struct{}
}

type Stats struct {
	Connections int            `json:"connections"`
	Groups      int            `json:"groups"`
	Members     map[string]int `json:"-"`
}

type Option func(*Registry)

// WithRelay also publishes every Broadcast to other instances through relay.
func WithRelay(relay Relay) Option {
	return func(r *Registry) { r.relay = relay }
}

func WithSendBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.sendBuffer = n
		}
	}
}

func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		log:        log.With(slog.String("component", "hub")),
		origin:     uuid.NewString(),
		sendBuffer: 256,
		conns:      make(map[string]*Conn),
		groups:     make(map[string]map[*Conn]struct{}),
		register:   make(chan attachReq),
		unregister: make(chan detachReq),
		membership: make(chan memberReq),
		deliver:    make(chan deliverReq),
		stats:      make(chan chan Stats),
		relayReady:  make(chan struct{}),
		relayFailed: make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run owns the registry state until ctx is cancelled. On exit every
// connection is closed.
func (r *Registry) Run(ctx context.Context) error {
	defer close(r.stopped)

	var relayErr chan error
	if r.relay != nil {
		relayErr = make(chan error, 1)
		var once sync.Once
		ready := func() { once.Do(func() { close(r.relayReady) }) }
		go func() { relayErr <- r.relay.Subscribe(ctx, ready, r.deliverRelayed) }()
		defer func() {
			if relayErr != nil {
				<-relayErr
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			for _, c := range r.conns {
				c.close()
			}
			r.log.Info("hub - run - stopped", slog.Int("connections", len(r.conns)))
			r.conns = map[string]*Conn{}
			r.groups = map[string]map[*Conn]struct{}{}
			return nil

		case err := <-relayErr:
			relayErr = nil
			if ctx.Err() != nil {
				continue
			}
			// Local delivery keeps working; only cross-instance fan-out is gone.
			r.log.Error("hub - relay - subscription ended", slog.Any("error", err))
			close(r.relayFailed)

		case req := <-r.register:
			r.conns[req.conn.ID] = req.conn
			req.done <- struct{}{}

		case req := <-r.unregister:
			r.remove(req.conn)
			req.done <- struct{}{}

		case req := <-r.membership:
			req.done <- r.applyMembership(req)

		case req := <-r.deliver:
			r.fanOut(req.groups, req.data)
			req.done <- struct{}{}

		case reply := <-r.stats:
			s := Stats{Connections: len(r.conns), Groups: len(r.groups), Members: make(map[string]int, len(r.groups))}
			for name, members := range r.groups {
				s.Members[name] = len(members)
			}
			reply <- s
		}
	}
}

func (r *Registry) applyMembership(req memberReq) error {
	c := req.conn
	if _, ok := r.conns[c.ID]; !ok {
		return domain.ErrNotAttached
	}
	if req.leave {
		r.leaveGroup(c, req.group)
		return nil
	}
	if c.Identity.Anonymous() && RequiresAuth(req.group) {
		return domain.ErrAuthenticationRequired
	}
	members, ok := r.groups[req.group]
	if !ok {
		members = make(map[*Conn]struct{})
		r.groups[req.group] = members
	}
	members[c] = struct{}{}
	c.groups[req.group] = struct{}{}
	return nil
}

func (r *Registry) leaveGroup(c *Conn, group string) {
	delete(c.groups, group)
	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

func (r *Registry) remove(c *Conn) {
	if _, ok := r.conns[c.ID]; !ok {
		return
	}
	for group := range c.groups {
		r.leaveGroup(c, group)
	}
	delete(r.conns, c.ID)
	c.close()
}

// fanOut delivers once to each member of the union of groups.
func (r *Registry) fanOut(groups []string, data []byte) {
	seen := make(map[*Conn]struct{})
	var slow []*Conn
	for _, group := range groups {
		for c := range r.groups[group] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if !c.push(data) {
				slow = append(slow, c)
			}
		}
	}
	for _, c := range slow {
		r.log.Warn("hub - broadcast - slow consumer evicted", slog.String("conn_id", c.ID))
		r.remove(c)
	}
}

func submit[T any](ctx context.Context, r *Registry, ch chan<- T, req T) error {
	select {
	case ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return domain.ErrRegistryStopped
	}
}

func (r *Registry) Attach(ctx context.Context, identity user.Identity) (*Conn, error) {
	c := newConn(uuid.NewString(), identity, r.sendBuffer)
	req := attachReq{conn: c, done: make(chan struct{}, 1)}
	if err := submit(ctx, r, r.register, req); err != nil {
		return nil, err
	}
	<-req.done
	r.log.Debug("hub - attach - ok", slog.String("conn_id", c.ID), slog.Int64("user_id", identity.UserID))
	return c, nil
}

// Detach removes every membership and closes the connection. It is
// idempotent and safe after the registry stopped.
func (r *Registry) Detach(ctx context.Context, c *Conn) error {
	req := detachReq{conn: c, done: make(chan struct{}, 1)}
	if err := submit(ctx, r, r.unregister, req); err != nil {
		if errors.Is(err, domain.ErrRegistryStopped) {
			c.close()
			return nil
		}
		return err
	}
	<-req.done
	r.log.Debug("hub - detach - ok", slog.String("conn_id", c.ID))
	return nil
}

func (r *Registry) membershipChange(ctx context.Context, c *Conn, group string, leave bool) error {
	req := memberReq{conn: c, group: group, leave: leave, done: make(chan error, 1)}
	if err := submit(ctx, r, r.membership, req); err != nil {
		return err
	}
	return <-req.done
}

// Join is idempotent.
func (r *Registry) Join(ctx context.Context, c *Conn, group string) error {
	if err := r.membershipChange(ctx, c, group, false); err != nil {
		return fmt.Errorf("join %s: %w", group, err)
	}
	return nil
}

func (r *Registry) Leave(ctx context.Context, c *Conn, group string) error {
	if err := r.membershipChange(ctx, c, group, true); err != nil {
		return fmt.Errorf("leave %s: %w", group, err)
	}
	return nil
}

// JoinWithCatchUp joins group and queues the result of load ahead of any
// live event that reaches the connection meanwhile. Live delivery is held
// while load runs. A load failure still releases held events.
func (r *Registry) JoinWithCatchUp(ctx context.Context, c *Conn, group string, load func(ctx context.Context) (any, error)) error {
	c.hold()
	if err := r.Join(ctx, c, group); err != nil {
		c.release(nil)
		return err
	}

	var first []byte
	payload, loadErr := load(ctx)
	if loadErr == nil {
		data, err := encode(payload)
		if err != nil {
			loadErr = err
		} else {
			first = data
		}
	}

	if !c.release(first) {
		r.log.Warn("hub - catch-up - slow consumer evicted", slog.String("conn_id", c.ID))
		return r.Detach(ctx, c)
	}
	if loadErr != nil {
		return fmt.Errorf("catch-up %s: %w", group, loadErr)
	}
	return nil
}

// Broadcast delivers payload to every current member of the groups, each
// connection at most once. Empty groups are a silent no-op. With a relay the
// payload is delivered locally first and then published for other instances;
// ErrRelayUnavailable reports that only the local part happened.
func (r *Registry) Broadcast(ctx context.Context, payload any, groups ...string) error {
	if len(groups) == 0 {
		return nil
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	if err := r.deliverLocal(ctx, groups, data); err != nil {
		return err
	}
	if r.relay == nil {
		return nil
	}

	select {
	case <-r.relayFailed:
		return domain.ErrRelayUnavailable
	default:
	}
	select {
	case <-r.relayReady:
	case <-r.relayFailed:
		return domain.ErrRelayUnavailable
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return domain.ErrRegistryStopped
	}
	return r.relay.Publish(ctx, Envelope{Origin: r.origin, Groups: groups, Payload: data})
}

func (r *Registry) deliverLocal(ctx context.Context, groups []string, data []byte) error {
	req := deliverReq{groups: groups, data: data, done: make(chan struct{}, 1)}
	if err := submit(ctx, r, r.deliver, req); err != nil {
		return err
	}
	<-req.done
	return nil
}

// deliverRelayed skips envelopes this instance published; Broadcast already
// delivered those locally.
func (r *Registry) deliverRelayed(ctx context.Context, env Envelope) {
	if env.Origin == r.origin {
		return
	}
	if err := r.deliverLocal(ctx, env.Groups, env.Payload); err != nil && ctx.Err() == nil {
		r.log.Error("hub - relay - local delivery failed", slog.Any("error", err))
	}
}

// Send queues payload for one connection only.
func (r *Registry) Send(ctx context.Context, c *Conn, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	if !c.push(data) {
		r.log.Warn("hub - send - slow consumer evicted", slog.String("conn_id", c.ID))
		return r.Detach(ctx, c)
	}
	return nil
}

func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := submit(ctx, r, r.stats, reply); err != nil {
		return Stats{}, err
	}
	return <-reply, nil
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return data, nil
	}
}
