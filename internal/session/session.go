package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gestionnegocio/console/internal/credential"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/rs/zerolog"
)

// State is the load state of the session
type State int

const (
	StateInitializing State = iota
	StateResolving
	StateReady
	StateUnauthenticated
)

// String returns the name of the state
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateResolving:
		return "Resolving"
	case StateReady:
		return "Ready"
	case StateUnauthenticated:
		return "Unauthenticated"
	default:
		return "Unknown"
	}
}

var (
	// ErrBusy is returned when a login or resolution is already in flight
	ErrBusy = errors.New("a login or session resolution is already in progress")

	// ErrNotInitialized is returned by Login before Init has run
	ErrNotInitialized = errors.New("session has not been initialized")

	// ErrAlreadyInitialized is returned by a second Init
	ErrAlreadyInitialized = errors.New("session already initialized")

	// ErrSuperseded is returned when a logout or invalidation overtook the operation
	ErrSuperseded = errors.New("session was reset while the operation was in flight")
)

// Backend is what the controller needs from the remote API
type Backend interface {
	// Authenticate exchanges an identifier and secret for a credential
	Authenticate(ctx context.Context, identifier, secret string) (string, error)

	// FetchIdentity resolves the user behind the stored credential
	FetchIdentity(ctx context.Context) (models.Identity, error)
}

// Snapshot is a consistent copy of the session state
type Snapshot struct {
	State    State
	Identity *models.Identity // set iff State == StateReady
}

// Controller owns the session state machine.
//
// It is constructed once per process, started with Init and torn down with
// Logout (or by Invalidate when the backend rejects the credential). Network
// calls are made without holding the lock; credential store writes happen
// under it so that state and storage never disagree.
type Controller struct {
	store   credential.Store
	backend Backend
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	identity *models.Identity
	inFlight bool
	// invalidated records a credential rejection seen while an operation was in flight
	invalidated bool
	// epoch changes on every reset; operations started in an older epoch are discarded
	epoch     uint64
	listeners map[int]chan Snapshot
	nextID    int
}

// New creates a controller in the Initializing state
func New(store credential.Store, backend Backend, logger zerolog.Logger) *Controller {
	return &Controller{
		store:     store,
		backend:   backend,
		logger:    logger,
		state:     StateInitializing,
		listeners: make(map[int]chan Snapshot),
	}
}

// Init reads the persisted credential at startup and resolves the identity if one exists
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}

	token, ok, err := c.store.Get(ctx)
	if err != nil || !ok || token == "" {
		c.resetLocked(ctx)
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to read stored credential: %w", err)
		}
		c.logger.Debug().Msg("no stored credential")
		return nil
	}

	c.inFlight = true
	c.state = StateResolving
	epoch := c.epoch
	c.notifyLocked()
	c.mu.Unlock()

	return c.resolve(ctx, epoch)
}

// Login submits credentials, stores the returned credential and resolves the identity.
// A rejected login leaves the state untouched and returns the error; it is not retried.
// If the current credential was rejected while the login was pending, a failed
// login resets the session instead.
func (c *Controller) Login(ctx context.Context, identifier, secret string) error {
	c.mu.Lock()
	switch {
	case c.inFlight, c.state == StateResolving:
		c.mu.Unlock()
		return ErrBusy
	case c.state == StateInitializing:
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.inFlight = true
	epoch := c.epoch
	c.mu.Unlock()

	token, err := c.backend.Authenticate(ctx, identifier, secret)

	c.mu.Lock()
	if c.epoch != epoch {
		c.finishLocked()
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.failLoginLocked(ctx)
		c.mu.Unlock()
		c.logger.Info().Err(err).Msg("login rejected")
		return err
	}
	if err := c.store.Set(ctx, token); err != nil {
		c.failLoginLocked(ctx)
		c.mu.Unlock()
		return fmt.Errorf("failed to store credential: %w", err)
	}
	// The new credential replaces the one that was rejected
	c.invalidated = false
	c.state = StateResolving
	c.identity = nil
	c.notifyLocked()
	c.mu.Unlock()

	return c.resolve(ctx, epoch)
}

// resolve fetches the identity; the caller holds the in-flight slot
func (c *Controller) resolve(ctx context.Context, epoch uint64) error {
	identity, err := c.backend.FetchIdentity(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked()

	if c.epoch != epoch {
		return ErrSuperseded
	}
	if err != nil {
		// Fail closed whatever the failure kind
		c.logger.Warn().Err(err).Msg("identity resolution failed, clearing session")
		c.resetLocked(ctx)
		return fmt.Errorf("failed to resolve identity: %w", err)
	}

	c.state = StateReady
	c.identity = &identity
	c.logger.Info().Int64("user_id", identity.ID).Int64("role_id", identity.RoleID).Msg("session ready")
	c.notifyLocked()
	return nil
}

// Logout clears the credential and identity
func (c *Controller) Logout(ctx context.Context) error {
	return c.Reset(ctx)
}

// Reset tears the session down to Unauthenticated. Any login or resolution
// still in flight is discarded when it completes.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(ctx)
}

// Invalidate is called by the gateway when the backend rejects the credential.
// While a login or resolution is in flight the rejection is recorded and the
// in-flight operation decides the outcome: a successful login replaces the
// credential, a failed one resets the session.
func (c *Controller) Invalidate(ctx context.Context, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		c.invalidated = true
		c.logger.Debug().Err(cause).Msg("credential rejected during login, deferring reset")
		return
	}
	c.logger.Info().Err(cause).Str("from", c.state.String()).Msg("session invalidated")
	c.resetLocked(ctx)
}

// finishLocked releases the in-flight slot
func (c *Controller) finishLocked() {
	c.inFlight = false
	c.invalidated = false
}

// failLoginLocked ends a failed login, resetting the session if its credential
// was rejected in the meantime
func (c *Controller) failLoginLocked(ctx context.Context) {
	invalidated := c.invalidated
	c.finishLocked()
	if invalidated {
		c.logger.Info().Str("from", c.state.String()).Msg("session invalidated")
		c.resetLocked(ctx)
	}
}

func (c *Controller) resetLocked(ctx context.Context) error {
	err := c.store.Clear(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("could not clear stored credential")
		err = fmt.Errorf("failed to clear credential: %w", err)
	}
	c.state = StateUnauthenticated
	c.identity = nil
	c.epoch++
	c.notifyLocked()
	return err
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the resolved identity, if the session is ready
func (c *Controller) Identity() (models.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return models.Identity{}, false
	}
	return *c.identity, true
}

// Snapshot returns the state and identity read together
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state}
	if c.identity != nil {
		identity := *c.identity
		s.Identity = &identity
	}
	return s
}

// Subscribe returns a channel that receives the latest snapshot after every
// transition. Slow readers only ever see the newest value. Call the returned
// function to unsubscribe.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.listeners {
		select {
		case ch <- snap:
		default:
			// Replace the unread value with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
