// Package siwf is the client half of Sign In With Farcaster: a session
// controller that asks a host for a signed message and turns it into a
// signed-in user.
package siwf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/ports"
)

// ErrSignInSuperseded is returned when SignOut lands while a sign-in is waiting on the host
var ErrSignInSuperseded = errors.New("sign-in superseded by sign-out")

// Snapshot is a consistent view of a controller
type Snapshot struct {
	State       core.SessionState
	User        *core.AuthUser
	LastError   error
	HostChecked bool
	InHost      bool
	SigningIn   bool
}

// Option configures a Controller
type Option func(*Controller)

// WithNonceLength sets the length of generated nonces
func WithNonceLength(length int) Option {
	return func(c *Controller) {
		c.nonceLength = length
	}
}

// WithSignInOptions sets the options passed to the host on every request
func WithSignInOptions(opts core.SignInOptions) Option {
	return func(c *Controller) {
		c.signInOpts = opts
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller drives one client session. It starts in core.StateLoading,
// moves to core.StateSignedOut once the host has been detected and to
// core.StateSignedIn after a successful SignIn.
type Controller struct {
	host        ports.Host
	nonceLength int
	signInOpts  core.SignInOptions
	logger      *slog.Logger

	mu       sync.Mutex
	state    core.SessionState
	user     *core.AuthUser
	lastErr  error
	inHost   *bool
	inFlight bool
	attempt  uint64
	cancel   context.CancelFunc
	closed   bool
}

// NewController creates a controller for host
func NewController(host ports.Host, opts ...Option) *Controller {
	c := &Controller{
		host:        host,
		nonceLength: core.DefaultNonceLength,
		signInOpts:  core.SignInOptions{AcceptAuthAddress: true},
		logger:      slog.Default(),
		state:       core.StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init checks whether the controller runs inside a compatible host.
// The answer is cached for the lifetime of the controller.
func (c *Controller) Init(ctx context.Context) bool {
	return c.detect(ctx)
}

func (c *Controller) detect(ctx context.Context) bool {
	c.mu.Lock()
	if c.inHost != nil {
		ok := *c.inHost
		c.mu.Unlock()
		return ok
	}
	c.mu.Unlock()

	ok, err := c.host.IsInHost(ctx)
	if err != nil {
		c.logger.Warn("host detection failed", "error", err)
		ok = false
		if ctx.Err() != nil {
			// Not an answer from the host; let the next call ask again.
			return false
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inHost == nil {
		c.inHost = &ok
		if c.state == core.StateLoading {
			c.state = core.StateSignedOut
		}
	}
	return *c.inHost
}

// SignIn runs one sign-in attempt. On failure the session is left signed
// out and the error is also kept as the last error.
// A second call while one is waiting on the host fails with core.ErrSignInInProgress.
func (c *Controller) SignIn(ctx context.Context) (*core.AuthUser, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, core.ErrSessionClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, core.ErrSignInInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	c.inFlight = true
	c.attempt++
	attempt := c.attempt
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	user, err := c.signIn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("dropping sign-in result after close")
		return nil, core.ErrSessionClosed
	}
	if c.attempt != attempt {
		c.logger.Debug("dropping superseded sign-in result")
		return nil, ErrSignInSuperseded
	}

	c.inFlight = false
	c.cancel = nil

	if err != nil {
		c.state = core.StateSignedOut
		c.user = nil
		c.lastErr = err
		return nil, err
	}

	c.state = core.StateSignedIn
	c.user = user
	c.lastErr = nil
	c.logger.Info("signed in", "fid", user.FID)

	out := *user
	return &out, nil
}

func (c *Controller) signIn(ctx context.Context) (*core.AuthUser, error) {
	if !c.detect(ctx) {
		return nil, core.ErrHostUnavailable
	}

	nonce, err := core.GenerateNonce(c.nonceLength)
	if err != nil {
		return nil, err
	}

	res, err := c.host.RequestSignedMessage(ctx, nonce, c.signInOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrHostRejected, err)
	}

	if res.Message == "" || res.Signature == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedResponse, core.ErrHostRejected)
	}

	id := core.ParseSignInMessage(res.Message)
	if id.FID == nil {
		return nil, core.ErrIdentityExtractionFailed
	}

	return &core.AuthUser{
		FID:       *id.FID,
		Address:   id.Address,
		Signature: res.Signature,
		Message:   res.Message,
	}, nil
}

// SignOut clears the user and the last error. Any attempt still waiting on
// the host is cancelled and its result dropped.
func (c *Controller) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		c.attempt++
		c.inFlight = false
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}

	c.user = nil
	c.lastErr = nil
	c.state = core.StateSignedOut
}

// Close tears the session down. In-flight attempts are cancelled and
// later results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = false
}

// State returns the current session state
func (c *Controller) State() core.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns a copy of the signed-in user, or nil
func (c *Controller) User() *core.AuthUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyUser()
}

// LastError returns the error of the most recent failed attempt
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// InHost reports the cached host detection result. ok is false until
// detection has completed.
func (c *Controller) InHost() (inHost, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inHost == nil {
		return false, false
	}
	return *c.inHost, true
}

// Snapshot returns the whole session state at once
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:     c.state,
		User:      c.copyUser(),
		LastError: c.lastErr,
		SigningIn: c.inFlight,
	}
	if c.inHost != nil {
		s.HostChecked = true
		s.InHost = *c.inHost
	}
	return s
}

func (c *Controller) copyUser() *core.AuthUser {
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}
