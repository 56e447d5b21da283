package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Session with an APRS-IS server.
 *
 * Description:	Connect, log in, then write one packet per line,
 *		each terminated by CR LF.
 *
 *		Connecting is retried a limited number of times with a
 *		fixed wait in between.  When that is exhausted we give
 *		up with ErrNoHost; a beacon that can't reach the network
 *		has nothing else useful to do.
 *
 *		Individual sends are never retried.  The next scheduled
 *		transmission is the retry.
 *
 * References:	https://www.aprs-is.net/Connecting.aspx
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

const (
	DefaultServer       = "rotate.aprs2.net"
	DefaultPort         = 14580
	DefaultConnectTries = 5
	DefaultConnectWait  = 20 * time.Second
	IGATE_MAX_MSG       = 512 // Including CR LF.
	igateWriteTimeout   = 10 * time.Second
	igateDialTimeout    = 15 * time.Second
	softwareName        = "RasPiAPRS"
	ExitNoHost          = 68 // EX_NOHOST from sysexits.h
	ExitConfig          = 78 // EX_CONFIG
)

var (
	ErrNoHost       = errors.New("could not connect to APRS-IS server")
	ErrNotConnected = errors.New("not connected to APRS-IS server")
	ErrSend         = errors.New("error sending to APRS-IS server")
)

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// RetryPolicy bounds the connect phase.
type RetryPolicy struct {
	Attempts int
	Wait     time.Duration
}

type connectStep int

const (
	stepDial connectStep = iota
	stepWait
	stepConnected
	stepExhausted
)

// connectState is the connect phase as an explicit state machine, so the
// policy can be tested without a network.
type connectState struct {
	policy  RetryPolicy
	attempt int
	step    connectStep
}

func newConnectState(policy RetryPolicy) *connectState {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &connectState{policy: policy, step: stepDial}
}

// advance records the outcome of a dial attempt, or the end of a wait.
func (cs *connectState) advance(dialErr error) connectStep {
	switch cs.step {
	case stepDial:
		cs.attempt++
		switch {
		case dialErr == nil:
			cs.step = stepConnected
		case cs.attempt >= cs.policy.Attempts:
			cs.step = stepExhausted
		default:
			cs.step = stepWait
		}
	case stepWait:
		cs.step = stepDial
	}
	return cs.step
}

// IGateConfig is everything needed to reach the server.
type IGateConfig struct {
	Server  string
	Port    int
	Station Station
	Filter  string
	Version string
	Retry   RetryPolicy
}

// IGate owns the one connection to the server.
type IGate struct {
	cfg     IGateConfig
	dialer  Dialer
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *log.Logger
	metrics *Metrics

	mu   sync.Mutex
	conn net.Conn
}

// IGateOption adjusts an IGate, mostly for testing.
type IGateOption func(*IGate)

func WithDialer(d Dialer) IGateOption {
	return func(ig *IGate) { ig.dialer = d }
}

func WithSleep(f func(ctx context.Context, d time.Duration) error) IGateOption {
	return func(ig *IGate) { ig.sleep = f }
}

func WithMetrics(m *Metrics) IGateOption {
	return func(ig *IGate) { ig.metrics = m }
}

func NewIGate(cfg IGateConfig, logger *log.Logger, opts ...IGateOption) *IGate {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = RetryPolicy{Attempts: DefaultConnectTries, Wait: DefaultConnectWait}
	}

	var ig = &IGate{
		cfg:    cfg,
		dialer: &net.Dialer{Timeout: igateDialTimeout},
		sleep:  sleepContext,
		logger: logger,
	}

	for _, o := range opts {
		o(ig)
	}

	return ig
}

func sleepContext(ctx context.Context, d time.Duration) error {
	var t = time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (ig *IGate) addr() string {
	return net.JoinHostPort(ig.cfg.Server, strconv.Itoa(ig.cfg.Port))
}

/*-------------------------------------------------------------------
 *
 * Name:        Connect
 *
 * Purpose:     Establish the session, retrying per the policy.
 *
 * Returns:	nil once logged in.
 *		ErrNoHost after the last attempt fails.
 *		ctx.Err() if cancelled while waiting.
 *
 *--------------------------------------------------------------------*/

func (ig *IGate) Connect(ctx context.Context) error {
	ig.logger.Info("Connecting to APRS-IS server", "server", ig.addr(), "call", ig.cfg.Station.Call)

	var cs = newConnectState(ig.cfg.Retry)

	for {
		var err = ig.dialOnce(ctx)

		switch cs.advance(err) {
		case stepConnected:
			ig.logger.Info("Connected to APRS-IS server", "server", ig.addr(), "call", ig.cfg.Station.Call)
			return nil

		case stepExhausted:
			ig.logger.Error("Connection error, giving up", "server", ig.addr(), "attempts", cs.attempt)
			return fmt.Errorf("%w %s after %d attempts: %w", ErrNoHost, ig.addr(), cs.attempt, err)

		case stepWait:
			ig.logger.Warn("APRS-IS connection error", "attempt", cs.attempt, "err", err, "retry_in", ig.cfg.Retry.Wait)
			if err := ig.sleep(ctx, ig.cfg.Retry.Wait); err != nil {
				return err
			}
			cs.advance(nil)
		}
	}
}

// LoginLine is the first thing sent after connecting.
func (ig *IGate) LoginLine() string {
	var version = ig.cfg.Version
	if version == "" {
		version = "dev"
	}

	var line = fmt.Sprintf("user %s pass %d vers %s %s", ig.cfg.Station.Call, ig.cfg.Station.Passcode, softwareName, version)
	if ig.cfg.Filter != "" {
		line += " filter " + ig.cfg.Filter
	}
	return line
}

// dialOnce makes one connection and logs in.
func (ig *IGate) dialOnce(ctx context.Context) error {
	ig.metrics.IncConnectAttempts()

	var conn, err = ig.dialer.DialContext(ctx, "tcp", ig.addr())
	if err != nil {
		return err
	}

	if err = writeLine(conn, ig.LoginLine()); err != nil {
		conn.Close()
		return err
	}

	ig.mu.Lock()
	if ig.conn != nil {
		ig.conn.Close()
	}
	ig.conn = conn
	ig.mu.Unlock()

	go ig.drain(conn)

	return nil
}

// drain reads whatever the server says (greeting, logresp, keepalive
// comments) so it never backs up, and notices when the server hangs up.
func (ig *IGate) drain(conn net.Conn) {
	var scanner = bufio.NewScanner(conn)
	for scanner.Scan() {
		var line = scanner.Text()
		if strings.HasPrefix(line, "# logresp") && strings.Contains(line, "unverified") {
			ig.logger.Warn("APRS-IS login not verified, check passcode", "response", line)
		} else {
			ig.logger.Debug("APRS-IS", "line", line)
		}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.conn == conn {
		ig.logger.Warn("APRS-IS server closed the connection", "err", scanner.Err())
		ig.conn.Close()
		ig.conn = nil
	}
}

func writeLine(w io.Writer, line string) error {
	if c, ok := w.(net.Conn); ok {
		c.SetWriteDeadline(time.Now().Add(igateWriteTimeout)) //nolint:errcheck
	}
	var _, err = io.WriteString(w, line+"\r\n")
	return err
}

/*-------------------------------------------------------------------
 *
 * Name:        Send
 *
 * Purpose:     Transmit one packet line.
 *
 * Description:	If the session was lost, make one immediate attempt
 *		to get it back.  No waiting, no retry loop.
 *		On a write error the connection is closed so the
 *		next Send starts clean.
 *
 *--------------------------------------------------------------------*/

func (ig *IGate) Send(line string) error {
	line = truncateLine(line, IGATE_MAX_MSG-2)

	ig.mu.Lock()
	var conn = ig.conn
	ig.mu.Unlock()

	if conn == nil {
		if err := ig.dialOnce(context.Background()); err != nil {
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		ig.logger.Info("Reconnected to APRS-IS server", "server", ig.addr())

		ig.mu.Lock()
		conn = ig.conn
		ig.mu.Unlock()

		if conn == nil {
			return ErrNotConnected
		}
	}

	if err := writeLine(conn, line); err != nil {
		ig.mu.Lock()
		if ig.conn == conn {
			ig.conn.Close()
			ig.conn = nil
		}
		ig.mu.Unlock()

		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	return nil
}

// truncateLine cuts line to at most limit bytes without splitting a
// multi-byte character.
func truncateLine(line string, limit int) string {
	if len(line) <= limit {
		return line
	}

	var n = limit
	for n > 0 && !utf8.RuneStart(line[n]) {
		n--
	}

	return line[:n]
}

// Close ends the session.
func (ig *IGate) Close() error {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.conn == nil {
		return nil
	}

	var err = ig.conn.Close()
	ig.conn = nil
	return err
}

// ExitCode maps an error from the beacon to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, ErrNoHost):
		return ExitNoHost
	case errors.Is(err, ErrConfig):
		return ExitConfig
	default:
		return 1
	}
}
