package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Transmit position, telemetry and status on a schedule.
 *
 * Description:	The scheduler wakes once a second.  Each wake-up
 *		advances the persisted tick counter and then, in order:
 *
 *		1. Picks the position rate, from SmartBeaconing if
 *		   configured.
 *		2. Sends a position report when tick % rate == 1.
 *		3. Sends the telemetry header when tick % 3000 == 1, or
 *		   right away if the set of channels changed.
 *		4. Sends telemetry when tick % sleep == 1.
 *
 *		A status report follows every position and telemetry.
 *		The 1 tick offset keeps everything away from tick 0.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

const DefaultHeaderEvery = 3000

// Band is which SmartBeaconing speed range we are in.
type Band int

const (
	BandStationary Band = iota
	BandSlow
	BandMixed
	BandFast
)

func (b Band) String() string {
	switch b {
	case BandStationary:
		return "stationary"
	case BandSlow:
		return "slow"
	case BandMixed:
		return "mixed"
	case BandFast:
		return "fast"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

/*
 * SmartBeaconing parameters.  Speeds are km/h, rates are seconds.
 *
 *	v == 0				base rate, configured symbol
 *	0 < v <= SlowSpeed		SlowRate, SlowSymbol
 *	SlowSpeed < v <= FastSpeed	random in [min, max] of the two rates, MixedSymbol
 *	v > FastSpeed			FastRate, FastSymbol
 */

type SmartBeaconing struct {
	Enabled     bool
	SlowSpeed   int
	FastSpeed   int
	SlowRate    int
	FastRate    int
	SlowSymbol  Symbol
	MixedSymbol Symbol
	FastSymbol  Symbol
}

var (
	DefaultSlowSymbol  = Symbol{Table: '/', Code: '('}
	DefaultMixedSymbol = Symbol{Table: '/', Code: '>'}
	DefaultFastSymbol  = Symbol{Table: '\\', Code: '>'}
)

func (sb SmartBeaconing) Band(kmh int) Band {
	switch {
	case kmh <= 0:
		return BandStationary
	case kmh <= sb.SlowSpeed:
		return BandSlow
	case kmh <= sb.FastSpeed:
		return BandMixed
	default:
		return BandFast
	}
}

// Rate gives seconds between position reports for a band.  The mixed band
// draws a new value every call so that stations don't stay in lock step.
func (sb SmartBeaconing) Rate(band Band, baseRate int, rnd *rand.Rand) int {
	switch band {
	case BandSlow:
		return sb.SlowRate
	case BandMixed:
		var lo, hi = min(sb.SlowRate, sb.FastRate), max(sb.SlowRate, sb.FastRate)
		return lo + rnd.IntN(hi-lo+1)
	case BandFast:
		return sb.FastRate
	default:
		return baseRate
	}
}

func (sb SmartBeaconing) Symbol(band Band, stationary Symbol) Symbol {
	switch band {
	case BandSlow:
		return sb.SlowSymbol
	case BandMixed:
		return sb.MixedSymbol
	case BandFast:
		return sb.FastSymbol
	default:
		return stationary
	}
}

// Sender is the APRS-IS session as seen by the scheduler.
type Sender interface {
	Send(line string) error
}

// PositionSource supplies the current fix without blocking.  ok is false
// when there is nothing usable.
type PositionSource interface {
	Position(now time.Time) (PositionSample, bool)
}

// SatelliteSource supplies the latest satellite counts.
type SatelliteSource interface {
	Satellites(now time.Time) (SkyView, bool)
}

// TelemetrySource supplies host readings.  It must return within a
// bounded time.
type TelemetrySource interface {
	Telemetry(ctx context.Context) TelemetrySample
}

// UptimeSource supplies system uptime for the status text.
type UptimeSource interface {
	Uptime(ctx context.Context) time.Duration
}

type PacketKind string

const (
	KindPosition  PacketKind = "position"
	KindTelemetry PacketKind = "telemetry"
	KindHeader    PacketKind = "header"
	KindStatus    PacketKind = "status"
)

// Transmission is one line handed to the server, and how that went.
type Transmission struct {
	Kind PacketKind
	Line string
	Time time.Time
	Err  error
}

// TransmitObserver is told about every line sent.  Must not block.
type TransmitObserver interface {
	ObserveTransmit(Transmission)
}

// SchedulerOptions are fixed for the life of the scheduler.
type SchedulerOptions struct {
	Station        Station
	BaseRate       int // seconds between position reports when not using SmartBeaconing
	TelemetryEvery int // seconds between telemetry reports
	HeaderEvery    int
	SmartBeaconing SmartBeaconing
	Comment        string
	Fallback       PositionSample // used when the position source has nothing
}

// Scheduler is the beacon loop.  It is not safe for concurrent use;
// exactly one goroutine calls Tick or Run.
type Scheduler struct {
	opts      SchedulerOptions
	state     *BeaconState
	sender    Sender
	position  PositionSource
	sky       SatelliteSource
	telemetry TelemetrySource
	uptime    UptimeSource
	observers []TransmitObserver
	metrics   *Metrics
	logger    *log.Logger
	rnd       *rand.Rand
	now       func() time.Time

	rate      int
	headerKey string
}

// SchedulerDeps are the collaborators.  Position, Sky, Uptime, Metrics and
// Observers are optional.
type SchedulerDeps struct {
	State     *BeaconState
	Sender    Sender
	Position  PositionSource
	Sky       SatelliteSource
	Telemetry TelemetrySource
	Uptime    UptimeSource
	Observers []TransmitObserver
	Metrics   *Metrics
	Logger    *log.Logger
	Rand      *rand.Rand
	Now       func() time.Time
}

func NewScheduler(opts SchedulerOptions, deps SchedulerDeps) *Scheduler {
	if opts.HeaderEvery <= 0 {
		opts.HeaderEvery = DefaultHeaderEvery
	}
	if opts.TelemetryEvery <= 0 {
		opts.TelemetryEvery = opts.BaseRate
	}

	var s = &Scheduler{
		opts:      opts,
		state:     deps.State,
		sender:    deps.Sender,
		position:  deps.Position,
		sky:       deps.Sky,
		telemetry: deps.Telemetry,
		uptime:    deps.Uptime,
		observers: deps.Observers,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		rnd:       deps.Rand,
		now:       deps.Now,
		rate:      opts.BaseRate,
	}

	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5ca1ab1e))
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Rate is the position rate chosen on the most recent tick.
func (s *Scheduler) Rate() int {
	return s.rate
}

// Run ticks once a second until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var ticker = time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one iteration of the beacon loop.
func (s *Scheduler) Tick(ctx context.Context) {
	var tick = s.state.Tick.Next()
	var now = s.now()

	var pos = s.currentPosition(now)
	var sym = s.selectRate(pos)

	if tick%s.rate == 1 {
		s.sendPosition(ctx, now, pos, sym)
	}

	var layout = DefaultLayout(s.hasSatellites(now))
	if tick%s.opts.HeaderEvery == 1 || layout.Key() != s.headerKey {
		s.sendHeader(now, layout)
	}

	if tick%s.opts.TelemetryEvery == 1 {
		s.sendTelemetry(ctx, now, layout)
	}
}

func (s *Scheduler) currentPosition(now time.Time) PositionSample {
	if s.position != nil {
		if pos, ok := s.position.Position(now); ok {
			if pos.Time.IsZero() {
				pos.Time = now
			}
			return pos
		}
	}

	var pos = s.opts.Fallback
	pos.Time = now
	return pos
}

// selectRate updates s.rate for this tick and returns the symbol to show.
func (s *Scheduler) selectRate(pos PositionSample) Symbol {
	var sb = s.opts.SmartBeaconing
	if !sb.Enabled {
		s.rate = s.opts.BaseRate
		s.metrics.SetRate(s.rate)
		return s.opts.Station.Symbol
	}

	var kmh = SpeedKMH(pos.Speed)
	var band = sb.Band(kmh)

	s.rate = sb.Rate(band, s.opts.BaseRate, s.rnd)
	s.metrics.SetRate(s.rate)

	s.logger.Debug("SmartBeaconing", "band", band, "speed_kmh", kmh, "rate", s.rate)

	return sb.Symbol(band, s.opts.Station.Symbol)
}

func (s *Scheduler) hasSatellites(now time.Time) bool {
	if s.sky == nil {
		return false
	}
	var _, ok = s.sky.Satellites(now)
	return ok
}

func (s *Scheduler) sendPosition(ctx context.Context, now time.Time, pos PositionSample, sym Symbol) {
	var st = s.opts.Station.WithSymbol(sym)
	s.transmit(KindPosition, now, BuildPositionPacket(st, pos, s.opts.Comment))
	s.sendStatus(ctx, now, pos)
}

func (s *Scheduler) sendHeader(now time.Time, layout TelemetryLayout) {
	for _, line := range layout.Header(s.opts.Station) {
		s.transmit(KindHeader, now, line)
	}
	s.headerKey = layout.Key()
}

func (s *Scheduler) sendTelemetry(ctx context.Context, now time.Time, layout TelemetryLayout) {
	var sample = s.telemetry.Telemetry(ctx)

	if s.sky != nil {
		if view, ok := s.sky.Satellites(now); ok {
			sample.SatsUsed = view.Used
			sample.SatsVisible = view.Visible
		}
	}

	var seq = s.state.Sequence.Next()
	s.metrics.SetSequence(seq)

	s.transmit(KindTelemetry, now, layout.Packet(s.opts.Station, seq, sample))
	s.sendStatus(ctx, now, s.currentPosition(now))
}

func (s *Scheduler) sendStatus(ctx context.Context, now time.Time, pos PositionSample) {
	var up time.Duration
	if s.uptime != nil {
		up = s.uptime.Uptime(ctx)
	}

	var text = StatusText(now, pos, up)

	if s.sky != nil {
		var view, _ = s.sky.Satellites(now)
		text += fmt.Sprintf(", gps: %d/%d", view.Used, view.Visible)
	}

	s.transmit(KindStatus, now, BuildStatusPacket(s.opts.Station, text))
}

func (s *Scheduler) transmit(kind PacketKind, now time.Time, line string) {
	var err = s.sender.Send(line)
	if err != nil {
		s.logger.Warn("Send failed", "kind", kind, "err", err)
	} else {
		s.logger.Info(line)
	}

	var tx = Transmission{Kind: kind, Line: line, Time: now, Err: err}
	for _, o := range s.observers {
		o.ObserveTransmit(tx)
	}
}

// StatusText is DDHHMMz[GRID] up: <uptime>
func StatusText(now time.Time, pos PositionSample, uptime time.Duration) string {
	return fmt.Sprintf("%s[%s] up: %s", ZuluTimestamp(now), GridSquare(pos.Latitude, pos.Longitude, 6), NaturalDuration(uptime))
}

var uptimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: 2 * time.Minute, Format: "a minute", DivBy: 1},
	{D: time.Hour, Format: "%d minutes", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "an hour", DivBy: 1},
	{D: humanize.Day, Format: "%d hours", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "a day", DivBy: 1},
	{D: humanize.Month, Format: "%d days", DivBy: humanize.Day},
	{D: 2 * humanize.Month, Format: "a month", DivBy: 1},
	{D: humanize.Year, Format: "%d months", DivBy: humanize.Month},
	{D: 2 * humanize.Year, Format: "a year", DivBy: 1},
	{D: math.MaxInt64, Format: "%d years", DivBy: humanize.Year},
}

// NaturalDuration renders a coarse, human friendly duration with minutes
// as the smallest unit, e.g. "5 minutes", "an hour", "3 days".
func NaturalDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	var start = time.Unix(0, 0)
	return humanize.CustomRelTime(start, start.Add(d), "", "", uptimeMagnitudes)
}
