package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the RasPiAPRS beacon.
 *
 * Description:	Read the configuration, connect to APRS-IS, then send
 *		position, telemetry and status reports until interrupted.
 *
 *		Exit status follows sysexits.h:
 *
 *			0	Interrupted, or nothing to do.
 *			68	EX_NOHOST, APRS-IS server unreachable.
 *			78	EX_CONFIG, bad configuration.
 *			1	Anything else.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

func RasPiAPRSMain() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}

// runMain is RasPiAPRSMain without the os.Exit, so it can be tested.
func runMain(args []string, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("raspiaprs", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var configFile = flags.StringP("config-file", "c", DefaultConfigFile, "Configuration file name.")
	var logDir = flags.StringP("log-dir", "l", "", "Directory name for daily transmit log files.  Use \".\" for current working directory.")
	var logFile = flags.StringP("log-file", "L", "", "File name for transmit log.")
	var logLevel = flags.String("log-level", "", "Log level: debug, info, warn, error.  Overrides the configuration file.")
	var showPosition = flags.Bool("show-position", false, "Print the configured position in several formats and exit.")
	var version = flags.BoolP("version", "v", false, "Print version and exit.")
	var help = flags.BoolP("help", "h", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "raspiaprs - APRS-IS position and telemetry beacon\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage: raspiaprs [OPTIONS]\n")
		fmt.Fprintf(stderr, "\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return ExitConfig
	}

	if *help {
		flags.Usage()
		return 0
	}

	if *version {
		printVersion(stdout, *logLevel == "debug")
		return 0
	}

	if *logDir != "" && *logFile != "" {
		fmt.Fprintf(stderr, "Only one of -l and -L can be used.\n")
		return ExitConfig
	}

	var cfg, err = LoadConfig(*configFile, os.Getenv)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return ExitCode(err)
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	var logger, logErr = NewLogger(stderr, cfg.LogLevel)
	if logErr != nil {
		fmt.Fprintf(stderr, "%s\n", logErr)
		return ExitCode(logErr)
	}

	if *showPosition {
		fmt.Fprint(stdout, DescribePosition(cfg.Latitude, cfg.Longitude))
		return 0
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = Run(ctx, cfg, RunOptions{LogDir: *logDir, LogFile: *logFile, Logger: logger})

	switch {
	case err == nil || errors.Is(err, context.Canceled):
		logger.Info("Exiting")
	case errors.Is(err, ErrNoHost):
		logger.Error("No APRS-IS server, exiting", "err", err)
	default:
		logger.Error("Exiting", "err", err)
	}

	return ExitCode(err)
}

// RunOptions are the parts of a run that don't come from Config.
type RunOptions struct {
	LogDir  string // daily transmit logs go here
	LogFile string // or all in one file

	Logger *log.Logger

	// Replaceable for testing.
	Dialer  Dialer
	Sleep   func(ctx context.Context, d time.Duration) error
	Collect func(ctx context.Context) TelemetrySample
	Now     func() time.Time
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Connect and beacon until ctx is done.
 *
 * Returns:	ErrNoHost (wrapped) if the server can't be reached.
 *		Nothing is sent in that case.
 *		Otherwise ctx.Err() once interrupted.
 *
 *--------------------------------------------------------------------*/

func Run(ctx context.Context, cfg *Config, opts RunOptions) error {
	var logger = opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var station = cfg.Station()
	if cfg.PasscodeDerived() {
		logger.Info("APRS-IS passcode derived from call sign", "call", station.Call, "passcode", station.Passcode)
	}
	if cfg.Source != "" {
		logger.Debug("Configuration loaded", "file", cfg.Source)
	}

	var state = OpenBeaconState(cfg.StateDir, logger)

	var observers []TransmitObserver

	var metrics *Metrics
	if cfg.MetricsListen != "" {
		metrics = NewMetrics()
		observers = append(observers, metrics)

		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsListen, logger); err != nil {
				logger.Error("Metrics server stopped", "addr", cfg.MetricsListen, "err", err)
			}
		}()
	}

	var igOpts = []IGateOption{WithMetrics(metrics)}
	if opts.Dialer != nil {
		igOpts = append(igOpts, WithDialer(opts.Dialer))
	}
	if opts.Sleep != nil {
		igOpts = append(igOpts, WithSleep(opts.Sleep))
	}

	var ig = NewIGate(IGateConfig{
		Server:  cfg.Server,
		Port:    cfg.Port,
		Station: station,
		Filter:  cfg.Filter,
		Version: Version(),
	}, logger, igOpts...)

	if err := ig.Connect(ctx); err != nil {
		return err
	}
	defer ig.Close()

	var sensors = &HostSensors{ThermalSensor: cfg.ThermalSensor, DiskPath: cfg.DiskPath, Logger: logger}

	var sampler = &BoundedSampler{Collect: sensors.Collect, Timeout: cfg.SensorTimeout, Logger: logger}
	if opts.Collect != nil {
		sampler.Collect = opts.Collect
	}

	var deps = SchedulerDeps{
		State:     state,
		Sender:    ig,
		Telemetry: sampler,
		Uptime:    sensors,
		Metrics:   metrics,
		Logger:    logger,
		Now:       opts.Now,
	}

	switch {
	case cfg.GPSD.Enable:
		var gpsd = NewGPSDProvider(cfg.GPSD.Host, cfg.GPSD.Port, cfg.GPSMaxAge, logger)
		go gpsd.Run(ctx) //nolint:errcheck
		deps.Position = gpsd
		deps.Sky = gpsd

	case cfg.GPSSerial.Device != "":
		var nmea = NewNMEAProvider(cfg.GPSSerial.Device, cfg.GPSSerial.Baud, cfg.GPSMaxAge, logger)
		go nmea.Run(ctx) //nolint:errcheck
		deps.Position = nmea
		deps.Sky = nmea
	}

	if opts.LogDir != "" || opts.LogFile != "" {
		var tlog, err = openTransmitLogFromOptions(opts, logger)
		if err != nil {
			return err
		}
		defer tlog.Close()
		observers = append(observers, tlog)
	}

	if cfg.MQTT.Enable {
		var notifier = NewMQTTNotifier(cfg.MQTT, station.Call, logger)
		defer notifier.Close()
		observers = append(observers, notifier)
	}

	deps.Observers = observers

	var comment = positionCommentFor(ctx, cfg, sensors, logger)

	var sched = NewScheduler(SchedulerOptions{
		Station:        station,
		BaseRate:       cfg.Sleep,
		SmartBeaconing: cfg.SmartBeaconingParams(),
		Comment:        comment,
		Fallback:       cfg.FixedPosition(),
	}, deps)

	logger.Info("Beaconing", "call", station.Call, "rate", cfg.Sleep, "smart_beaconing", cfg.SmartBeaconing.Enable)

	return sched.Run(ctx)
}

func openTransmitLogFromOptions(opts RunOptions, logger *log.Logger) (*TransmitLog, error) {
	if opts.LogDir != "" {
		return OpenTransmitLog(true, opts.LogDir, logger)
	}
	return OpenTransmitLog(false, opts.LogFile, logger)
}

// The position comment is fixed for the life of the process.
func positionCommentFor(ctx context.Context, cfg *Config, sensors *HostSensors, logger *log.Logger) string {
	var mmdvm string
	if cfg.MMDVMHostFile != "" {
		var info, err = ReadMMDVMInfo(cfg.MMDVMHostFile)
		if err == nil {
			mmdvm = info.String()
		} else {
			logger.Debug("No MMDVMHost configuration", "file", cfg.MMDVMHostFile, "err", err)
		}
	}

	return PositionComment(mmdvm, cfg.Comment, sensors.OSInfo(ctx))
}
