package raspiaprs

/*------------------------------------------------------------------
 *
 * Purpose:   	Read configuration.
 *
 * Description:	Start with built in defaults, then the YAML file if
 *		there is one, then environment variables (same names
 *		the Python version used) on top.  The result is
 *		validated once and not changed afterwards.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile    = "/etc/raspiaprs.yaml"
	DefaultSleep         = 600
	DefaultStateDir      = "/tmp"
	DefaultFilter        = "m/10"
	DefaultMMDVMHostFile = "/etc/mmdvmhost"
	DefaultSensorTimeout = 2 * time.Second
	DefaultMQTTTopic     = "raspiaprs"
)

var ErrConfig = errors.New("invalid configuration")

type GPSDConfig struct {
	Enable bool   `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

type GPSSerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type SmartBeaconingConfig struct {
	Enable      bool   `yaml:"enable"`
	SlowSpeed   int    `yaml:"slow_speed"` // km/h
	FastSpeed   int    `yaml:"fast_speed"` // km/h
	SlowRate    int    `yaml:"slow_rate"`  // seconds
	FastRate    int    `yaml:"fast_rate"`  // seconds
	SlowSymbol  string `yaml:"slow_symbol"`
	MixedSymbol string `yaml:"mixed_symbol"`
	FastSymbol  string `yaml:"fast_symbol"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"` // tcp://host:port
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// Config is the whole configuration.  Build it with LoadConfig.
type Config struct {
	Call        string  `yaml:"call"`
	SSID        string  `yaml:"ssid"`
	Passcode    string  `yaml:"passcode"`
	SymbolTable string  `yaml:"symbol_table"`
	Symbol      string  `yaml:"symbol"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Altitude    float64 `yaml:"altitude"` // meters
	Comment     string  `yaml:"comment"`
	Sleep       int     `yaml:"sleep"` // seconds

	Server string `yaml:"server"`
	Port   int    `yaml:"port"`
	Filter string `yaml:"filter"`

	StateDir      string        `yaml:"state_dir"`
	MMDVMHostFile string        `yaml:"mmdvmhost_file"`
	SensorTimeout time.Duration `yaml:"sensor_timeout"`
	ThermalSensor string        `yaml:"thermal_sensor"`
	DiskPath      string        `yaml:"disk_path"`

	GPSD           GPSDConfig           `yaml:"gpsd"`
	GPSSerial      GPSSerialConfig      `yaml:"gps_serial"`
	GPSMaxAge      time.Duration        `yaml:"gps_max_age"`
	SmartBeaconing SmartBeaconingConfig `yaml:"smart_beaconing"`
	MQTT           MQTTConfig           `yaml:"mqtt"`

	MetricsListen string `yaml:"metrics_listen"`
	LogLevel      string `yaml:"log_level"`

	// Source is the file that was read, empty if none.
	Source string `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Call:          "N0CALL",
		SSID:          "0",
		SymbolTable:   "/",
		Symbol:        "n",
		Sleep:         DefaultSleep,
		Server:        DefaultServer,
		Port:          DefaultPort,
		Filter:        DefaultFilter,
		StateDir:      DefaultStateDir,
		MMDVMHostFile: DefaultMMDVMHostFile,
		SensorTimeout: DefaultSensorTimeout,
		ThermalSensor: "cpu_thermal",
		DiskPath:      "/",
		GPSD:          GPSDConfig{Host: "localhost", Port: DefaultGPSDPort},
		GPSSerial:     GPSSerialConfig{Baud: DefaultNMEABaud},
		GPSMaxAge:     DefaultGPSMaxAge,
		SmartBeaconing: SmartBeaconingConfig{
			SlowSpeed:   5,
			FastSpeed:   70,
			SlowRate:    600,
			FastRate:    60,
			SlowSymbol:  DefaultSlowSymbol.String(),
			MixedSymbol: DefaultMixedSymbol.String(),
			FastSymbol:  DefaultFastSymbol.String(),
		},
		MQTT:     MQTTConfig{ClientID: "raspiaprs", Topic: DefaultMQTTTopic},
		LogLevel: "info",
	}
}

/*------------------------------------------------------------------
 *
 * Name:        LoadConfig
 *
 * Inputs:	path	- YAML file.  Empty, or a file that doesn't
 *			  exist, means defaults only.
 *
 *		getenv	- Normally os.Getenv.
 *
 * Returns:	Validated configuration, or an error wrapping ErrConfig.
 *
 *----------------------------------------------------------------*/

func LoadConfig(path string, getenv func(string) string) (*Config, error) {
	var cfg = DefaultConfig()

	if path != "" {
		var data, err = os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
			}
			cfg.Source = path
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}

	if getenv != nil {
		if err := cfg.applyEnv(getenv); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error

	var str = func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	var integer = func(name string, dst *int) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			var n, err = strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	var float = func(name string, dst *float64) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			var f, err = strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	// Any non-empty value other than an explicit false turns it on.
	var boolean = func(name string, dst *bool) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			var b, err = strconv.ParseBool(v)
			*dst = err != nil || b
		}
	}

	str("APRS_CALL", &c.Call)
	str("APRS_SSID", &c.SSID)
	str("APRS_PASSCODE", &c.Passcode)
	str("APRS_SYMBOL_TABLE", &c.SymbolTable)
	str("APRS_SYMBOL", &c.Symbol)
	float("APRS_LATITUDE", &c.Latitude)
	float("APRS_LONGITUDE", &c.Longitude)
	float("APRS_ALTITUDE", &c.Altitude)
	str("APRS_COMMENT", &c.Comment)
	integer("SLEEP", &c.Sleep)
	str("APRSIS_SERVER", &c.Server)
	integer("APRSIS_PORT", &c.Port)
	str("APRSIS_FILTER", &c.Filter)
	str("STATE_DIR", &c.StateDir)
	boolean("GPSD_ENABLE", &c.GPSD.Enable)
	str("GPSD_HOST", &c.GPSD.Host)
	integer("GPSD_PORT", &c.GPSD.Port)
	str("GPS_SERIAL_DEVICE", &c.GPSSerial.Device)
	integer("GPS_SERIAL_BAUD", &c.GPSSerial.Baud)
	boolean("SMARTBEACONING_ENABLE", &c.SmartBeaconing.Enable)
	integer("SMARTBEACONING_SLOWSPEED", &c.SmartBeaconing.SlowSpeed)
	integer("SMARTBEACONING_FASTSPEED", &c.SmartBeaconing.FastSpeed)
	integer("SMARTBEACONING_SLOWRATE", &c.SmartBeaconing.SlowRate)
	integer("SMARTBEACONING_FASTRATE", &c.SmartBeaconing.FastRate)
	boolean("MQTT_ENABLE", &c.MQTT.Enable)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_TOPIC", &c.MQTT.Topic)
	str("METRICS_LISTEN", &c.MetricsListen)
	str("LOG_LEVEL", &c.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error

	var bad = func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	c.Call = strings.ToUpper(strings.TrimSpace(c.Call))
	if c.Call == "" {
		bad("call must not be empty")
	}
	if len(c.SymbolTable) != 1 {
		bad("symbol_table must be one character, got %q", c.SymbolTable)
	}
	if len(c.Symbol) != 1 {
		bad("symbol must be one character, got %q", c.Symbol)
	}
	if c.Passcode != "" {
		if _, err := strconv.Atoi(c.Passcode); err != nil {
			bad("passcode must be a number, got %q", c.Passcode)
		}
	}
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		bad("latitude %v out of range", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		bad("longitude %v out of range", c.Longitude)
	}
	if c.Sleep < 2 || c.Sleep > TickModulus {
		bad("sleep must be between 2 and %d seconds, got %d", TickModulus, c.Sleep)
	}
	if c.Port < 1 || c.Port > 65535 {
		bad("port %d out of range", c.Port)
	}
	if c.GPSD.Enable && (c.GPSD.Port < 1 || c.GPSD.Port > 65535) {
		bad("gpsd port %d out of range", c.GPSD.Port)
	}
	if c.GPSD.Enable && c.GPSSerial.Device != "" {
		bad("use either gpsd or gps_serial, not both")
	}
	if c.SensorTimeout <= 0 {
		c.SensorTimeout = DefaultSensorTimeout
	}

	var sb = c.SmartBeaconing
	if sb.Enable {
		if sb.SlowSpeed < 1 || sb.SlowSpeed >= sb.FastSpeed {
			bad("smart_beaconing needs 0 < slow_speed < fast_speed, got %d and %d", sb.SlowSpeed, sb.FastSpeed)
		}
		if sb.SlowRate < 2 || sb.FastRate < 2 || sb.SlowRate > TickModulus || sb.FastRate > TickModulus {
			bad("smart_beaconing rates must be between 2 and %d seconds", TickModulus)
		}
		for _, s := range []string{sb.SlowSymbol, sb.MixedSymbol, sb.FastSymbol} {
			if len(s) != 2 {
				bad("smart_beaconing symbol must be table and code, got %q", s)
			}
		}
	}

	if c.MQTT.Enable && c.MQTT.Broker == "" {
		bad("mqtt broker must be set when mqtt is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

// FullCall is the call sign with SSID, e.g. N0CALL-9.  SSID 0 is left off.
func (c *Config) FullCall() string {
	if strings.Contains(c.Call, "-") || c.SSID == "" || c.SSID == "0" {
		return c.Call
	}
	return c.Call + "-" + strings.ToUpper(c.SSID)
}

// Station builds the station identity, deriving the passcode if needed.
func (c *Config) Station() Station {
	var code, err = strconv.Atoi(c.Passcode)
	if c.Passcode == "" || err != nil {
		code = Passcode(c.Call)
	}

	return Station{
		Call:     c.FullCall(),
		Symbol:   Symbol{Table: c.SymbolTable[0], Code: c.Symbol[0]},
		Passcode: code,
	}
}

// PasscodeDerived reports whether Station had to compute the passcode.
func (c *Config) PasscodeDerived() bool {
	return c.Passcode == ""
}

func parseSymbol(s string) Symbol {
	return Symbol{Table: s[0], Code: s[1]}
}

func (c *Config) SmartBeaconingParams() SmartBeaconing {
	var sb = c.SmartBeaconing
	if !sb.Enable {
		return SmartBeaconing{}
	}

	return SmartBeaconing{
		Enabled:     true,
		SlowSpeed:   sb.SlowSpeed,
		FastSpeed:   sb.FastSpeed,
		SlowRate:    sb.SlowRate,
		FastRate:    sb.FastRate,
		SlowSymbol:  parseSymbol(sb.SlowSymbol),
		MixedSymbol: parseSymbol(sb.MixedSymbol),
		FastSymbol:  parseSymbol(sb.FastSymbol),
	}
}

// FixedPosition is the configured location.
func (c *Config) FixedPosition() PositionSample {
	return PositionSample{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Altitude:  c.Altitude,
	}
}
