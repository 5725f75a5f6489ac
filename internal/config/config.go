// Package config loads the service configuration from configs/config.yml,
// REFLOW_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SimulatorPath as device.path selects the built-in oven simulator.
const SimulatorPath = "sim"

type Config struct {
	Port    string        `mapstructure:"port"`
	DB      DBConfig      `mapstructure:"db"`
	Log     LogConfig     `mapstructure:"log"`
	Device  DeviceConfig  `mapstructure:"device"`
	Control ControlConfig `mapstructure:"control"`
	Profile ProfileConfig `mapstructure:"profile"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DeviceConfig struct {
	Path        string        `mapstructure:"path"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Simulated reports whether the simulator replaces the serial port.
func (d DeviceConfig) Simulated() bool {
	return strings.EqualFold(strings.TrimSpace(d.Path), SimulatorPath)
}

type ControlConfig struct {
	LagTime        time.Duration `mapstructure:"lag_time"`
	VelocityWindow time.Duration `mapstructure:"velocity_window"`
	TrendWindow    time.Duration `mapstructure:"trend_window"`
	Tick           time.Duration `mapstructure:"tick"`
	CooldownTarget float64       `mapstructure:"cooldown_target"`
	OpenDoorDelta  float64       `mapstructure:"open_door_delta"`
}

type ProfileConfig struct {
	Step      time.Duration   `mapstructure:"step"`
	Default   string          `mapstructure:"default"`
	Autostart bool            `mapstructure:"autostart"`
	Custom    []CustomProfile `mapstructure:"custom"`
}

// CustomProfile declares an extra profile. A list keeps the name's case,
// which viper would fold if it were a map key.
type CustomProfile struct {
	Name      string    `mapstructure:"name"`
	Setpoints []float64 `mapstructure:"setpoints"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

var ErrInvalid = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "reflow.db")
	v.SetDefault("log.level", "info")

	v.SetDefault("device.path", "/dev/ttyACM0")
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.read_timeout", 2*time.Second)

	v.SetDefault("control.lag_time", 25*time.Second)
	v.SetDefault("control.velocity_window", 3*time.Second)
	v.SetDefault("control.trend_window", 10*time.Second)
	v.SetDefault("control.tick", 500*time.Millisecond)
	v.SetDefault("control.cooldown_target", 35.0)
	v.SetDefault("control.open_door_delta", 50.0)

	v.SetDefault("profile.step", 15*time.Second)
	v.SetDefault("profile.default", "Sn42Bi57Ag1")
	v.SetDefault("profile.autostart", false)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
}

// Flags declares the command-line overrides understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to the config file (default configs/config.yml)")
	fs.String("port", "", "HTTP listen port")
	fs.String("device", "", `serial device path, or "sim" for the simulator`)
	fs.String("profile", "", "profile to run on autostart")
	fs.Bool("autostart", false, "start the default profile at boot")
	fs.String("log-level", "", "debug|info|warn|error")
	return fs
}

var flagKeys = map[string]string{
	"port":      "port",
	"device":    "device.path",
	"profile":   "profile.default",
	"autostart": "profile.autostart",
	"log-level": "log.level",
}

// Load parses args against Flags and returns the merged configuration. A
// missing config file is not an error; defaults apply.
func Load(args []string) (*Config, error) {
	fs := Flags("reflow")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Control.LagTime <= 0:
		return fmt.Errorf("%w: control.lag_time must be positive", ErrInvalid)
	case c.Control.VelocityWindow <= 0:
		return fmt.Errorf("%w: control.velocity_window must be positive", ErrInvalid)
	case c.Control.Tick <= 0:
		return fmt.Errorf("%w: control.tick must be positive", ErrInvalid)
	case c.Profile.Step <= 0:
		return fmt.Errorf("%w: profile.step must be positive", ErrInvalid)
	case c.Device.BaudRate <= 0:
		return fmt.Errorf("%w: device.baud_rate must be positive", ErrInvalid)
	case c.Auth.TokenTTL <= 0:
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalid)
	}
	for i, p := range c.Profile.Custom {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: profile.custom[%d] has no name", ErrInvalid, i)
		}
	}
	return nil
}
