// Caller-side configuration for the MQ131 driver: sensor wiring, ambient
// conditions and persisted calibration results. The driver itself never
// touches the filesystem; programs load a Config at startup, hand the values
// to the driver and save the file again after calibrating.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/devices/v3/ads1x15"

	"github.com/rubiojr/go-mq131/mq131"
)

type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Environment EnvironmentConfig `yaml:"environment"`
}

// SensorConfig describes the sensing circuit.
type SensorConfig struct {
	Model          string  `yaml:"model"` // low, etc or high
	HeaterPin      string  `yaml:"heater_pin"`
	I2CAddress     uint16  `yaml:"i2c_address"`
	Channel        int     `yaml:"channel"`
	LoadResistance float64 `yaml:"load_resistance"`
	SupplyVoltage  float64 `yaml:"supply_voltage"`
	ADCResolution  int     `yaml:"adc_resolution"`
}

// CalibrationConfig carries persisted calibration values. A zero R0 or
// TimeToRead means "use the model defaults".
type CalibrationConfig struct {
	R0           float64       `yaml:"r0"`
	TimeToRead   time.Duration `yaml:"time_to_read"`
	StableCycles int           `yaml:"stable_cycles"`
	Timeout      time.Duration `yaml:"timeout"`
}

type EnvironmentConfig struct {
	Temperature int `yaml:"temperature"`
	Humidity    int `yaml:"humidity"`
}

// Default returns the configuration for the usual wiring: low concentration
// board with its 1MOhm load, heater enable on GPIO24, ADS1015 at 0x48.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Model:          "low",
			HeaterPin:      "GPIO24",
			I2CAddress:     0x48,
			Channel:        0,
			LoadResistance: 1000000,
			SupplyVoltage:  5.0,
			ADCResolution:  1024,
		},
		Calibration: CalibrationConfig{
			StableCycles: 15,
		},
		Environment: EnvironmentConfig{
			Temperature: 20,
			Humidity:    60,
		},
	}
}

// Load reads a yaml config file. A missing file is not an error: defaults
// are returned so a first run works without any setup.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration back, typically after RecordCalibration.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

var channels = map[int]ads1x15.Channel{
	0: ads1x15.Channel0,
	1: ads1x15.Channel1,
	2: ads1x15.Channel2,
	3: ads1x15.Channel3,
}

// Model parses the model name.
func (c *Config) Model() (mq131.Model, error) {
	switch c.Sensor.Model {
	case "low", "":
		return mq131.LowConcentration, nil
	case "etc":
		return mq131.EtcConcentration, nil
	case "high":
		return mq131.HighConcentration, nil
	default:
		return 0, fmt.Errorf("unknown sensor model %q", c.Sensor.Model)
	}
}

// DriverOpts translates the configuration into driver options.
func (c *Config) DriverOpts() (mq131.Opts, error) {
	model, err := c.Model()
	if err != nil {
		return mq131.Opts{}, err
	}

	channel, ok := channels[c.Sensor.Channel]
	if !ok {
		return mq131.Opts{}, fmt.Errorf("adc channel %d out of range", c.Sensor.Channel)
	}

	return mq131.Opts{
		Model:              model,
		LoadResistance:     c.Sensor.LoadResistance,
		SupplyVoltage:      c.Sensor.SupplyVoltage,
		ADCResolution:      c.Sensor.ADCResolution,
		StableCycles:       c.Calibration.StableCycles,
		CalibrationTimeout: c.Calibration.Timeout,
		HeaterPin:          c.Sensor.HeaterPin,
		I2CAddress:         c.Sensor.I2CAddress,
		Channel:            channel,
	}, nil
}

// Apply restores persisted calibration values and the ambient conditions
// onto a device.
func (c *Config) Apply(dev *mq131.Device) {
	if c.Calibration.R0 > 0 {
		dev.SetR0(c.Calibration.R0)
	}
	if c.Calibration.TimeToRead > 0 {
		dev.SetTimeToRead(c.Calibration.TimeToRead)
	}
	dev.SetEnv(c.Environment.Temperature, c.Environment.Humidity)
}

// RecordCalibration copies the device's calibration state into the config,
// ready to Save.
func (c *Config) RecordCalibration(dev *mq131.Device) {
	c.Calibration.R0 = dev.R0()
	c.Calibration.TimeToRead = dev.TimeToRead()
}
