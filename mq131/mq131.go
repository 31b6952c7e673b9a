// Driver for the MQ131 ozone sensor.
//
// The MQ131 is a resistive gas sensor: a heating element warms the sensing
// surface and the sensor resistance (Rs) changes with the ozone
// concentration. The driver runs the timed heat/read cycle, converts the raw
// ADC reading to a resistance through the load-resistor divider and derives
// a concentration from the Rs/R0 ratio using the curve fits published for
// the sensor.
//
// Reference driver: https://github.com/ostaquet/Arduino-MQ131-driver
package mq131

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// Model selects the MQ131 variant. The low and high concentration boards use
// different sensing elements (black bakelite vs metal) with their own curve
// fits and default calibration values.
type Model int

const (
	LowConcentration Model = iota
	EtcConcentration
	HighConcentration
)

// Default calibration values per model, from the reference driver. They are
// replaced by Calibrate() or by restoring a persisted calibration with
// SetR0/SetTimeToRead.
const (
	defaultLowR0          = 110470.60
	defaultLowTimeToRead  = 80 * time.Second
	defaultEtcR0          = 263931.12
	defaultEtcTimeToRead  = 80 * time.Second
	defaultHighR0         = 385.40
	defaultHighTimeToRead = 70 * time.Second
)

// ErrInvalidReading is returned when the ADC reports a non-positive load
// voltage, which would blow up the divider equation. Usually a wiring
// problem or a sensor that is not powered.
var ErrInvalidReading = errors.New("mq131: invalid analog reading")

// ErrCalibrationTimeout is returned when Opts.CalibrationTimeout is set and
// the sensor did not stabilize in time.
var ErrCalibrationTimeout = errors.New("mq131: sensor did not stabilize before timeout")

type Device struct {
	heaterPin gpio.PinIO
	sensorPin analog.PinADC

	model          Model
	loadResistance float64
	supplyVoltage  float64
	adcResolution  int
	stableCycles   int
	pollInterval   time.Duration
	calTimeout     time.Duration

	r0         float64
	timeToRead time.Duration
	lastRs     float64

	heatStarted time.Time

	temperature int
	humidity    int

	log   zerolog.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

type Opts struct {
	Model Model

	// LoadResistance is RL in ohms. The low concentration boards ship with
	// a 1MOhm load, the high concentration ones with 10KOhm.
	LoadResistance float64

	// SupplyVoltage is the voltage feeding the divider. ADCResolution is
	// the full-scale count of the ADC, used to scale raw readings when the
	// backend does not report a calibrated voltage. Defaults match the
	// original 5V / 10-bit circuit.
	SupplyVoltage float64
	ADCResolution int

	// StableCycles is the number of consecutive seconds the (truncated)
	// resistance must repeat before a calibration run is considered stable.
	StableCycles int

	// PollInterval is the pause between checks while heating and between
	// calibration reads.
	PollInterval time.Duration

	// CalibrationTimeout bounds a Calibrate() run. Zero means no timeout,
	// like the original driver: an unstable sensor blocks forever.
	CalibrationTimeout time.Duration

	// HeaterPin, I2CAddress and Channel are only used by New/NewWithOpts
	// when wiring the default ADS1015 backend.
	HeaterPin  string
	I2CAddress uint16
	Channel    ads1x15.Channel
}

var DefaultOpts = &Opts{
	Model:          LowConcentration,
	LoadResistance: 1000000,
	SupplyVoltage:  5.0,
	ADCResolution:  1024,
	StableCycles:   15,
	PollInterval:   1 * time.Second,
	HeaterPin:      "GPIO24",
	I2CAddress:     0x48,
	Channel:        ads1x15.Channel0,
}

// New creates a Device wired the default way: heater enable on GPIO24 and
// the sensor output on channel 0 of an ADS1015 at 0x48.
func New() (*Device, error) {
	return NewWithOpts(*DefaultOpts)
}

// NewWithOpts creates a Device on real hardware with custom options.
func NewWithOpts(opts Opts) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, err
	}

	dopts := ads1x15.DefaultOpts
	dopts.I2cAddress = opts.I2CAddress
	adc, err := ads1x15.NewADS1015(bus, &dopts)
	if err != nil {
		return nil, err
	}

	pin, err := adc.PinForChannel(opts.Channel, 5*physic.Volt, 1*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, err
	}

	heater := gpioreg.ByName(opts.HeaterPin)
	if heater == nil {
		return nil, fmt.Errorf("mq131: heater pin %s not found", opts.HeaterPin)
	}

	return NewWithPins(heater, pin, opts)
}

// NewWithPins creates a Device from an already configured heater pin and ADC
// channel. No hardware is initialized, which makes it the entry point for
// tests and for ADC backends other than the ADS1015.
func NewWithPins(heater gpio.PinIO, sensor analog.PinADC, opts Opts) (*Device, error) {
	if opts.LoadResistance <= 0 {
		opts.LoadResistance = DefaultOpts.LoadResistance
	}
	if opts.SupplyVoltage <= 0 {
		opts.SupplyVoltage = DefaultOpts.SupplyVoltage
	}
	if opts.ADCResolution <= 0 {
		opts.ADCResolution = DefaultOpts.ADCResolution
	}
	if opts.StableCycles <= 0 {
		opts.StableCycles = DefaultOpts.StableCycles
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOpts.PollInterval
	}

	dev := &Device{
		heaterPin:      heater,
		sensorPin:      sensor,
		model:          opts.Model,
		loadResistance: opts.LoadResistance,
		supplyVoltage:  opts.SupplyVoltage,
		adcResolution:  opts.ADCResolution,
		stableCycles:   opts.StableCycles,
		pollInterval:   opts.PollInterval,
		calTimeout:     opts.CalibrationTimeout,
		lastRs:         -1,
		temperature:    20,
		humidity:       60,
		now:            time.Now,
		sleep:          time.Sleep,
	}

	switch opts.Model {
	case EtcConcentration:
		dev.r0 = defaultEtcR0
		dev.timeToRead = defaultEtcTimeToRead
	case HighConcentration:
		dev.r0 = defaultHighR0
		dev.timeToRead = defaultHighTimeToRead
	default:
		dev.r0 = defaultLowR0
		dev.timeToRead = defaultLowTimeToRead
	}

	dev.log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	dev.log = dev.log.Level(zerolog.InfoLevel)

	// Heater off until a cycle starts.
	if err := dev.heaterPin.Out(gpio.Low); err != nil {
		return nil, err
	}

	return dev, nil
}

func (dev *Device) EnableDebugging() {
	dev.log = dev.log.Level(zerolog.DebugLevel)
}

// SetEnv stores the ambient conditions used to correct the Rs/R0 ratio.
// Defaults to 20C and 60% relative humidity, the sensor's reference point.
func (dev *Device) SetEnv(temperatureCelsius, humidityPercent int) {
	dev.temperature = temperatureCelsius
	dev.humidity = humidityPercent
}

// Sample runs a full cycle: heater on, wait for the calibrated time to read,
// read Rs, heater off. It blocks for the whole stabilization delay (70-80
// seconds with the default calibration values). Not safe to call while
// another Sample or Calibrate is running on the same hardware.
func (dev *Device) Sample() error {
	if err := dev.startHeater(); err != nil {
		return err
	}
	for !dev.isTimeToRead() {
		dev.sleep(dev.pollInterval)
	}
	rs, err := dev.readRs()
	dev.lastRs = rs
	if serr := dev.stopHeater(); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (dev *Device) startHeater() error {
	if err := dev.heaterPin.Out(gpio.High); err != nil {
		return err
	}
	dev.heatStarted = dev.now()
	dev.log.Debug().Msgf("heater on, reading in %s", dev.timeToRead)
	return nil
}

// isTimeToRead reports whether the heater has been on long enough for the
// reading to be trustworthy. False when no cycle is running.
func (dev *Device) isTimeToRead() bool {
	if dev.heatStarted.IsZero() {
		return false
	}
	return dev.now().Sub(dev.heatStarted) >= dev.timeToRead
}

func (dev *Device) stopHeater() error {
	dev.heatStarted = time.Time{}
	dev.log.Debug().Msg("heater off")
	return dev.heaterPin.Out(gpio.Low)
}

// readRs reads the ADC and derives the sensor resistance from the voltage
// divider formed with the load resistor.
func (dev *Device) readRs() (float64, error) {
	sample, err := dev.sensorPin.Read()
	if err != nil {
		return -1, err
	}

	// Backends like the ads1x15 report the load voltage already calibrated
	// for their range and gain, so use it when present. Raw-only backends
	// fall back to the configured resolution and supply voltage.
	vRL := float64(sample.V) / float64(physic.Volt)
	if sample.V == 0 {
		vRL = float64(sample.Raw) / float64(dev.adcResolution) * dev.supplyVoltage
	}
	if vRL <= 0 {
		return -1, ErrInvalidReading
	}

	rs := (dev.supplyVoltage/vRL - 1.0) * dev.loadResistance
	if rs < 0 {
		// The load voltage exceeds the supply: a miswired divider or a
		// misconfigured ADC range, not a gas reading.
		return -1, ErrInvalidReading
	}
	return rs, nil
}

// envCorrectRatio computes the correction to apply to the Rs/R0 ratio for
// the current temperature and humidity, from the three humidity response
// curves in the sensor datasheet (30%, 60% and 85% RH). Humidity outside
// the 30-85% range extrapolates the nearest pair of curves, a known
// limitation inherited from the reference driver.
func (dev *Device) envCorrectRatio() float64 {
	t := float64(dev.temperature)
	h30 := -0.0141*t + 1.5623
	h60 := -0.0119*t + 1.3261
	h85 := -0.0103*t + 1.1507

	// Reference point, skip the interpolation round-off.
	if dev.humidity == 60 && dev.temperature == 20 {
		return 1.06
	}

	if dev.humidity > 60 {
		return h60 + (h85-h60)*float64(dev.humidity-60)/(85-60)
	}

	return h30 + (h60-h30)*float64(dev.humidity-30)/(60-30)
}

// Concentration converts the last sampled resistance into an O3
// concentration in the requested unit. Returns 0.0 until a successful
// Sample has run.
//
// The power-law equations are empirical fits to the manufacturer's response
// charts, one per sensor variant.
func (dev *Device) Concentration(unit Unit) float64 {
	if dev.lastRs < 0 {
		return 0.0
	}

	ratio := dev.lastRs / dev.r0 * dev.envCorrectRatio()

	switch dev.model {
	case LowConcentration:
		return Convert(9.4783*math.Pow(ratio, 2.3348), PPB, unit)
	case EtcConcentration:
		return Convert(23.8887*math.Pow(ratio, 1.1101), PPB, unit)
	case HighConcentration:
		return Convert(8.1399*math.Pow(ratio, 2.3297), PPM, unit)
	default:
		return 0.0
	}
}

// R0 returns the baseline resistance in ohms, either the model default, the
// result of the last Calibrate run or whatever was restored with SetR0.
func (dev *Device) R0() float64 {
	return dev.r0
}

// SetR0 restores a baseline resistance from a previous calibration.
func (dev *Device) SetR0(ohms float64) {
	dev.r0 = ohms
}

// TimeToRead returns how long the heater runs before a reading is taken.
func (dev *Device) TimeToRead() time.Duration {
	return dev.timeToRead
}

// SetTimeToRead restores a stabilization delay from a previous calibration.
func (dev *Device) SetTimeToRead(d time.Duration) {
	dev.timeToRead = d
}

// Halt switches the heater off.
func (dev *Device) Halt() error {
	return dev.stopHeater()
}
