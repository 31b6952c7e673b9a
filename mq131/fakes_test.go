package mq131

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// fakeADC feeds canned raw readings to the driver. It stays on the last
// sample once the sequence is exhausted, or cycles when loop is set.
type fakeADC struct {
	samples []int32
	loop    bool
	reads   int
	err     error
}

func (f *fakeADC) Read() (analog.Sample, error) {
	if f.err != nil {
		return analog.Sample{}, f.err
	}
	i := f.reads
	if f.loop {
		i = i % len(f.samples)
	} else if i >= len(f.samples) {
		i = len(f.samples) - 1
	}
	f.reads++
	return analog.Sample{Raw: f.samples[i]}, nil
}

func (f *fakeADC) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{Raw: 1023}
}

func (f *fakeADC) Name() string     { return "fake(0)" }
func (f *fakeADC) Number() int      { return 0 }
func (f *fakeADC) Function() string { return "ADC" }
func (f *fakeADC) String() string   { return "fake(0)" }
func (f *fakeADC) Halt() error      { return nil }

// fakeVoltageADC mimics an ads1x15 pin: Raw carries the full 16-bit
// conversion register value and V the calibrated voltage it represents at
// the configured full-scale range.
type fakeVoltageADC struct {
	raws      []int32
	fullScale float64 // volts
	reads     int
}

func (f *fakeVoltageADC) Read() (analog.Sample, error) {
	i := f.reads
	if i >= len(f.raws) {
		i = len(f.raws) - 1
	}
	f.reads++
	raw := f.raws[i]
	v := physic.ElectricPotential(float64(raw) * f.fullScale / (1 << 15) * float64(physic.Volt))
	return analog.Sample{Raw: raw, V: v}, nil
}

func (f *fakeVoltageADC) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{Raw: -math.MaxInt16}, analog.Sample{Raw: math.MaxInt16}
}

func (f *fakeVoltageADC) Name() string     { return "fakeads(0)" }
func (f *fakeVoltageADC) Number() int      { return 0 }
func (f *fakeVoltageADC) Function() string { return "ADC" }
func (f *fakeVoltageADC) String() string   { return "fakeads(0)" }
func (f *fakeVoltageADC) Halt() error      { return nil }

// flakyPin fails writes after a number of successful ones.
type flakyPin struct {
	gpiotest.Pin
	failAfter int
	outs      int
}

func (p *flakyPin) Out(l gpio.Level) error {
	p.outs++
	if p.outs > p.failAfter {
		return errors.New("gpio write failed")
	}
	return p.Pin.Out(l)
}

// fakeClock advances only when the device sleeps, so blocking cycles run
// instantly in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) sleep(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestDevice(t *testing.T, adc analog.PinADC, opts Opts) (*Device, *gpiotest.Pin, *fakeClock) {
	t.Helper()

	pin := &gpiotest.Pin{N: "heater", Num: 24}
	dev, err := NewWithPins(pin, adc, opts)
	require.NoError(t, err)

	clk := newFakeClock()
	dev.now = clk.now
	dev.sleep = clk.sleep

	return dev, pin, clk
}
