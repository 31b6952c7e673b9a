package mq131

import (
	"math"
	"time"
)

// Calibrate determines the baseline resistance (R0) and the time the heater
// needs to run before readings settle, by heating the sensor in clean air
// and sampling Rs once per poll interval until the value (truncated to whole
// ohms) repeats for Opts.StableCycles consecutive reads.
//
// On success the device's R0 and time-to-read are overwritten; persist them
// with R0()/TimeToRead() to skip recalibrating on the next run.
//
// The run blocks for as long as the sensor takes to stabilize, typically a
// few minutes from cold. With no CalibrationTimeout set, a noisy or
// disconnected sensor blocks forever, like the reference driver.
func (dev *Device) Calibrate() error {
	// Last Rs value read, compared without its decimals.
	var lastRs float64
	// Consecutive reads with the same truncated Rs.
	stableCount := 0
	// Total reads, which becomes the new time-to-read.
	elapsed := 0

	dev.log.Debug().Msgf("starting calibration, %d stable cycles required", dev.stableCycles)

	if err := dev.startHeater(); err != nil {
		return err
	}

	var deadline time.Time
	if dev.calTimeout > 0 {
		deadline = dev.now().Add(dev.calTimeout)
	}

	for stableCount < dev.stableCycles {
		if !deadline.IsZero() && dev.now().After(deadline) {
			if serr := dev.stopHeater(); serr != nil {
				dev.log.Error().Err(serr).Msg("stopping heater")
			}
			return ErrCalibrationTimeout
		}

		rs, err := dev.readRs()
		if err != nil {
			if serr := dev.stopHeater(); serr != nil {
				dev.log.Error().Err(serr).Msg("stopping heater")
			}
			return err
		}

		dev.log.Debug().Msgf("Rs read = %d ohms", int64(rs))

		if int64(lastRs) != int64(rs) {
			lastRs = rs
			stableCount = 0
		} else {
			stableCount++
		}
		elapsed++

		dev.sleep(dev.pollInterval)
	}

	if err := dev.stopHeater(); err != nil {
		return err
	}

	dev.SetR0(math.Trunc(lastRs))
	dev.SetTimeToRead(time.Duration(elapsed) * time.Second)

	dev.log.Debug().Msgf("stabilized after %d seconds, R0 = %.0f ohms", elapsed, dev.r0)

	return nil
}
