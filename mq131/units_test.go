package mq131

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertIdentity(t *testing.T) {
	for _, u := range []Unit{PPM, PPB, MGM3, UGM3} {
		assert.Equal(t, 123.456, Convert(123.456, u, u), u.String())
	}
}

func TestConvertVolumetric(t *testing.T) {
	assert.Equal(t, 1.5, Convert(1500, PPB, PPM))
	assert.Equal(t, 1500.0, Convert(1.5, PPM, PPB))
}

func TestConvertRoundTrip(t *testing.T) {
	x := 3.14159
	assert.InDelta(t, x, Convert(Convert(x, PPM, PPB), PPB, PPM), 1e-9)
}

func TestConvertMass(t *testing.T) {
	assert.InDelta(t, 2*48.0/22.71108, Convert(2, PPM, MGM3), 1e-9)
	assert.InDelta(t, 0.002*48.0/22.71108, Convert(2, PPB, MGM3), 1e-9)
	assert.InDelta(t, 100*48.0/22.71108, Convert(100, PPB, UGM3), 1e-9)
	assert.InDelta(t, 1000*48.0/22.71108, Convert(1, PPM, UGM3), 1e-9)
}

func TestConvertUnknownTarget(t *testing.T) {
	assert.Equal(t, 5.0, Convert(5, PPM, Unit(99)))
}

func TestUnitString(t *testing.T) {
	assert.Equal(t, "ppm", PPM.String())
	assert.Equal(t, "ppb", PPB.String())
	assert.Equal(t, "mg/m3", MGM3.String())
	assert.Equal(t, "ug/m3", UGM3.String())
	assert.Equal(t, "unknown", Unit(99).String())
}
