package mq131

// Unit is a gas concentration unit.
type Unit int

const (
	// Parts per million / billion by volume.
	PPM Unit = iota
	PPB
	// Milligrams / micrograms per cubic meter.
	MGM3
	UGM3
)

// Molar mass of O3 (g/mol) over the molar volume of an ideal gas at 0C and
// 100kPa (l/mol), the factor between volumetric and mass concentrations.
const o3MassFactor = 48.0 / 22.71108

func (u Unit) String() string {
	switch u {
	case PPM:
		return "ppm"
	case PPB:
		return "ppb"
	case MGM3:
		return "mg/m3"
	case UGM3:
		return "ug/m3"
	default:
		return "unknown"
	}
}

// Convert changes a concentration value from one unit to another.
//
// Quirk kept from the reference driver: converting to PPM or PPB assumes the
// input is in the other volumetric unit without looking at from, since the
// sensor's native output is always one of the two. An unknown target unit
// returns the input unchanged.
func Convert(value float64, from, to Unit) float64 {
	if from == to {
		return value
	}

	switch to {
	case PPM:
		return value / 1000.0
	case PPB:
		return value * 1000.0
	case MGM3:
		concentration := value
		if from != PPM {
			concentration = value / 1000.0
		}
		return concentration * o3MassFactor
	case UGM3:
		concentration := value
		if from != PPB {
			concentration = value * 1000.0
		}
		return concentration * o3MassFactor
	default:
		return value
	}
}
