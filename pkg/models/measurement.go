package models

// Direction of a frequency pass
type Direction string

const (
	DirectionIncrease Direction = "inc"
	DirectionDecrease Direction = "dec"
)

// Suffix returns the file name suffix used for a pass ("Inc" or "Dec")
func (d Direction) Suffix() string {
	if d == DirectionDecrease {
		return "Dec"
	}
	return "Inc"
}

// Measurement represents a single impedance reading
type Measurement struct {
	Frequency float64   `json:"frequency" parquet:"frequency" doc:"Stimulus frequency in Hz"`
	Impedance float64   `json:"impedance" parquet:"impedance" doc:"Impedance magnitude in Ohm"`
	Phase     float64   `json:"phase" parquet:"phase" doc:"Impedance phase in degrees"`
	Amplitude int       `json:"amplitude_mv" parquet:"amplitude_mv" doc:"Stimulus amplitude in mV"`
	Direction Direction `json:"direction" parquet:"direction" enum:"inc,dec" doc:"Sweep direction"`
}
