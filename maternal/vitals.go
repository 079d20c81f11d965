package maternal

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Domains of the simulated vital signs
const (
	HeartRateMin        = 50.0
	HeartRateMax        = 180.0
	BloodPressureMin    = 80.0
	BloodPressureMax    = 180.0
	OxygenSaturationMin = 80.0
	OxygenSaturationMax = 100.0
	RiskFlagLevels      = 3
)

// Severity thresholds used by the reward function
const (
	CriticalHeartRate     = 160.0
	CriticalBloodPressure = 150.0
	CriticalOxygen        = 85.0
	MildHeartRate         = 120.0
	MildBloodPressure     = 130.0
	MildOxygen            = 90.0
)

// ObservationSize is the number of fields in an Observation
const ObservationSize = 5

// Observation is the ordered vital-sign vector
// [heart_rate, blood_pressure, risk_flag_a, oxygen_saturation, risk_flag_b]
type Observation [ObservationSize]float64

var (
	// ObservationLow is the lower bound of every observation field
	ObservationLow = Observation{HeartRateMin, BloodPressureMin, 0, OxygenSaturationMin, 0}
	// ObservationHigh is the upper bound of every observation field
	ObservationHigh = Observation{HeartRateMax, BloodPressureMax, RiskFlagLevels - 1, OxygenSaturationMax, RiskFlagLevels - 1}
)

// Contains reports whether every field of o lies within the observation bounds
func (o Observation) Contains() bool {
	for i := range o {
		if o[i] < ObservationLow[i] || o[i] > ObservationHigh[i] {
			return false
		}
	}
	return true
}

// VitalSigns is the complete simulated maternal state
type VitalSigns struct {
	HeartRate        float64 `json:"heart_rate"`
	BloodPressure    float64 `json:"blood_pressure"`
	RiskFlagA        int     `json:"risk_flag_a"`
	OxygenSaturation float64 `json:"oxygen_saturation"`
	RiskFlagB        int     `json:"risk_flag_b"`
}

// Observation returns the vector form of the vital signs
func (v VitalSigns) Observation() Observation {
	return Observation{
		v.HeartRate,
		v.BloodPressure,
		float64(v.RiskFlagA),
		v.OxygenSaturation,
		float64(v.RiskFlagB),
	}
}

// Critical is true when any vital crosses the critical threshold
func (v VitalSigns) Critical() bool {
	return v.HeartRate > CriticalHeartRate || v.BloodPressure > CriticalBloodPressure || v.OxygenSaturation < CriticalOxygen
}

// Mild is true when any vital crosses the mild threshold.
// Every critical state is also mild.
func (v VitalSigns) Mild() bool {
	return v.HeartRate > MildHeartRate || v.BloodPressure > MildBloodPressure || v.OxygenSaturation < MildOxygen
}

// Severity returns the most severe band the vitals fall in
func (v VitalSigns) Severity() Severity {
	switch {
	case v.Critical():
		return SeverityCritical
	case v.Mild():
		return SeverityMild
	default:
		return SeverityNormal
	}
}

func (v VitalSigns) String() string {
	return fmt.Sprintf("HR=%.1f, BP=%.1f, RiskA=%d, SpO2=%.1f, RiskB=%d",
		v.HeartRate, v.BloodPressure, v.RiskFlagA, v.OxygenSaturation, v.RiskFlagB)
}

// Severity band of a vital-sign state
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityMild
	SeverityCritical
)

// Severities lists all bands from least to most severe
var Severities = []Severity{SeverityNormal, SeverityMild, SeverityCritical}

func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityMild:
		return "mild"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText encodes the band by name so it can key JSON maps
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sampler draws vital signs independently and uniformly from their domains
type Sampler struct {
	rng           *rand.Rand
	heartRate     distuv.Uniform
	bloodPressure distuv.Uniform
	oxygen        distuv.Uniform
}

// NewSampler creates a sampler with its own random source
func NewSampler(seed uint64) *Sampler {
	rng := rand.New(rand.NewSource(seed))
	return &Sampler{
		rng:           rng,
		heartRate:     distuv.Uniform{Min: HeartRateMin, Max: HeartRateMax, Src: rng},
		bloodPressure: distuv.Uniform{Min: BloodPressureMin, Max: BloodPressureMax, Src: rng},
		oxygen:        distuv.Uniform{Min: OxygenSaturationMin, Max: OxygenSaturationMax, Src: rng},
	}
}

// Seed resets the underlying random source
func (s *Sampler) Seed(seed uint64) {
	s.rng.Seed(seed)
}

// Sample draws a fresh state. Fields are drawn in observation order.
func (s *Sampler) Sample() VitalSigns {
	return VitalSigns{
		HeartRate:        s.heartRate.Rand(),
		BloodPressure:    s.bloodPressure.Rand(),
		RiskFlagA:        s.rng.Intn(RiskFlagLevels),
		OxygenSaturation: s.oxygen.Rand(),
		RiskFlagB:        s.rng.Intn(RiskFlagLevels),
	}
}
