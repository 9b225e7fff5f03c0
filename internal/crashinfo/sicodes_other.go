//go:build !linux && !darwin

package crashinfo

// Platforms without a curated table still translate totally: every lookup
// falls through to UNKNOWN.

var signalNames = map[int32]SignalName{}

var signalIndependentCodes = map[int32]SiCode{}

var signalSpecificCodes = map[int32]map[int32]SiCode{}
