package expr

import "math"

// fmodFloat and floorFloat/powFloat follow the standard floating-point
// floor/fmod/pow semantics that §4.1 mandates for number operands.
func fmodFloat(a, b float64) float64 { return math.Mod(a, b) }
func floorFloat(a float64) float64   { return math.Floor(a) }
func powFloat(a, b float64) float64  { return math.Pow(a, b) }
