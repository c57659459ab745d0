package kernels

import (
	"fmt"
	"strings"
)

// DataType represents the precision of numerical data on the device
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// PreambleConfig selects the scalar types emitted into every kernel
type PreambleConfig struct {
	FloatType DataType
	IntType   DataType
}

// DefaultPreamble matches the device storage of ComplexVector: interleaved
// float32 pairs indexed with 32-bit integers
func DefaultPreamble() PreambleConfig {
	return PreambleConfig{FloatType: Float32, IntType: INT32}
}

// Preamble generates the type definitions and complex access macros
// prepended to every kernel source
func Preamble(cfg PreambleConfig) string {
	var sb strings.Builder

	sb.WriteString(generateTypeDefinitions(cfg))
	sb.WriteString(generateComplexMacros())

	return sb.String()
}

func generateTypeDefinitions(cfg PreambleConfig) string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if cfg.FloatType != Float64 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}

	intTypeStr := "int"
	if cfg.IntType == INT64 {
		intTypeStr = "long"
	}

	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", floatTypeStr))
	sb.WriteString(fmt.Sprintf("typedef %s int_t;\n", intTypeStr))
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", floatSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_ONE 1.0%s\n", floatSuffix))
	sb.WriteString("#define TWO_PI 6.283185307179586\n")
	sb.WriteString("\n")

	return sb.String()
}

// Complex elements are stored as (re, im) pairs, so element i of a lives at
// a[2i] and a[2i+1]
func generateComplexMacros() string {
	var sb strings.Builder

	sb.WriteString("#define RE(a, i) a[2*(i)]\n")
	sb.WriteString("#define IM(a, i) a[2*(i)+1]\n")
	// Grid-stride loop over [0, count); requires b, t, nb, nt in scope
	sb.WriteString("#define GRID_STRIDE(i, count) for (int_t i = b*nt + t; i < (count); i += nb*nt)\n")
	sb.WriteString("\n")

	return sb.String()
}
