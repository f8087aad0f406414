package types

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateValueRoundTripsThroughText(t *testing.T) {
	in := Coordinate{Lat: 40.4168, Lng: -3.7038}
	v, err := in.Value()
	require.NoError(t, err)
	assert.Equal(t, "SRID=4326;POINT(-3.703800 40.416800)", v)

	var out Coordinate
	require.NoError(t, out.Scan(v))
	assert.InDelta(t, in.Lat, out.Lat, 1e-6)
	assert.InDelta(t, in.Lng, out.Lng, 1e-6)
}

func TestCoordinateScanEWKB(t *testing.T) {
	raw := make([]byte, 25)
	raw[0] = 1
	binary.LittleEndian.PutUint32(raw[1:5], 1|0x20000000)
	binary.LittleEndian.PutUint32(raw[5:9], 4326)
	binary.LittleEndian.PutUint64(raw[9:17], math.Float64bits(2.35))
	binary.LittleEndian.PutUint64(raw[17:25], math.Float64bits(48.85))

	var out Coordinate
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, 48.85, out.Lat)
	assert.Equal(t, 2.35, out.Lng)
}

func TestCoordinateScanRejectsGarbage(t *testing.T) {
	var out Coordinate
	assert.Error(t, out.Scan("LINESTRING(0 0, 1 1)"))
	assert.Error(t, out.Scan(42))
}

func TestCoordinateValidate(t *testing.T) {
	assert.NoError(t, Coordinate{Lat: 0, Lng: 0}.Validate())
	assert.Error(t, Coordinate{Lat: 91, Lng: 0}.Validate())
	assert.Error(t, Coordinate{Lat: 0, Lng: -181}.Validate())
}

func TestCoordinateScanHexEWKB(t *testing.T) {
	// SRID=4326;POINT(-3.7 40.41) as PostGIS prints a geography column.
	const hexPoint = "0101000020E61000009A99999999990DC0E17A14AE47344440"

	for name, value := range map[string]any{
		"string": hexPoint,
		"bytes":  []byte(hexPoint),
		"lower":  strings.ToLower(hexPoint),
	} {
		t.Run(name, func(t *testing.T) {
			var out Coordinate
			require.NoError(t, out.Scan(value))
			assert.InDelta(t, 40.41, out.Lat, 1e-9)
			assert.InDelta(t, -3.7, out.Lng, 1e-9)
		})
	}
}

func TestCoordinateScanRejectsOddHex(t *testing.T) {
	var out Coordinate
	assert.Error(t, out.Scan("0101000020E"))
	assert.Error(t, out.Scan("0101"), "too short for a point")
}
