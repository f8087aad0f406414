package types

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 point persisted as a PostGIS geography (EWKT on
// write). Drivers without PostGIS store the EWKT text as-is.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects points outside the WGS84 ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("coordinate: latitude %v out of range", c.Lat)
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("coordinate: longitude %v out of range", c.Lng)
	}
	return nil
}

// Value produces an EWKT literal so Postgres can cast the geography.
func (c Coordinate) Value() (driver.Value, error) {
	return fmt.Sprintf("SRID=4326;POINT(%f %f)", c.Lng, c.Lat), nil
}

// Scan accepts WKT/EWKT text, hex-encoded EWKB (the PostGIS text output for
// geography columns) or raw WKB bytes.
func (c *Coordinate) Scan(value any) error {
	var text string
	switch v := value.(type) {
	case nil:
		*c = Coordinate{}
		return nil
	case string:
		text = strings.TrimSpace(v)
	case []byte:
		text = strings.TrimSpace(string(v))
		if !isHex(text) && !isWKT(text) {
			return c.parseWKB(v)
		}
	default:
		return fmt.Errorf("coordinate: unsupported scan type %T", value)
	}

	if isHex(text) {
		raw, err := hex.DecodeString(text)
		if err != nil {
			return fmt.Errorf("coordinate: decode hex wkb: %w", err)
		}
		return c.parseWKB(raw)
	}
	return c.parseText(text)
}

func isWKT(text string) bool {
	upper := strings.ToUpper(text)
	return strings.HasPrefix(upper, "SRID=") || strings.HasPrefix(upper, "POINT(")
}

// isHex reports whether text is a non-empty, even-length run of hex digits.
func isHex(text string) bool {
	if text == "" || len(text)%2 != 0 {
		return false
	}
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func (c *Coordinate) parseText(raw string) error {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToUpper(raw), "SRID=") {
		if idx := strings.Index(raw, ";"); idx != -1 {
			raw = strings.TrimSpace(raw[idx+1:])
		}
	}
	if !strings.HasPrefix(strings.ToUpper(raw), "POINT(") || !strings.HasSuffix(raw, ")") {
		return fmt.Errorf("coordinate: unsupported text %q", raw)
	}

	parts := strings.Fields(raw[len("POINT(") : len(raw)-1])
	if len(parts) != 2 {
		return fmt.Errorf("coordinate: unexpected POINT content %q", raw)
	}

	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return fmt.Errorf("coordinate: parse longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("coordinate: parse latitude: %w", err)
	}

	c.Lng, c.Lat = lng, lat
	return nil
}

// parseWKB reads a plain or EWKB point; an SRID header is skipped.
func (c *Coordinate) parseWKB(raw []byte) error {
	if len(raw) < 21 {
		return fmt.Errorf("coordinate: wkb too short")
	}

	var order binary.ByteOrder
	switch raw[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return fmt.Errorf("coordinate: invalid byte order %d", raw[0])
	}

	const sridFlag = 0x20000000
	geomType := order.Uint32(raw[1:5])
	offset := 5
	if geomType&sridFlag != 0 {
		geomType &^= sridFlag
		offset += 4
	}
	if geomType != 1 {
		return fmt.Errorf("coordinate: unexpected geometry type %d", geomType)
	}
	if len(raw) < offset+16 {
		return fmt.Errorf("coordinate: wkb too short")
	}

	c.Lng = math.Float64frombits(order.Uint64(raw[offset : offset+8]))
	c.Lat = math.Float64frombits(order.Uint64(raw[offset+8 : offset+16]))
	return nil
}
