package driver

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/omniql-engine/hfql/mapping"
)

// toDriverValue converts a cell to the driver value for its column type.
// Cells that do not parse as their column type stay strings.
func toDriverValue(v any, t mapping.DataType) driver.Value {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	switch t {
	case mapping.TypeInteger, mapping.TypeLongInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case mapping.TypeDecimal:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case mapping.TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}
