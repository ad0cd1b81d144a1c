// Package price handles price and size values from prediction market APIs
// without losing precision.
package price

import (
	"encoding/json"
	"strconv"
)

type Price int64

// Size is the resting quantity at a price level. Zero means "remove the level".
type Size int64

var (
	_ json.Unmarshaler = (*Price)(nil)
	_ json.Marshaler   = (Price)(0)
	_ json.Unmarshaler = (*Size)(nil)
	_ json.Marshaler   = (Size)(0)
)

const PriceScale int64 = 1_000_000

func (p *Price) UnmarshalJSON(data []byte) error {
	*p = Price(parseScaled(data))
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(`"` + formatScaled(int64(p)) + `"`), nil
}

func (p Price) String() string {
	return formatScaled(int64(p))
}

func (s *Size) UnmarshalJSON(data []byte) error {
	*s = Size(parseScaled(data))
	return nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(`"` + formatScaled(int64(s)) + `"`), nil
}

func (s Size) String() string {
	return formatScaled(int64(s))
}

// ParsePrice decodes a bare decimal string like "0.45" into scaled form.
func ParsePrice(s string) Price {
	return Price(parseScaled([]byte(s)))
}

// ParseSize decodes a bare decimal string like "100.5" into scaled form.
func ParseSize(s string) Size {
	return Size(parseScaled([]byte(s)))
}

func parseScaled(data []byte) int64 {
	if len(data) > 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	// Else we assume that it is a raw number.

	var res int64
	i := 0

	for i < len(data) && data[i] != '.' {
		res = res*10 + int64(data[i]-'0')*PriceScale
		i++
	}

	if i < len(data) && data[i] == '.' {
		i++
		mult := PriceScale
		for i < len(data) && mult > 1 {
			mult /= 10
			res += int64(data[i]-'0') * mult
			i++
		}
	}

	return res
}

func formatScaled(v int64) string {
	whole := v / PriceScale
	frac := v % PriceScale

	s := strconv.FormatInt(whole, 10)
	if frac == 0 {
		return s
	}

	fracStr := strconv.FormatInt(frac+PriceScale, 10)[1:] // zero-padded to 6 digits
	for len(fracStr) > 0 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}
	return s + "." + fracStr
}
