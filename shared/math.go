package shared

import "github.com/holiman/uint256"

// Scale18 is the fixed-point unit of scores and factors.
var Scale18 = uint256.NewInt(1_000_000_000_000_000_000)

// MaxFeeBps is 100% expressed in basis points.
const MaxFeeBps = 10_000

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Copy returns x or zero when x is nil.
func Copy(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}

// MulDiv computes x*y/d with truncation. d must be non-zero.
func MulDiv(x, y, d *uint256.Int) *uint256.Int {
	z, _ := new(uint256.Int).MulDivOverflow(x, y, d)
	return z
}

// Min returns a copy of the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int).Set(x)
	}
	return new(uint256.Int).Set(y)
}

// AbsDiff returns |x - y|.
func AbsDiff(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int).Sub(y, x)
	}
	return new(uint256.Int).Sub(x, y)
}
