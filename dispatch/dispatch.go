// Package dispatch maps runtime integers onto a fixed menu of constants that
// are carried as types. A kernel generic over these types is instantiated once
// per menu entry, so each instantiation sees its block size, warp width and
// items per thread as properties of its type arguments rather than as values
// passed in at launch.
//
// The menus are closed: a value outside a menu has no instantiation and is
// reported by Check as an UnsupportedError.
package dispatch

import (
	"fmt"
	"slices"
)

// Constant is a type that stands for one integer.
type Constant interface {
	Value() int
}

// Of returns the integer the constant type C stands for.
func Of[C Constant]() int {
	var c C
	return c.Value()
}

// BlockSize is a constant threads-per-block value.
type BlockSize interface {
	Constant
	blockSize()
}

// WarpSize is a constant lanes-per-warp value.
type WarpSize interface {
	Constant
	warpSize()
}

// ItemsPerThread is a constant count of input elements read by one thread.
type ItemsPerThread interface {
	Constant
	itemsPerThread()
}

// Menus of supported values, in ascending order.
var (
	BlockSizes = []int{4, 8, 16, 32, 64, 128, 256, 512, 1024}
	WarpSizes  = []int{32, 64}
	ItemCounts = []int{1, 2, 3, 4, 8, 16}
)

// MaxItemsPerThread is the largest entry of the ItemCounts menu.
const MaxItemsPerThread = 16

// UnsupportedError reports a value that is not on a menu.
type UnsupportedError struct {
	Name  string
	Value int
	Menu  []int
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s %d, supported values are %v", e.Name, e.Value, e.Menu)
}

// Check returns an *UnsupportedError if v is not on menu.
func Check(name string, menu []int, v int) error {
	if slices.Contains(menu, v) {
		return nil
	}
	return &UnsupportedError{Name: name, Value: v, Menu: slices.Clone(menu)}
}

// Block sizes.
type (
	B4    struct{}
	B8    struct{}
	B16   struct{}
	B32   struct{}
	B64   struct{}
	B128  struct{}
	B256  struct{}
	B512  struct{}
	B1024 struct{}
)

func (B4) Value() int    { return 4 }
func (B8) Value() int    { return 8 }
func (B16) Value() int   { return 16 }
func (B32) Value() int   { return 32 }
func (B64) Value() int   { return 64 }
func (B128) Value() int  { return 128 }
func (B256) Value() int  { return 256 }
func (B512) Value() int  { return 512 }
func (B1024) Value() int { return 1024 }

func (B4) blockSize()    {}
func (B8) blockSize()    {}
func (B16) blockSize()   {}
func (B32) blockSize()   {}
func (B64) blockSize()   {}
func (B128) blockSize()  {}
func (B256) blockSize()  {}
func (B512) blockSize()  {}
func (B1024) blockSize() {}

// Warp widths.
type (
	W32 struct{}
	W64 struct{}
)

func (W32) Value() int { return 32 }
func (W64) Value() int { return 64 }

func (W32) warpSize() {}
func (W64) warpSize() {}

// Items per thread.
type (
	I1  struct{}
	I2  struct{}
	I3  struct{}
	I4  struct{}
	I8  struct{}
	I16 struct{}
)

func (I1) Value() int  { return 1 }
func (I2) Value() int  { return 2 }
func (I3) Value() int  { return 3 }
func (I4) Value() int  { return 4 }
func (I8) Value() int  { return 8 }
func (I16) Value() int { return 16 }

func (I1) itemsPerThread()  {}
func (I2) itemsPerThread()  {}
func (I3) itemsPerThread()  {}
func (I4) itemsPerThread()  {}
func (I8) itemsPerThread()  {}
func (I16) itemsPerThread() {}
