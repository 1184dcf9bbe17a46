package ir

import (
	"fmt"
	"slices"
)

// DType is the scalar element type of a buffer.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
	Int32   DType = "int32"
	Int64   DType = "int64"
)

// ValidDTypes lists the element types a buffer may declare.
var ValidDTypes = map[DType]bool{
	Float32: true,
	Float64: true,
	Int32:   true,
	Int64:   true,
}

// Buffer is a named tensor with a declared shape.
//
// Lanes > 1 declares a fixed-width vector element (for example float32x4).
// The shape counts elements, never lanes: a buffer of shape [n] with four
// lanes holds n vectors.
type Buffer struct {
	Name  string `json:"name"`
	DType DType  `json:"dtype"`
	Lanes int    `json:"lanes"`
	Shape []Expr `json:"-"`
}

// NewBuffer creates a scalar buffer of the given shape.
func NewBuffer(name string, dtype DType, shape ...Expr) *Buffer {
	return &Buffer{Name: name, DType: dtype, Lanes: 1, Shape: shape}
}

// ElemLanes returns the number of lanes in one element (at least 1).
func (b *Buffer) ElemLanes() int {
	if b.Lanes < 1 {
		return 1
	}
	return b.Lanes
}

// TypeString renders the element type, e.g. "float32" or "float32x4".
func (b *Buffer) TypeString() string {
	if b.ElemLanes() == 1 {
		return string(b.DType)
	}
	return fmt.Sprintf("%sx%d", b.DType, b.ElemLanes())
}

// Load builds a read of this buffer.
func (b *Buffer) Load(indices ...Expr) *Load {
	return &Load{Buffer: b, Indices: indices}
}

// Store builds a write of value into this buffer.
func (b *Buffer) Store(value Expr, indices ...Expr) *Store {
	return &Store{Buffer: b, Indices: indices, Value: value}
}

// Program is a lowered kernel: its argument buffers, its scalar parameters
// and the loop nest that computes it.
//
// Variables that appear in buffer shapes are size parameters and are
// non-negative. Params lists additional scalar parameters with no sign
// information (offsets, strides supplied at run time).
type Program struct {
	Name    string    `json:"name"`
	Params  []string  `json:"params"`
	Buffers []*Buffer `json:"buffers"`
	Body    Stmt      `json:"-"`
}

// Buffer returns the argument buffer with the given name, or nil.
func (p *Program) Buffer(name string) *Buffer {
	for _, b := range p.Buffers {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// SizeParams returns the variables referenced by argument buffer shapes,
// sorted and deduplicated.
func (p *Program) SizeParams() []string {
	var names []string
	for _, b := range p.Buffers {
		for _, dim := range b.Shape {
			names = append(names, FreeVars(dim)...)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// AllParams returns size parameters followed by scalar parameters that are
// not also sizes.
func (p *Program) AllParams() []string {
	sizes := p.SizeParams()
	out := slices.Clone(sizes)
	for _, name := range p.Params {
		if !slices.Contains(sizes, name) {
			out = append(out, name)
		}
	}
	return out
}
