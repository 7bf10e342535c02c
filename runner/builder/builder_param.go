package builder

import (
	"fmt"
	"reflect"
)

// Direction indicates parameter data flow
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionScalar
)

// ParamBuilder provides a fluent interface for building kernel parameters
type ParamBuilder struct {
	Spec ParamSpec
}

// ParamSpec holds the complete specification for a kernel parameter.
// Array bindings are partitioned host data, one slice per partition.
type ParamSpec struct {
	Name        string
	Direction   Direction
	HostBinding interface{}

	// Type and size (inferred from the binding)
	DataType DataType
	Size     int64 // values across all partitions

	// Data movement
	DoCopyTo   bool
	DoCopyBack bool

	Alignment AlignmentType
}

func newParam(name string, d Direction) *ParamBuilder {
	return &ParamBuilder{Spec: ParamSpec{Name: name, Direction: d}}
}

// Input creates a parameter specification for a const input
func Input(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionInput) }

// Output creates a parameter specification for a non-const output
func Output(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionOutput) }

// Scalar creates a parameter specification for a scalar value
func Scalar(deviceName string) *ParamBuilder { return newParam(deviceName, DirectionScalar) }

// Bind associates a host variable with this parameter
func (p *ParamBuilder) Bind(hostVar interface{}) *ParamBuilder {
	p.Spec.HostBinding = hostVar
	p.inferFromBinding()
	return p
}

// CopyTo sets host→device copy before kernel execution
func (p *ParamBuilder) CopyTo() *ParamBuilder {
	p.Spec.DoCopyTo = true
	return p
}

// CopyBack sets device→host copy after kernel execution
func (p *ParamBuilder) CopyBack() *ParamBuilder {
	p.Spec.DoCopyBack = true
	return p
}

// Align sets memory alignment requirements
func (p *ParamBuilder) Align(alignment AlignmentType) *ParamBuilder {
	p.Spec.Alignment = alignment
	return p
}

func (p *ParamBuilder) inferFromBinding() {
	v := reflect.ValueOf(p.Spec.HostBinding)
	if !v.IsValid() {
		return
	}
	t := v.Type()

	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Slice {
		var n int64
		for i := 0; i < v.Len(); i++ {
			n += int64(v.Index(i).Len())
		}
		p.Spec.Size = n
		p.Spec.DataType = kindType(t.Elem().Elem().Kind())
		return
	}
	if t.Kind() == reflect.Slice {
		p.Spec.Size = int64(v.Len())
		p.Spec.DataType = kindType(t.Elem().Kind())
		return
	}
	p.Spec.Size = 1
	p.Spec.DataType = kindType(t.Kind())
}

func kindType(k reflect.Kind) DataType {
	switch k {
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Int32:
		return INT32
	case reflect.Int, reflect.Int64:
		return INT64
	}
	return 0
}

// Validate checks if the parameter specification is complete and valid
func (p *ParamSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if p.DataType == 0 {
		return fmt.Errorf("parameter %s: unsupported or missing binding %T", p.Name, p.HostBinding)
	}
	if p.Direction == DirectionScalar {
		return nil
	}
	if p.Size == 0 {
		return fmt.Errorf("array %s needs size", p.Name)
	}
	if p.Direction == DirectionInput && p.DoCopyBack {
		return fmt.Errorf("input %s cannot be copied back", p.Name)
	}
	return nil
}

// IsConst returns whether this parameter should be const in the kernel signature
func (p *ParamSpec) IsConst() bool {
	return p.Direction != DirectionOutput
}

// NeedsCopyTo returns whether this parameter needs host→device copy
func (p *ParamSpec) NeedsCopyTo() bool {
	return p.DoCopyTo && p.HostBinding != nil
}

// NeedsCopyBack returns whether this parameter needs device→host copy
func (p *ParamSpec) NeedsCopyBack() bool {
	return p.DoCopyBack && p.HostBinding != nil
}
