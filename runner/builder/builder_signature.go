package builder

import (
	"fmt"
	"strings"
)

// GenerateKernelSignature generates the parameter list for a kernel: the K
// array first, then a data pointer and offsets per array, then scalars.
func (kb *Builder) GenerateKernelSignature(params []ParamSpec) string {
	args := []string{"const int_t* K"}
	for _, p := range params {
		if p.Direction == DirectionScalar {
			continue
		}
		typ := kb.cType(p.DataType)
		constQualifier := ""
		if p.IsConst() {
			constQualifier = "const "
		}
		args = append(args,
			fmt.Sprintf("%s%s* %s_global", constQualifier, typ, p.Name),
			fmt.Sprintf("const int_t* %s_offsets", p.Name))
	}
	for _, p := range params {
		if p.Direction == DirectionScalar {
			args = append(args, fmt.Sprintf("const %s %s", kb.cType(p.DataType), p.Name))
		}
	}
	return strings.Join(args, ",\n\t")
}

// GenerateKernelDeclaration generates a complete kernel function declaration
func (kb *Builder) GenerateKernelDeclaration(kernelName string, params []ParamSpec) string {
	return fmt.Sprintf("@kernel void %s(\n\t%s\n)", kernelName, kb.GenerateKernelSignature(params))
}

// cType maps a host type to its kernel spelling; floats follow the
// builder's precision.
func (kb *Builder) cType(t DataType) string {
	switch t {
	case INT32, INT64:
		return "int_t"
	default:
		return "real_t"
	}
}
