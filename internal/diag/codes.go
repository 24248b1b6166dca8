package diag

import "fmt"

// Code identifies a diagnostic class. Ranges group the taxonomy:
// 1xxx invariant violations, 2xxx unsupported-target conditions,
// 3xxx range/capacity failures, 4xxx driver and IO failures.
type Code uint16

const (
	UnknownCode Code = 0

	// Invariant violations: malformed IR, always a bug in a producer or pass.
	InvInfo              Code = 1000
	InvCastMismatch      Code = 1001
	InvNotAPointer       Code = 1002
	InvNotAView          Code = 1003
	InvNotAStructure     Code = 1004
	InvOperandType       Code = 1005
	InvStaleValue        Code = 1006
	InvTerminatorMissing Code = 1007
	InvBlockOpen         Code = 1008
	InvSignature         Code = 1009

	// Unsupported-target conditions: legitimate input a target cannot express.
	UnsupInfo           Code = 2000
	UnsupBitCastWidth   Code = 2001
	UnsupType           Code = 2002
	UnsupValueKind      Code = 2003
	UnsupAddressSpace   Code = 2004
	UnsupViewInBackend  Code = 2005
	UnsupConstKind      Code = 2006
	UnsupPointerWidth   Code = 2007
	UnsupStringOutsideC Code = 2008

	// Range and capacity failures.
	RangeInfo       Code = 3000
	RangeFieldSpan  Code = 3001
	RangeBlockIndex Code = 3002
	RangeOperand    Code = 3003
	RangeDimension  Code = 3004

	// Driver, configuration and IO failures.
	DrvInfo          Code = 4000
	DrvBadManifest   Code = 4001
	DrvBadModule     Code = 4002
	DrvCacheCorrupt  Code = 4003
	DrvUnknownTarget Code = 4004
)

func (c Code) String() string {
	return fmt.Sprintf("ILG%04d", uint16(c))
}

// IsInvariant reports whether the code denotes a compiler bug.
func (c Code) IsInvariant() bool {
	return c >= InvInfo && c < UnsupInfo
}

// IsUnsupported reports whether the code denotes an unsupported-target condition.
func (c Code) IsUnsupported() bool {
	return c >= UnsupInfo && c < RangeInfo
}

// IsRange reports whether the code denotes a range/capacity failure.
func (c Code) IsRange() bool {
	return c >= RangeInfo && c < DrvInfo
}
