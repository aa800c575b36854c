package wire

import "strconv"

// Tag is the host's type tag for a wire record.
type Tag uint16

// Tag values as numbered by the host ABI.
const (
	TagEmpty Tag = iota
	TagNull
	TagI2
	TagI4
	TagR4
	TagR8
	TagDate
	TagTM
	TagPStr
	TagInterface
	TagError
	TagBool
	TagVariant
	TagI1
	TagUI1
	TagUI2
	TagUI4
	TagI8
	TagUI8
	TagInt
	TagUInt
	TagHResult
	TagPWStr
	TagBlob
	TagCLSID
)

var tagNames = [...]string{
	TagEmpty:     "EMPTY",
	TagNull:      "NULL",
	TagI2:        "I2",
	TagI4:        "I4",
	TagR4:        "R4",
	TagR8:        "R8",
	TagDate:      "DATE",
	TagTM:        "TM",
	TagPStr:      "PSTR",
	TagInterface: "INTERFACE",
	TagError:     "ERROR",
	TagBool:      "BOOL",
	TagVariant:   "VARIANT",
	TagI1:        "I1",
	TagUI1:       "UI1",
	TagUI2:       "UI2",
	TagUI4:       "UI4",
	TagI8:        "I8",
	TagUI8:       "UI8",
	TagInt:       "INT",
	TagUInt:      "UINT",
	TagHResult:   "HRESULT",
	TagPWStr:     "PWSTR",
	TagBlob:      "BLOB",
	TagCLSID:     "CLSID",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "TAG(" + strconv.Itoa(int(t)) + ")"
}

// Supported reports whether Decode accepts records with this tag.
func (t Tag) Supported() bool {
	switch t {
	case TagBool, TagI2, TagI4, TagUI1, TagR4, TagR8,
		TagPWStr, TagPStr, TagBlob, TagError, TagEmpty:
		return true
	}
	return false
}

// HasPayloadPointer reports whether the record payload is a pointer to a
// host buffer rather than an inline scalar.
func (t Tag) HasPayloadPointer() bool {
	return t == TagPWStr || t == TagPStr || t == TagBlob
}
