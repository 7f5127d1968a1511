package contracts

import "strconv"

// FormulaValue is the universal runtime value flowing through evaluation:
// float64, string, bool, nil (empty cell) or ErrorValue.
type FormulaValue = any

// ErrorValue is a terminal, displayable evaluation error. It propagates
// through operators and function arguments instead of aborting evaluation.
type ErrorValue string

const (
	DivisionByZeroError ErrorValue = "#DIV/0!"
	ValueError          ErrorValue = "#VALUE!"
	NameError           ErrorValue = "#NAME?"
	NotAvailableError   ErrorValue = "#N/A"
	CircularError       ErrorValue = "#CIRC!"
)

func (e ErrorValue) String() string {
	return string(e)
}

func IsErrorValue(v FormulaValue) bool {
	_, ok := v.(ErrorValue)
	return ok
}

// FormatValue renders a FormulaValue the way it is displayed in a cell.
// Numbers print without trailing zeros, empty cells print as empty string.
func FormatValue(v FormulaValue) string {
	switch value := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		if value {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return value
	case ErrorValue:
		return string(value)
	default:
		return ""
	}
}

// ValueKind tags a WireValue payload.
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindNumber
	KindText
	KindBool
	KindError
)

// WireValue is the serializable form of a FormulaValue, used for stored
// cells and batch worker messages. A tagged struct avoids the ambiguity of
// decoding `any` from the wire.
type WireValue struct {
	Kind   ValueKind `cbor:"k"`
	Number float64   `cbor:"n,omitempty"`
	Text   string    `cbor:"t,omitempty"`
	Bool   bool      `cbor:"b,omitempty"`
}

func EncodeValue(v FormulaValue) WireValue {
	switch value := v.(type) {
	case nil:
		return WireValue{Kind: KindEmpty}
	case float64:
		return WireValue{Kind: KindNumber, Number: value}
	case string:
		return WireValue{Kind: KindText, Text: value}
	case bool:
		return WireValue{Kind: KindBool, Bool: value}
	case ErrorValue:
		return WireValue{Kind: KindError, Text: string(value)}
	default:
		return WireValue{Kind: KindEmpty}
	}
}

func (w WireValue) Decode() FormulaValue {
	switch w.Kind {
	case KindNumber:
		return w.Number
	case KindText:
		return w.Text
	case KindBool:
		return w.Bool
	case KindError:
		return ErrorValue(w.Text)
	default:
		return nil
	}
}
