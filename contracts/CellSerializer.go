package contracts

// CellSerializer frames one cell record for storage: raw input text plus the
// last computed value.
type CellSerializer interface {
	Marshal(raw string, value WireValue) []byte
	Unmarshal(data []byte) (raw string, value WireValue, err error)
}
