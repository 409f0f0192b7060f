package blocks

// SchemaVersion defines version of the schema.
type SchemaVersion uint64

// Schema versions.
const (
	TableV0 SchemaVersion = iota
)

// Hash represents structural checksum.
type Hash uint64

// TableSubject defines an identifier used to detect if metadata area exists on the device.
const TableSubject uint64 = 0b0101001101010011010101000101010001000001010000100100110001000101
