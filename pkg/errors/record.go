package errors

// RecordError is a specialized error type for record decode failures: a CRC
// mismatch or a header buffer too short to decode. It embeds baseError to inherit
// the standard error functionality while adding the location context needed
// to point an operator at the exact byte range that failed to verify.
type RecordError struct {
	*baseError

	fileID uint64 // Segment containing the offending record.
	offset int64  // Byte offset where the record starts.
	key    string // Key of the record being decoded, when known.
}

// NewRecordError creates a new record-specific error.
func NewRecordError(err error, code ErrorCode, msg string) *RecordError {
	return &RecordError{baseError: NewBaseError(err, code, msg)}
}

// WithFileID records which segment the offending record lives in.
func (re *RecordError) WithFileID(fileID uint64) *RecordError {
	re.fileID = fileID
	return re
}

// WithOffset records the byte offset of the offending record.
func (re *RecordError) WithOffset(offset int64) *RecordError {
	re.offset = offset
	return re
}

// WithKey records the key of the offending record, when it is known before
// the CRC check fails.
func (re *RecordError) WithKey(key string) *RecordError {
	re.key = key
	return re
}

// FileID returns the segment id that contained the offending record.
func (re *RecordError) FileID() uint64 { return re.fileID }

// Offset returns the byte offset of the offending record within its segment.
func (re *RecordError) Offset() int64 { return re.offset }

// Key returns the key of the offending record, if known.
func (re *RecordError) Key() string { return re.key }

// NewCorruptRecordError builds the error returned when a record's CRC does
// not match its stored bytes.
func NewCorruptRecordError(err error, fileID uint64, offset int64) *RecordError {
	return NewRecordError(err, ErrorCodeCorrupt, "record failed CRC verification").
		WithFileID(fileID).
		WithOffset(offset)
}

// NewEncodingError builds the front-end error raised when a byte sequence
// expected to be UTF-8 is not. Only CLI-facing code should construct this;
// the engine never raises it.
func NewEncodingError(err error, field string) *ValidationError {
	return NewValidationError(err, ErrorCodeEncoding, "argument is not valid UTF-8").
		WithField(field).
		WithRule("utf8")
}
