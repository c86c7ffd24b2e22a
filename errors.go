package sparse

import (
	"github.com/scigolib/sparse/internal/format"
	"github.com/scigolib/sparse/internal/utils"
)

// ParseError reports a semantic failure of the sparse format: bad
// magic, unsupported version, wrong structure sizes, an unknown chunk
// type, or a checksum mismatch. Match with errors.As.
type ParseError = format.ParseError

// IoError reports an underlying source or sink failure. It wraps the
// original error; match the cause with errors.Is/As.
type IoError = utils.IoError
