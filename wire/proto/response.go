package proto

import (
	"errors"
	"fmt"

	"github.com/fentonlabs/daxc/wire/cbe"
	"github.com/fentonlabs/daxc/wire/common"
)

// DecodeReply splits a buffered reply into its error descriptor and body.
// A non-zero status in the descriptor surfaces as *common.ServerError
// before the body is touched. Truncated input keeps cbe.ErrTruncated in
// the error chain so a buffering caller can distinguish "read more" from
// corruption.
func DecodeReply(b []byte) (cbe.Value, error) {
	desc, rest, err := cbe.Decode(b)
	if err != nil {
		return cbe.Value{}, wrapDecodeErr(err)
	}
	if desc.Kind != cbe.KindSequence {
		return cbe.Value{}, fmt.Errorf("%w: error descriptor is %s, want sequence", common.ErrMalformedEncoding, desc.Kind)
	}
	if len(desc.Seq) > 0 {
		if serr := serverError(desc.Seq); serr != nil {
			return cbe.Value{}, serr
		}
	}

	body, _, err := cbe.Decode(rest)
	if err != nil {
		return cbe.Value{}, wrapDecodeErr(err)
	}
	return body, nil
}

// serverError interprets a non-empty error descriptor. A leading zero
// status means success and yields nil.
func serverError(seq []cbe.Value) error {
	var status int64
	switch seq[0].Kind {
	case cbe.KindUint:
		status = int64(seq[0].Uint)
	case cbe.KindNegInt:
		status = seq[0].Neg
	default:
		return fmt.Errorf("%w: error descriptor status is %s", common.ErrMalformedEncoding, seq[0].Kind)
	}
	if status == 0 {
		return nil
	}

	serr := &common.ServerError{Status: status}
	if len(seq) > 1 && seq[1].Kind == cbe.KindText {
		serr.Message = seq[1].Text
	}
	if len(seq) > 2 && seq[2].Kind == cbe.KindText {
		serr.RequestID = seq[2].Text
	}
	return serr
}

func wrapDecodeErr(err error) error {
	if errors.Is(err, cbe.ErrTruncated) {
		return fmt.Errorf("%w: %w", common.ErrMalformedEncoding, err)
	}
	return fmt.Errorf("%w: %v", common.ErrMalformedEncoding, err)
}
