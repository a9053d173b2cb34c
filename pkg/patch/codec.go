package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Decode parses an RFC 6902 document into a Patch and validates every
// operation. Validation failures are reported as *OpError with the index of
// the offending operation.
func Decode(data []byte) (Patch, error) {
	var raw jsonpatch.Patch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	p := make(Patch, 0, len(raw))
	for i, rop := range raw {
		op, err := fromWire(rop)
		if err == nil {
			err = op.Validate()
		}
		if err != nil {
			return nil, &OpError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
		p = append(p, op)
	}
	return p, nil
}

func fromWire(rop jsonpatch.Operation) (Operation, error) {
	op := Operation{Op: Op(rop.Kind())}

	path, err := rop.Path()
	if err != nil {
		return op, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	op.Path = path

	if op.Op == Move || op.Op == Copy {
		from, err := rop.From()
		if err != nil {
			return op, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
		}
		op.From = from
	}

	if raw, ok := rop["value"]; ok {
		op.HasValue = true
		if raw != nil {
			// Numbers decode as float64, like stored fields.
			var v any
			if err := json.Unmarshal(*raw, &v); err != nil {
				return op, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
			}
			op.Value = v
		}
	}
	return op, nil
}

// Encode renders the patch in RFC 6902 wire format.
func Encode(p Patch) ([]byte, error) {
	if p == nil {
		p = Patch{}
	}
	return json.Marshal(p)
}
