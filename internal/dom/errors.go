package dom

import (
	"errors"
	"fmt"
)

// ErrNotWellFormed is matched by every ParseError
var ErrNotWellFormed = errors.New("markup is not well-formed")

// ParseError describes where and why a parse failed
type ParseError struct {
	Offset int
	Pos    Position
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line+1, e.Pos.Ch+1, e.Msg)
}

// Is lets errors.Is(err, ErrNotWellFormed) match any ParseError
func (e *ParseError) Is(target error) bool {
	return target == ErrNotWellFormed
}
