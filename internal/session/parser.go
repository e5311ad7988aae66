package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mfkey/internal/recovery"
)

// capturePrefix starts every capture line; anything else in the log is ignored.
const capturePrefix = "Sec"

var (
	ErrMalformed   = errors.New("malformed capture line")
	ErrNotCapture  = errors.New("not a capture line")
	// ErrLineTooLong marks a line that was skipped unread.
	ErrLineTooLong = errors.New("line too long")
)

// Token positions in "Sec <n> key <A|B> cuid <uid> nt0 <nt0> nr0 <nr0> ar0 <ar0> nt1 <nt1> nr1 <nr1> ar1 <ar1>".
const (
	tokSector  = 1
	tokKeyType = 3
	tokUID     = 5
	tokNT0     = 7
	tokNR0     = 9
	tokAR0     = 11
	tokNT1     = 13
	tokNR1     = 15
	tokAR1     = 17
	minTokens  = tokAR1 + 1
)

// hexFields are read in the argument order of recovery.NewParams.
var hexFields = [...]struct {
	name string
	pos  int
}{
	{"cuid", tokUID},
	{"nt0", tokNT0},
	{"nr0", tokNR0},
	{"ar0", tokAR0},
	{"nt1", tokNT1},
	{"nr1", tokNR1},
	{"ar1", tokAR1},
}

// Session is one capture line: two authentications to the same sector key.
type Session struct {
	Line    int
	Sector  string
	KeyType string
	Params  recovery.Params
}

type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// ParseLine reads the seven hex fields of a capture line. Lines that do not
// start with "Sec" return ErrNotCapture.
func ParseLine(n int, line string) (Session, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, capturePrefix) {
		return Session{}, ErrNotCapture
	}

	tokens := strings.Fields(line)
	if len(tokens) < minTokens {
		return Session{}, &ParseError{
			Line: n,
			Err:  fmt.Errorf("want at least %d tokens, got %d", minTokens, len(tokens)),
		}
	}

	var v [len(hexFields)]uint32
	for i, f := range hexFields {
		x, err := parseHex(tokens[f.pos])
		if err != nil {
			return Session{}, &ParseError{Line: n, Field: f.name, Err: err}
		}
		v[i] = x
	}

	return Session{
		Line:    n,
		Sector:  tokens[tokSector],
		KeyType: tokens[tokKeyType],
		Params:  recovery.NewParams(v[0], v[1], v[2], v[3], v[4], v[5], v[6]),
	}, nil
}

// FormatLine renders a session the way the capture log stores it.
func FormatLine(s Session) string {
	p := s.Params
	return fmt.Sprintf("Sec %s key %s cuid %08x nt0 %08x nr0 %08x ar0 %08x nt1 %08x nr1 %08x ar1 %08x",
		s.Sector, s.KeyType, p.UID, p.NT0, p.NR0Enc, p.AR0Enc, p.NT1, p.NR1Enc, p.AR1Enc)
}

func parseHex(tok string) (uint32, error) {
	tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
	v, err := strconv.ParseUint(tok, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
