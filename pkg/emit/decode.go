package emit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedArray is returned when text does not hold a well-formed blob array
var ErrMalformedArray = errors.New("malformed blob array")

var declRe = regexp.MustCompile(`const unsigned char ([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\] = \{`)

// Array is a blob array recovered from emitted C text
type Array struct {
	Symbol    string
	Declared  int // declared array size, blob length + 8
	Blob      []byte
	SystemLib bool
}

// DecodeArray parses the first blob array definition in text and checks that
// the declared size and the length header agree with the cells present.
func DecodeArray(text string) (*Array, error) {
	loc := declRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, fmt.Errorf("%w: no array definition found", ErrMalformedArray)
	}
	sym := text[loc[2]:loc[3]]
	declared, err := strconv.Atoi(text[loc[4]:loc[5]])
	if err != nil {
		return nil, fmt.Errorf("%w: array size: %w", ErrMalformedArray, err)
	}

	body := text[loc[1]:]
	end := strings.Index(body, "};")
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated array", ErrMalformedArray)
	}

	var cells []byte
	for _, field := range strings.Split(body[:end], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %d: %w", ErrMalformedArray, len(cells), err)
		}
		cells = append(cells, byte(v))
	}

	if len(cells) != declared {
		return nil, fmt.Errorf("%w: declared %d cells, found %d", ErrMalformedArray, declared, len(cells))
	}
	if len(cells) < lengthBytes {
		return nil, fmt.Errorf("%w: missing length header", ErrMalformedArray)
	}
	n := binary.LittleEndian.Uint64(cells[:lengthBytes])
	if n != uint64(len(cells)-lengthBytes) {
		return nil, fmt.Errorf("%w: length header %d, payload %d", ErrMalformedArray, n, len(cells)-lengthBytes)
	}

	return &Array{
		Symbol:    sym,
		Declared:  declared,
		Blob:      cells[lengthBytes:],
		SystemLib: strings.Contains(text, RegisterFunc+"(\""+sym+"\""),
	}, nil
}
