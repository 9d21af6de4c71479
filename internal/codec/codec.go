// Package codec converts file bodies between text and the base64 form the
// hosting APIs require on the wire.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when an encoded blob is not valid base64.
var ErrMalformed = errors.New("malformed encoded content")

// whitespace is stripped before decoding. GitHub wraps base64 bodies at
// 60 columns with "\n".
var whitespace = strings.NewReplacer("\n", "", "\r", "", " ", "", "\t", "")

// Encode returns the transport form of content.
func Encode(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

// EncodeString is Encode for text content.
func EncodeString(text string) string {
	return Encode([]byte(text))
}

// Decode reverses Encode. ASCII whitespace inside the blob is ignored.
func Decode(encoded string) ([]byte, error) {
	compact := whitespace.Replace(encoded)
	out, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// DecodeString is Decode returning text.
func DecodeString(encoded string) (string, error) {
	out, err := Decode(encoded)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
