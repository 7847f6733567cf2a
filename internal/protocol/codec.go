package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxMessageSize bounds one framed message on either transport.
const MaxMessageSize = 1024 * 1024

var (
	ErrDecode          = errors.New("invalid request payload")
	ErrEmptyCommand    = errors.New("request has no command")
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
)

// DecodeRequest parses one JSON request. On failure it returns a nil
// request, never a partially populated one.
func DecodeRequest(data []byte) (*Request, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrDecode)
	}
	if len(data) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if strings.TrimSpace(req.Command) == "" {
		return nil, ErrEmptyCommand
	}
	return &req, nil
}

// EncodeRequest is the client-side counterpart of DecodeRequest.
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// EncodeResponse serializes a response.
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// DecodeResponse parses one JSON response, used by clients and tests.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(data), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &resp, nil
}

// LineReader reads newline-delimited frames from the raw TCP transport.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the next frame without its trailing "\r\n" or "\n".
// Oversized lines are drained and reported as ErrMessageTooLarge so the
// caller can answer and keep the connection.
func (l *LineReader) ReadLine() ([]byte, error) {
	var line []byte
	tooLarge := false
	for {
		chunk, err := l.r.ReadSlice('\n')
		if !tooLarge {
			if len(line)+len(chunk) > MaxMessageSize+2 {
				tooLarge = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 && !tooLarge {
			// final unterminated frame
			return bytes.TrimRight(line, "\r\n"), nil
		}
		return nil, err
	}
	if tooLarge {
		return nil, ErrMessageTooLarge
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// AppendFrame terminates an encoded message for the raw TCP transport.
func AppendFrame(data []byte) []byte {
	return append(data, '\n')
}
