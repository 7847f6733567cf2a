package protocol

import "strings"

// Status tags every Response.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusError         Status = "error"
	StatusAuthenticated Status = "authenticated"
	StatusLogInfo       Status = "log_info"
	StatusLogWarn       Status = "log_warn"
	StatusLogError      Status = "log_error"
	StatusLogDebug      Status = "log_debug"
	StatusPlayerEvent   Status = "player_event"
	StatusStatusUpdate  Status = "status_update"
)

// Reserved identifiers.
const (
	BroadcastIdentifier     = 0  // unsolicited pushes
	ProtocolErrorIdentifier = -1 // requests that could not be decoded
)

// Well-known command names handled by the server itself.
const (
	CmdConfig  = "config"
	CmdAuth    = "auth"
	CmdHello   = "hello"
	CmdStatus  = "status"
	CmdPlayers = "players"
	CmdBanList = "banlist"
	CmdBanInfo = "baninfo"
	CmdBan     = "ban"
	CmdUnban   = "unban"
	CmdHelp    = "help"
)

// Request is one client message.
type Request struct {
	Command    string   `json:"Command"`
	Args       []string `json:"Args,omitempty"`
	Password   *string  `json:"Password,omitempty"`
	Name       *string  `json:"Name,omitempty"`
	Identifier int      `json:"Identifier"`
}

// CommandLine joins the command and its arguments for pass-through
// execution.
func (r *Request) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// NormalizedCommand is the lower-cased command name used for routing.
func (r *Request) NormalizedCommand() string {
	return strings.ToLower(strings.TrimSpace(r.Command))
}

// PasswordValue returns the password or "" when absent.
func (r *Request) PasswordValue() string {
	if r.Password == nil {
		return ""
	}
	return *r.Password
}

// NameValue returns the name or "" when absent.
func (r *Request) NameValue() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// Response is one server message, either a reply or a broadcast.
type Response struct {
	Identifier int            `json:"Identifier"`
	Status     Status         `json:"Status"`
	Message    string         `json:"Message"`
	Data       map[string]any `json:"Data,omitempty"`
	Debug      bool           `json:"Debug,omitempty"`
	Command    string         `json:"Command,omitempty"`
}

// NewResponse builds a reply correlated with req.
func NewResponse(req *Request, status Status, message string) *Response {
	resp := &Response{Status: status, Message: message}
	if req != nil {
		resp.Identifier = req.Identifier
		resp.Command = req.Command
	}
	return resp
}

// ErrorResponse builds an error reply correlated with req.
func ErrorResponse(req *Request, message string) *Response {
	return NewResponse(req, StatusError, message)
}

// ProtocolError builds the reply sent when a message could not be decoded.
func ProtocolError(message string) *Response {
	return &Response{
		Identifier: ProtocolErrorIdentifier,
		Status:     StatusError,
		Message:    message,
	}
}

// WithData attaches data and returns the response for chaining.
func (r *Response) WithData(data map[string]any) *Response {
	r.Data = data
	return r
}

// IsBroadcast reports whether the response is an unsolicited push.
func (r *Response) IsBroadcast() bool {
	return r.Identifier == BroadcastIdentifier && r.Command == ""
}

// Str is a helper for building optional string fields.
func Str(s string) *string {
	return &s
}
