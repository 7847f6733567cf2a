package client

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"rconhub/internal/protocol"
)

// PrintResponse pretty prints one reply or broadcast. Data is printed as
// sorted key/value lines when verbose is set.
func PrintResponse(w io.Writer, resp *protocol.Response, verbose bool) {
	prefix := ""
	if resp.IsBroadcast() {
		prefix = "» "
	}

	switch resp.Status {
	case protocol.StatusSuccess, protocol.StatusAuthenticated:
		color.New(color.FgGreen).Fprintf(w, "%s✓ %s\n", prefix, resp.Message)
	case protocol.StatusError, protocol.StatusLogError:
		color.New(color.FgRed).Fprintf(w, "%s✗ %s\n", prefix, resp.Message)
	case protocol.StatusLogWarn:
		color.New(color.FgYellow).Fprintf(w, "%s⚠ %s\n", prefix, resp.Message)
	case protocol.StatusLogDebug, protocol.StatusStatusUpdate:
		color.New(color.FgHiBlack).Fprintf(w, "%s%s\n", prefix, resp.Message)
	case protocol.StatusPlayerEvent:
		color.New(color.FgCyan).Fprintf(w, "%s🔔 %s\n", prefix, resp.Message)
	default:
		fmt.Fprintf(w, "%s%s\n", prefix, resp.Message)
	}

	if !verbose || len(resp.Data) == 0 {
		return
	}
	keys := make([]string, 0, len(resp.Data))
	for k := range resp.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := resp.Data[k]
		switch v.(type) {
		case map[string]any, []any:
			raw, _ := json.Marshal(v)
			fmt.Fprintf(w, "  %s: %s\n", k, raw)
		default:
			fmt.Fprintf(w, "  %s: %v\n", k, v)
		}
	}
}
