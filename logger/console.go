package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

var levelStyles = map[string]struct {
	short string
	color int
}{
	"trace": {"TRC", 90},
	"debug": {"DBG", 36},
	"info":  {"INF", 32},
	"warn":  {"WRN", 33},
	"error": {"ERR", 31},
	"fatal": {"FTL", 35},
}

// consoleWriter prints "[SVC][LVL] message key:value". SVC is the upper-cased
// first three letters of the service name, omitted for short names.
func consoleWriter(w io.Writer, service string, noColor bool) zerolog.ConsoleWriter {
	paint := func(code int, s string) string {
		if noColor {
			return s
		}
		return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
	}
	var tag string
	if len(service) >= 3 && service != "default" {
		tag = paint(34, "["+strings.ToUpper(service[:3])+"]")
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: "15:04:05",
		FormatLevel: func(i any) string {
			name, _ := i.(string)
			st, ok := levelStyles[name]
			if !ok {
				return tag + "[" + strings.ToUpper(name) + "]"
			}
			return tag + paint(st.color, "["+st.short+"]")
		},
		FormatFieldName: func(i any) string { return fmt.Sprint(i) + ":" },
	}
}
