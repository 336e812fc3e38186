package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// patternFormatter renders a logrus entry against a printf-free template
// supporting %time, %level, %field, %msg and %caller placeholders. It is
// selected by Config.Format == "pattern"; "text" and "json" use logrus's
// own formatters instead.
type patternFormatter struct {
	pattern string
	time    string
}

func (f *patternFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.Replace(output, "%caller", getCaller(entry), 1)
	output += "\n"
	return []byte(output), nil
}

func getCaller(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := entry.Caller.File
	if idx := strings.LastIndex(file, "/"); idx != -1 && idx+1 < len(file) {
		file = file[idx+1:]
	}
	pkg := ""
	if entry.Caller.Function != "" {
		funcParts := strings.Split(entry.Caller.Function, ".")
		pkgParts := strings.Split(funcParts[0], "/")
		pkg = pkgParts[len(pkgParts)-1]
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, entry.Caller.Line)
}

func buildFields(entry *logrus.Entry) string {
	fields := make([]string, 0, len(entry.Data))
	for key, val := range entry.Data {
		s, ok := val.(string)
		if !ok {
			s = fmt.Sprint(val)
		}
		fields = append(fields, key+"="+s)
	}
	return strings.Join(fields, ",")
}
