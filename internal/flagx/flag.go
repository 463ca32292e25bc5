// Package flagx lets several independent flag sets share os.Args: each
// consumer keeps only the flags it understands and parses those.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// configFlags are the spellings accepted for the JSON config path.
var configFlags = []string{"-c", "-config", "--config"}

// FilterArgs returns the subset of args made of allowed flags and their values.
//
// Two spellings are understood:
//
//	-c conf.json          flag and value as separate arguments
//	--config=conf.json    flag and value joined with '='
//
// A separate value is only consumed when it does not itself start with '-'.
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, joined := strings.Cut(arg, "="); joined && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// Parse filters args down to allowedFlags and parses them with fs.
func Parse(fs *flag.FlagSet, args []string, allowedFlags ...string) error {
	return fs.Parse(FilterArgs(args, allowedFlags))
}

// ConfigPath extracts the JSON config path given with -c, -config or --config.
// The last occurrence wins; an empty string means no config file.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = Parse(fs, args, configFlags...)

	return path
}

// JsonConfigFlags is ConfigPath applied to the process arguments.
func JsonConfigFlags() string {
	return ConfigPath(os.Args[1:])
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
