package state

// Options is the set of shell option flags plus the parser-mode string
// option. Flag names follow set -o spelling.
type Options struct {
	flags      map[string]bool
	ParserMode string
}

// optionNames is the full set of recognised flags; unknown names are
// rejected by Set.
var optionNames = []string{
	"allexport", "braceexpand", "emacs", "errexit", "errtrace", "functrace",
	"hashall", "histexpand", "history", "ignoreeof", "interactive-comments",
	"keyword", "monitor", "noclobber", "noexec", "noglob", "nolog", "notify",
	"nounset", "onecmd", "physical", "pipefail", "posix", "privileged",
	"verbose", "vi", "xtrace",
	// shopt-style flags folded into the same table
	"nullglob", "dotglob", "extglob", "globstar", "nocaseglob", "nocasematch",
	"expand_aliases", "lastpipe",
}

// shortOptions maps the single-letter set flags onto their long names.
var shortOptions = map[byte]string{
	'e': "errexit",
	'u': "nounset",
	'x': "xtrace",
	'f': "noglob",
	'C': "noclobber",
	'n': "noexec",
	'v': "verbose",
	'a': "allexport",
	'm': "monitor",
	'b': "notify",
	'k': "keyword",
	'E': "errtrace",
	'T': "functrace",
	'B': "braceexpand",
}

// NewOptions returns the default option set.
func NewOptions() *Options {
	o := &Options{flags: make(map[string]bool, len(optionNames))}
	for _, name := range optionNames {
		o.flags[name] = false
	}
	o.flags["braceexpand"] = true
	o.flags["hashall"] = true
	o.flags["expand_aliases"] = true
	return o
}

// Get reports the flag value; unknown names are false.
func (o *Options) Get(name string) bool { return o.flags[name] }

// Set changes a flag; unknown names are rejected.
func (o *Options) Set(name string, value bool) bool {
	if _, ok := o.flags[name]; !ok {
		return false
	}
	o.flags[name] = value
	return true
}

// SetShort applies a single-letter option like -e or +x.
func (o *Options) SetShort(c byte, value bool) bool {
	name, ok := shortOptions[c]
	if !ok {
		return false
	}
	return o.Set(name, value)
}

// FlagString renders the $- value: the short letters of every enabled flag.
func (o *Options) FlagString() string {
	var out []byte
	for c, name := range shortOptions {
		if o.flags[name] {
			out = append(out, c)
		}
	}
	// stable order
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return string(out)
}

// Names returns every known option name (for set -o output).
func (o *Options) Names() []string {
	return append([]string(nil), optionNames...)
}

func (o *Options) clone() *Options {
	no := &Options{flags: make(map[string]bool, len(o.flags)), ParserMode: o.ParserMode}
	for k, v := range o.flags {
		no.flags[k] = v
	}
	return no
}
