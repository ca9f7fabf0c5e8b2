package main

import (
	"fmt"
	"strings"
)

// verb is the action selected by the flag form of the command line
type verb int

const (
	verbNone verb = iota
	verbList
	verbRemove
	verbZip
	verbFetch
)

func (v verb) String() string {
	switch v {
	case verbList:
		return "list"
	case verbRemove:
		return "remove"
	case verbZip:
		return "zip"
	case verbFetch:
		return "fetch"
	}
	return "none"
}

// arity is the number of positional arguments the verb takes
func (v verb) arity() int {
	switch v {
	case verbRemove:
		return 1
	case verbZip, verbFetch:
		return 3
	}
	return 0
}

// usage names the positional arguments of the verb
func (v verb) usage() string {
	switch v {
	case verbRemove:
		return "ID"
	case verbZip:
		return "SOURCE NAME PASSWORD"
	case verbFetch:
		return "ID DESTINATION PASSWORD"
	}
	return ""
}

// verbFlags holds the values of the verb flags
type verbFlags struct {
	list   bool
	remove bool
	zip    bool
	fetch  bool
}

// selectVerb returns the single verb requested by flags and checks its
// argument count. verbNone means no verb flag was given.
func selectVerb(flags verbFlags, args []string) (verb, error) {
	var selected []verb
	if flags.list {
		selected = append(selected, verbList)
	}
	if flags.remove {
		selected = append(selected, verbRemove)
	}
	if flags.zip {
		selected = append(selected, verbZip)
	}
	if flags.fetch {
		selected = append(selected, verbFetch)
	}

	switch len(selected) {
	case 0:
		if len(args) > 0 {
			return verbNone, fmt.Errorf("unknown command %q", args[0])
		}
		return verbNone, nil
	case 1:
	default:
		names := make([]string, len(selected))
		for i, v := range selected {
			names[i] = "--" + v.String()
		}
		return verbNone, fmt.Errorf("only one action may be given, got %s", strings.Join(names, ", "))
	}

	v := selected[0]
	if len(args) != v.arity() {
		if v.arity() == 0 {
			return verbNone, fmt.Errorf("--%s takes no arguments, got %d", v, len(args))
		}
		return verbNone, fmt.Errorf("--%s expects %s, got %d argument(s)", v, v.usage(), len(args))
	}
	return v, nil
}
