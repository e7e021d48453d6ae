package colmap

import (
	"strconv"
	"strings"
)

// Descriptor : a source column type broken into the parts the rules look at.
// "int(10) unsigned zerofill" -> Base "int", Args [10], Unsigned true
type Descriptor struct {
	Raw      string
	Base     string
	Args     []int
	Unsigned bool
}

// Parse : never fails. anything it does not understand ends up in Base and falls through to
// the catch all rule
func Parse(raw string) Descriptor {
	d := Descriptor{Raw: raw}
	s := strings.ToLower(strings.TrimSpace(raw))

	var args string
	if open := strings.Index(s, "("); open >= 0 {
		if close := strings.LastIndex(s, ")"); close > open {
			args = s[open+1 : close]
			s = s[:open] + " " + s[close+1:]
		}
	}

	fields := strings.Fields(s)
	var base []string
	for _, f := range fields {
		switch f {
		case "unsigned":
			d.Unsigned = true
		case "signed", "zerofill":
		default:
			base = append(base, f)
		}
	}
	d.Base = strings.Join(base, " ")

	if args != "" {
		for _, a := range strings.Split(args, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(a))
			if err != nil {
				// enum('a','b') and friends carry no numeric arguments
				d.Args = nil
				break
			}
			d.Args = append(d.Args, n)
		}
	}
	return d
}

// Is : base equals one of names
func (d Descriptor) Is(names ...string) bool {
	for _, n := range names {
		if d.Base == n {
			return true
		}
	}
	return false
}

// Contains : base contains one of the fragments
func (d Descriptor) Contains(fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(d.Base, f) {
			return true
		}
	}
	return false
}

// Width : the single numeric argument, or -1
func (d Descriptor) Width() int {
	if len(d.Args) == 1 {
		return d.Args[0]
	}
	return -1
}
