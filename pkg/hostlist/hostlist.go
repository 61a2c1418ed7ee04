// Package hostlist parses and formats Slurm-style compressed host range
// expressions, e.g. "node[01-03,07]", and implements the bitmap
// compressed-list formatter used when projecting a credential's core
// allocation onto a single node ("0-2,7,12-14").
//
// This is the concrete default for the "host-range collaborator" the
// credential package delegates to when it needs a host's position within a
// job's node list.
package hostlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HostList is an ordered, possibly-duplicated list of hostnames, expanded
// from a compressed range expression.
type HostList struct {
	hosts []string
	index map[string]int // first occurrence only
}

// Parse expands a compressed host range expression into a HostList. Plain
// comma-separated names are also accepted. An expression with no bracketed
// range is treated as a single host.
func Parse(expr string) (*HostList, error) {
	if expr == "" {
		return &HostList{index: map[string]int{}}, nil
	}

	var hosts []string
	for _, part := range splitTopLevel(expr) {
		expanded, err := expandPart(part)
		if err != nil {
			return nil, fmt.Errorf("hostlist: %w", err)
		}
		hosts = append(hosts, expanded...)
	}

	hl := &HostList{hosts: hosts, index: make(map[string]int, len(hosts))}
	for i, h := range hosts {
		if _, ok := hl.index[h]; !ok {
			hl.index[h] = i
		}
	}
	return hl, nil
}

// splitTopLevel splits expr on commas that are not inside a bracketed
// range, since ranges themselves contain commas ("node[01,03]").
func splitTopLevel(expr string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range expr {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, expr[start:])
	return parts
}

func expandPart(part string) ([]string, error) {
	lb := strings.IndexByte(part, '[')
	if lb < 0 {
		return []string{part}, nil
	}
	rb := strings.LastIndexByte(part, ']')
	if rb < 0 || rb < lb {
		return nil, fmt.Errorf("malformed range expression %q", part)
	}
	prefix := part[:lb]
	suffix := part[rb+1:]
	body := part[lb+1 : rb]

	var out []string
	for _, rangeExpr := range strings.Split(body, ",") {
		if dash := strings.IndexByte(rangeExpr, '-'); dash > 0 {
			loStr, hiStr := rangeExpr[:dash], rangeExpr[dash+1:]
			lo, err := strconv.Atoi(loStr)
			if err != nil {
				return nil, fmt.Errorf("malformed range bound %q", loStr)
			}
			hi, err := strconv.Atoi(hiStr)
			if err != nil {
				return nil, fmt.Errorf("malformed range bound %q", hiStr)
			}
			width := len(loStr)
			for n := lo; n <= hi; n++ {
				out = append(out, fmt.Sprintf("%s%0*d%s", prefix, width, n, suffix))
			}
		} else {
			n, err := strconv.Atoi(rangeExpr)
			if err != nil {
				return nil, fmt.Errorf("malformed range entry %q", rangeExpr)
			}
			out = append(out, fmt.Sprintf("%s%0*d%s", prefix, len(rangeExpr), n, suffix))
		}
	}
	return out, nil
}

// Len reports the number of hosts in the list.
func (hl *HostList) Len() int { return len(hl.hosts) }

// Hosts returns the expanded host names in job order.
func (hl *HostList) Hosts() []string { return hl.hosts }

// IndexOf returns the 0-based index of name's first occurrence.
//
// ErrHostNotFound is returned if name is absent.
func (hl *HostList) IndexOf(name string) (int, error) {
	if i, ok := hl.index[name]; ok {
		return i, nil
	}
	return -1, fmt.Errorf("hostlist: %w: %s", ErrHostNotFound, name)
}

// ErrHostNotFound is returned by IndexOf when the requested host is not a
// member of the list.
var ErrHostNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "host not in list" }

// FormatCompressedRange renders a sorted slice of non-negative integers in
// Slurm's compressed list form, e.g. [0,1,2,7,12,13,14] -> "0-2,7,12-14".
func FormatCompressedRange(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)

	var sb strings.Builder
	start := sorted[0]
	prev := sorted[0]
	first := true
	flush := func(end int) {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		if start == end {
			fmt.Fprintf(&sb, "%d", start)
		} else {
			fmt.Fprintf(&sb, "%d-%d", start, end)
		}
	}
	for _, n := range sorted[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush(prev)
		start, prev = n, n
	}
	flush(prev)
	return sb.String()
}
