package rpcpool

import (
	"fmt"
	"regexp"
	"strconv"
)

// hostRange matches a `host=<prefix>[<lo>-<hi>]<suffix>` endpoint
// descriptor so a single descriptor can expand into one entry per host
// in the range.
var hostRange = regexp.MustCompile(`^(.*?host=[a-zA-Z0-9_.-]+)\[(\d+)-(\d+)\](.*)$`)

// ExpandEndpoints expands every bracketed host range in descriptors into
// one descriptor per integer in the range, zero-padded to the width of the
// range's lower bound, and passes ranged-free descriptors through
// unchanged. Order is preserved: a descriptor's expansion occupies its
// original position, in ascending order.
func ExpandEndpoints(descriptors []string) ([]string, error) {
	var out []string
	for _, d := range descriptors {
		expanded, err := expandOne(d)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func expandOne(descriptor string) ([]string, error) {
	m := hostRange.FindStringSubmatch(descriptor)
	if m == nil {
		return []string{descriptor}, nil
	}

	prefix, startStr, endStr, suffix := m[1], m[2], m[3], m[4]

	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid range start in %q: %w", descriptor, err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid range end in %q: %w", descriptor, err)
	}
	if end < start {
		return nil, fmt.Errorf("invalid range in %q: end %d is before start %d", descriptor, end, start)
	}

	width := len(startStr)

	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, fmt.Sprintf("%s%0*d%s", prefix, width, i, suffix))
	}
	return out, nil
}

// descriptorField matches a single `key=value` field up to the next `:`
// or end of string, within a `tcp:host=<h>:port=<p>` descriptor.
var descriptorField = regexp.MustCompile(`(host|port)=([^:]+)`)

// DialAddr parses a `tcp:host=<h>:port=<p>` endpoint descriptor into a
// `host:port` string suitable for net.Dial / rpc.Dial.
func DialAddr(descriptor string) (string, error) {
	fields := descriptorField.FindAllStringSubmatch(descriptor, -1)
	if fields == nil {
		return "", fmt.Errorf("malformed endpoint descriptor %q", descriptor)
	}

	var host, port string
	for _, f := range fields {
		switch f[1] {
		case "host":
			host = f[2]
		case "port":
			port = f[2]
		}
	}
	if host == "" || port == "" {
		return "", fmt.Errorf("endpoint descriptor %q missing host or port", descriptor)
	}

	return host + ":" + port, nil
}
