package nn

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

const (
	kindAuto   = "auto"
	kindKDTree = "kdtree"
	kindBrute  = "brute"
)

type tableOptions struct {
	source       string
	dimensions   []string
	weights      map[string]float64
	kind         string
	parallel     int
	autoParallel bool
}

// parseTableOptions reads the USING kdnn(...) arguments. The first bare
// argument names the points table; the rest are key=value pairs.
func parseTableOptions(args []string) (tableOptions, error) {
	opts := tableOptions{kind: kindAuto}
	for _, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			if opts.source == "" {
				opts.source = unquote(a)
			}
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := unquote(strings.TrimSpace(parts[1]))
		switch {
		case key == "source":
			opts.source = val
		case key == "dimensions" || key == "dims":
			opts.dimensions = splitList(val)
		case key == "weights":
			for _, pair := range splitList(val) {
				name, w, ok := strings.Cut(pair, ":")
				if !ok {
					name, w, ok = strings.Cut(pair, "=")
				}
				if !ok {
					return opts, fmt.Errorf("kdnn: invalid weight %q, want name=value", pair)
				}
				if err := opts.setWeight(name, w); err != nil {
					return opts, err
				}
			}
		case strings.HasPrefix(key, "weight_"):
			if err := opts.setWeight(strings.TrimPrefix(key, "weight_"), val); err != nil {
				return opts, err
			}
		case key == "index":
			switch strings.ToLower(val) {
			case kindKDTree, "kd", kindBrute, kindAuto:
				opts.kind = strings.ToLower(val)
				if opts.kind == "kd" {
					opts.kind = kindKDTree
				}
			}
		case key == "parallel":
			lower := strings.ToLower(val)
			switch lower {
			case "", "0", "off":
				opts.parallel = 0
				opts.autoParallel = false
			case "auto":
				opts.autoParallel = true
				opts.parallel = 0
			default:
				if n, err := strconv.Atoi(lower); err == nil {
					opts.parallel = max(n, 0)
					opts.autoParallel = false
				}
			}
		}
	}
	if opts.source == "" {
		return opts, fmt.Errorf("kdnn: points table argument is required")
	}
	if len(opts.dimensions) == 0 {
		return opts, fmt.Errorf("kdnn: dimensions argument is required")
	}
	return opts, nil
}

func (o *tableOptions) setWeight(name, value string) error {
	name = strings.TrimSpace(name)
	w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("kdnn: invalid weight for %q: %w", name, err)
	}
	if o.weights == nil {
		o.weights = map[string]float64{}
	}
	o.weights[name] = w
	return nil
}

func (o tableOptions) buildParallelism() int {
	if o.autoParallel {
		return runtime.GOMAXPROCS(0)
	}
	return o.parallel
}

// resolveKind maps auto to the k-d tree. Brute force scans in insertion
// order, so among equidistant records it returns the first inserted one,
// while the tree returns the first in node, left, right order.
func (o tableOptions) resolveKind() string {
	if o.kind == kindBrute {
		return kindBrute
	}
	return kindKDTree
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ';' || r == ' '
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
