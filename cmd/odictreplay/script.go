// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/cockroachdb/odict"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// script is a sequence of operations applied to an ordered map, e.g.
//
//	attrs:
//	  owner: alice
//	ops:
//	  - {op: put, key: a, value: "1"}
//	  - {op: move_to_end, key: a, last: false}
//	  - {op: popitem}
type script struct {
	Attrs map[string]string `yaml:"attrs"`
	Ops   []op              `yaml:"ops"`
}

type op struct {
	Op    string `yaml:"op"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	// Last defaults to true for move_to_end and popitem.
	Last *bool `yaml:"last"`
	// Default is returned by pop when the key is missing. Without it, pop of
	// a missing key reports not found.
	Default *string `yaml:"default"`
}

func (o op) last() bool {
	return o.Last == nil || *o.Last
}

func parseScript(r io.Reader) (*script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s script
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return &s, nil
}

// run applies the operations of s to m in order. Operations on missing keys
// and popitem on an empty map are logged and skipped. Any other error stops
// the script.
func (s *script) run(m *odict.OrderedMap[string, string], logger zerolog.Logger) error {
	if len(s.Attrs) > 0 {
		attrs := m.Attrs()
		for k, v := range s.Attrs {
			attrs[k] = v
		}
	}
	for i, o := range s.Ops {
		l := logger.With().Int("step", i).Str("op", o.Op).Logger()
		err := o.apply(m, l)
		switch {
		case err == nil:
		case errors.Is(err, odict.ErrNotFound), errors.Is(err, odict.ErrEmpty):
			l.Warn().Err(err).Msg("skipped")
		default:
			return fmt.Errorf("step %d (%s): %w", i, o.Op, err)
		}
	}
	return nil
}

func (o op) apply(m *odict.OrderedMap[string, string], l zerolog.Logger) error {
	switch o.Op {
	case "put":
		if err := m.Put(o.Key, o.Value); err != nil {
			return err
		}
		l.Debug().Str("key", o.Key).Str("value", o.Value).Int("len", m.Len()).Msg("put")
	case "delete":
		if err := m.Delete(o.Key); err != nil {
			return err
		}
		l.Debug().Str("key", o.Key).Int("len", m.Len()).Msg("deleted")
	case "pop":
		var v string
		var err error
		if o.Default != nil {
			v, err = m.PopDefault(o.Key, *o.Default)
		} else {
			v, err = m.Pop(o.Key)
		}
		if err != nil {
			return err
		}
		l.Debug().Str("key", o.Key).Str("value", v).Msg("popped")
	case "move_to_end":
		if err := m.MoveToEnd(o.Key, o.last()); err != nil {
			return err
		}
		l.Debug().Str("key", o.Key).Bool("last", o.last()).Msg("moved")
	case "popitem":
		k, v, err := m.PopItem(o.last())
		if err != nil {
			return err
		}
		l.Debug().Str("key", k).Str("value", v).Bool("last", o.last()).Msg("popped item")
	case "clear":
		m.Clear()
		l.Debug().Msg("cleared")
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}
	return nil
}

// verifyReplay reduces m, replays the reduction and checks that the result
// is equal to m, including order and attributes.
func verifyReplay(m *odict.OrderedMap[string, string]) error {
	c, err := m.Reduce().Replay()
	if err != nil {
		return fmt.Errorf("replaying: %w", err)
	}
	return compareReplayed(m, c)
}

// compareReplayed returns an error describing the first difference between
// m and its replayed copy c.
func compareReplayed(m, c *odict.OrderedMap[string, string]) error {
	ok, err := m.Equal(c, func(a, b string) bool { return a == b })
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("replayed map %s differs from %s", c, m)
	}
	sameAttr := func(a, b any) bool { return fmt.Sprint(a) == fmt.Sprint(b) }
	if !maps.EqualFunc(m.Attrs(), c.Attrs(), sameAttr) {
		return fmt.Errorf("replayed attributes %v differ from %v", c.Attrs(), m.Attrs())
	}
	return nil
}

// printItems writes the entries of m, one per line, in order or in reverse.
func printItems(w io.Writer, m *odict.OrderedMap[string, string], reverse bool) error {
	it := m.Iter()
	if reverse {
		it = m.Reversed()
	}
	for it.Next() {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Err()
}
