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

// odictreplay applies a YAML script of operations to an ordered map and
// prints the resulting entries in order.
package main

import (
	"flag"
	"io"
	"os"

	"github.com/cockroachdb/odict"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	scriptPath := flag.String("script", "", "path to the YAML script (default stdin)")
	reverse := flag.Bool("reverse", false, "print the entries in reverse order")
	verify := flag.Bool("verify", false, "check that reducing and replaying the map reproduces it")
	verbose := flag.Bool("v", false, "log every operation")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var in io.Reader = os.Stdin
	if *scriptPath != "" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			log.Fatal().Err(err).Msg("opening script")
		}
		defer f.Close()
		in = f
	}

	if err := replay(in, os.Stdout, *reverse, *verify, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}
}

func replay(in io.Reader, out io.Writer, reverse, verify bool, logger zerolog.Logger) error {
	s, err := parseScript(in)
	if err != nil {
		return err
	}
	m := odict.NewOrdered[string, string](0, odict.WithLogger[string, string](logger))
	if err := s.run(m, logger); err != nil {
		return err
	}
	logger.Info().Int("ops", len(s.Ops)).Int("len", m.Len()).Msg("script applied")
	if verify {
		if err := verifyReplay(m); err != nil {
			return err
		}
		logger.Info().Msg("reduce/replay verified")
	}
	return printItems(out, m, reverse)
}
