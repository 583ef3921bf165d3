// Copyright 2019 Andromeda. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build gofuzz
// +build gofuzz

package andromeda

import (
	"io/ioutil"

	"github.com/secrary/andromeda/log"
)

// Fuzz exercises the two binary decoders with the same corpus.
func Fuzz(data []byte) int {
	score := 0

	if _, err := DecodeXML(data); err == nil {
		score = 1
	}

	logger := log.NewHelper(log.NewFilter(log.NewStdLogger(ioutil.Discard),
		log.FilterLevel(log.LevelFatal)))
	if dex, err := NewDex("fuzz.dex", data, logger); err == nil {
		dex.CreateFullIR()
		score = 1
	}

	return score
}
