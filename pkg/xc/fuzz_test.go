// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// TestFuzzDecodeRandomGeometry decodes well-formed packets of random geometry
// and random field values, checking every coherence against its definition.
func TestFuzzDecodeRandomGeometry(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	widths := []int{4, 8, 16}
	for round := 0; round < rounds; round++ {
		bps := widths[rng.Intn(len(widths))]
		n := bps / 4
		nlines := 2 + rng.Intn(7)
		autoLag := 1 + rng.Intn(4)
		crossLag := 1 + rng.Intn(3)
		nbase := nlines * (nlines - 1) / 2
		crossWidth := 2*crossLag - 1
		maxValue := uint64(1)<<(4*n) - 1

		header := testHeader(bps, nlines, 8, autoLag, crossLag, 0xF, 1000)
		nfields := nlines + nlines*autoLag + nbase*crossWidth
		fields := make([]uint64, nfields)
		for i := range fields {
			fields[i] = rng.Uint64() % (maxValue + 1)
		}
		data := testFrame(header, n, fields)

		p := &Packet{NLines: nlines, NBaselines: nbase, BPS: bps}
		p.Counts = make([]uint64, nlines)
		p.Autocorrelations = allocSamples(nlines, autoLag)
		p.Crosscorrelations = allocSamples(nbase, crossWidth)

		if err := decodePacket(data, p, autoLag, crossLag, bps); err != nil {
			t.Fatalf("round %d: decodePacket failed: %v", round, err)
		}

		for x := 0; x < nlines; x++ {
			counts := fields[x]
			if counts == 0 {
				counts = 1
			}
			if p.Counts[x] != counts {
				t.Fatalf("round %d: Counts[%d] = %d, want %d", round, x, p.Counts[x], counts)
			}
			for y := 0; y < autoLag; y++ {
				v := fields[nlines+x*autoLag+y]
				c := p.Autocorrelations[x].Correlations[y]
				if c.Correlations != v {
					t.Fatalf("round %d: auto[%d][%d] = %d, want %d", round, x, y, c.Correlations, v)
				}
				if c.Coherence != float64(v)/float64(counts) {
					t.Fatalf("round %d: auto[%d][%d] coherence = %v", round, x, y, c.Coherence)
				}
				if c.Coherence < 0 {
					t.Fatalf("round %d: negative coherence", round)
				}
			}
		}
	}
}

// TestFuzzReaderGarbage feeds random bytes through the frame reader: it must
// never panic, and anything it accepts must be exactly one terminated packet.
func TestFuzzReaderGarbage(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds() / 10

	for round := 0; round < rounds; round++ {
		d, tr := negotiated(t, smallHeader())

		junk := make([]byte, 1+rng.Intn(256))
		for i := range junk {
			if rng.Intn(8) == 0 {
				junk[i] = Terminator
			} else {
				junk[i] = byte(rng.Intn(256))
			}
		}
		tr.QueueFrame(junk)

		data, err := d.readValidPacket(nil)
		if err != nil && err != ErrTimeout {
			t.Fatalf("round %d: readValidPacket = %v", round, err)
		}
		if data != nil {
			if len(data) != d.PacketSize() {
				t.Fatalf("round %d: accepted %d bytes, want %d", round, len(data), d.PacketSize())
			}
			if data[len(data)-1] != Terminator {
				t.Fatalf("round %d: accepted unterminated packet %q", round, data)
			}
		}
	}
}

// TestFuzzPropertiesRoundTrip formats random geometries into headers and
// parses them back.
func TestFuzzPropertiesRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		want := properties{
			bps:          4 * (1 + rng.Intn(4)),
			nlines:       1 + rng.Intn(256),
			delaySize:    rng.Intn(1 << 12),
			autoLagSize:  1 + rng.Intn(256),
			crossLagSize: 1 + rng.Intn(256),
			flags:        uint(rng.Intn(16)),
			tau:          uint64(rng.Intn(1 << 16)),
		}
		header := testHeader(want.bps, want.nlines, want.delaySize,
			want.autoLagSize, want.crossLagSize, int(want.flags), want.tau)

		got, err := parseProperties(header)
		if err != nil {
			t.Fatalf("round %d: parseProperties(%q) failed: %v", round, header, err)
		}
		if *got != want {
			t.Fatalf("round %d: parseProperties(%q) = %+v, want %+v", round, header, *got, want)
		}
	}
}
