package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"

	"mfkey/internal/recovery"
	"mfkey/internal/session"
)

func main() {
	keyHex := flag.String("key", "A1B2C3D4E5F6", "48-bit sector key in hex")
	uid := flag.Uint("uid", 0x2A234F80, "card uid")
	sector := flag.String("sector", "0", "sector label")
	keyType := flag.String("type", "A", "key type label")
	n := flag.Int("n", 1, "capture lines to write")
	seed := flag.Uint64("seed", 1, "nonce seed")
	flag.Parse()

	key, err := strconv.ParseUint(*keyHex, 16, 48)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad key %q: %v\n", *keyHex, err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewPCG(*seed, key))
	for range *n {
		s := session.Session{
			Sector:  *sector,
			KeyType: *keyType,
			Params:  recovery.Simulate(key, uint32(*uid), rng.Uint32(), rng.Uint32(), rng.Uint32(), rng.Uint32()),
		}
		fmt.Println(session.FormatLine(s))
	}
}
