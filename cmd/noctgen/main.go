// noctgen drives the golden-vector generator, writing the fixed set of
// canonical, bls, and integration test vectors plus their manifest to a
// target directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nocthub/offline-verifier/pkg/golden"
)

var logger = log.New(os.Stderr, "[noctgen] ", log.LstdFlags)

func main() {
	outDir := flag.String("out", "golden_vectors", "directory to write vector categories and MANIFEST.json into")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-out DIR]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := golden.WriteAll(*outDir); err != nil {
		logger.Fatalf("generating vectors: %v", err)
	}
	fmt.Printf("wrote golden vectors to %s\n", *outDir)
}
