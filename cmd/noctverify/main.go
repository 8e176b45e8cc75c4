// noctverify is the offline CLI entrypoint for the verification
// pipeline: it reads a Secret Removal Proof document, runs the
// five-layer pipeline against it, and reports VALID, INVALID, or ERROR
// on stdout and as its exit code.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nocthub/offline-verifier/pkg/config"
	"github.com/nocthub/offline-verifier/pkg/verification"
)

var logger = log.New(os.Stderr, "[noctverify] ", log.LstdFlags)

func main() {
	var (
		jsonOutput = flag.Bool("json", false, "print the full VerificationResult as JSON")
		verbose    = flag.Bool("verbose", false, "print every step, not just the final verdict")
		policyPath = flag.String("policy", "", "path to a YAML VerifierPolicy file restricting trusted policy_id values")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <proof-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := verification.Initialize(); err != nil {
		logger.Printf("startup: %v", err)
		fmt.Println("ERROR")
		os.Exit(1)
	}

	pipeline := verification.Pipeline{}
	if *policyPath != "" {
		policy, err := config.LoadVerifierPolicy(*policyPath)
		if err != nil {
			logger.Printf("loading policy: %v", err)
			fmt.Println("ERROR")
			os.Exit(1)
		}
		pipeline.Policy = policy
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Printf("reading %s: %v", path, err)
		fmt.Println("ERROR")
		os.Exit(1)
	}

	result := pipeline.Verify(raw, time.Now().UTC().Format(time.RFC3339))

	if *jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Printf("marshaling result: %v", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	} else {
		fmt.Println(result.Status)
		if *verbose {
			for _, step := range result.Steps {
				if step.Message != "" {
					fmt.Printf("  %-14s %-8s %s\n", step.Name, step.Status, step.Message)
				} else {
					fmt.Printf("  %-14s %-8s\n", step.Name, step.Status)
				}
			}
		}
	}

	switch result.Status {
	case verification.Valid:
		os.Exit(0)
	default:
		os.Exit(1)
	}
}
