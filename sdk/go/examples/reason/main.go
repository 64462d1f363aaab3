package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ProofFlow-Chain/sdk/go/proofflow"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "ProofFlow API base URL")
	question := flag.String("question", "Is BTC bullish this week?", "question to reason about")
	address := flag.String("address", "", "optional requester address for the reward credential")
	flag.Parse()

	client, err := proofflow.NewClient(*baseURL, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	result, err := client.Reason(ctx, proofflow.ReasonRequest{Question: *question, RequesterAddress: *address})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("proof %s registered with %d steps (status=%s)\n", result.ProofID, result.TotalSteps, result.Status)
	fmt.Printf("answer: %s\n", result.Answer)

	confirmed, err := client.WaitUntilConfirmed(ctx, result.ProofID, 2*time.Second)
	if err != nil {
		log.Fatalf("proof %s not confirmed: %v", result.ProofID, err)
	}
	fmt.Printf("anchored on %s, root %s\n", confirmed.ConsensusLogID, confirmed.RootHash)

	report, err := client.Verify(ctx, result.ProofID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("verification valid=%v\n", report.Valid)
}
