// Package spark provides a Go client for the Coherent Spark calculation
// engine. It wraps the engine's HTTP API to let callers run calculations
// synchronously or submit large, possibly unbounded datasets for
// asynchronous batch computation, track progress, and drain results without
// holding a single long-lived request open.
//
// Every network-touching operation funnels through a shared request
// executor that owns credential injection, request correlation, retry with
// jittered backoff for the two well-understood transient conditions
// (expired OAuth tokens and rate limiting), and classification of failures
// into typed errors.
//
// Key features:
//   - Asynchronous batch pipelines with explicit open/closed/cancelled
//     lifecycle and duplicate-chunk policies
//   - Automatic chunking of flat datasets into bounded submission units
//   - Configurable credentials: API key, bearer token, or OAuth2
//     client-credentials with cached, lazily refreshed tokens
//   - Typed errors carrying full request/response diagnostics, safe to log
//   - Progressive configuration through functional options or a YAML/env
//     profile
//
// Example usage:
//
//	client, err := spark.New("https://excel.us.coherent.global",
//	    spark.WithTenant("my-tenant"),
//	    spark.WithAPIKey(os.Getenv("SPARK_API_KEY")),
//	)
//	if err != nil {
//	    return err
//	}
//
//	job, err := client.Batch.Create(ctx, &spark.BatchParams{Service: "loans/pricing"})
//	if err != nil {
//	    return err
//	}
//
//	pipeline, _ := client.Batch.Of(job.ID)
//	_, err = pipeline.Push(ctx, &spark.BatchInput{Inputs: dataset})
//	if err != nil {
//	    return err
//	}
//	defer pipeline.Close(ctx)
//
//	for {
//	    results, err := pipeline.Pull(ctx, 100)
//	    if err != nil {
//	        return err
//	    }
//	    consume(results.Data)
//	    if !results.Status.Pending() {
//	        break
//	    }
//	}
package spark
